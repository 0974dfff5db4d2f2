package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"VaultLedger/internal/access"
	"VaultLedger/internal/custody"
	"VaultLedger/internal/engine"
	"VaultLedger/internal/event"
	"VaultLedger/internal/fixed"
	"VaultLedger/internal/governance"
	"VaultLedger/internal/oracle"
	"VaultLedger/internal/registry"
	"VaultLedger/internal/token"
	"VaultLedger/internal/valuation"
	"VaultLedger/internal/vault"
)

const quote = 1_000_000

// --- Test harness ---

// harness wires the engine to in-memory collaborators, a fixed clock, and
// buffered channels. Public mode, pool-a whitelisted at a 70% threshold,
// 5% annual stabilisation fee.
type harness struct {
	eng     *engine.Engine
	persist chan engine.Output
	proj    chan engine.Output

	oracle *oracle.StaticOracle
	gov    *governance.Store
	gate   *access.Gate
	tok    *token.Memory
	cust   *custody.Memory
	reg    *registry.Memory

	treasury uuid.UUID
	self     uuid.UUID
	admin    uuid.UUID
	operator uuid.UUID

	nowSec int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		persist:  make(chan engine.Output, 1024),
		proj:     make(chan engine.Output, 1024),
		oracle:   oracle.NewStaticOracle(),
		tok:      token.NewMemory(),
		cust:     custody.NewMemory(),
		reg:      registry.NewMemory(),
		treasury: uuid.New(),
		self:     uuid.New(),
		admin:    uuid.New(),
		operator: uuid.New(),
		nowSec:   1_700_000_000,
	}

	roles := access.NewStaticRoles()
	roles.GrantAdmin(h.admin)
	roles.GrantOperator(h.operator)
	h.gate = access.NewGate(roles)
	if err := h.gate.MakePublic(h.admin); err != nil {
		t.Fatalf("make public: %v", err)
	}

	h.gov = governance.NewStore(governance.DefaultParams())
	if err := h.gov.WhitelistPool("pool-a", 700_000_000); err != nil {
		t.Fatalf("whitelist: %v", err)
	}

	fee, err := vault.NewGlobalFeeState(50_000_000, h.nowSec)
	if err != nil {
		t.Fatalf("fee state: %v", err)
	}

	h.eng = engine.New(1, engine.Deps{
		Ledger:   vault.NewLedger(fee),
		Gate:     h.gate,
		Val:      valuation.NewAdapter(h.oracle, h.gov),
		Gov:      h.gov,
		Registry: h.reg,
		Token:    h.tok,
		Custody:  h.cust,
		Treasury: h.treasury,
		Self:     h.self,
		Clock:    func() time.Time { return time.Unix(h.nowSec, 0) },
	}, h.persist, h.proj, zerolog.Nop(), nil)

	return h
}

func (h *harness) advance(seconds int64) { h.nowSec += seconds }

// issueUnit places a priced unit in the holder's custody.
func (h *harness) issueUnit(unit vault.UnitID, holder uuid.UUID, value int64, pool vault.PoolID) {
	h.cust.Issue(unit, holder)
	h.oracle.SetPrice(unit, value, pool)
}

// openFundedVault opens a vault for the owner with one collateral unit
// already deposited.
func (h *harness) openFundedVault(t *testing.T, owner uuid.UUID, unit vault.UnitID, value int64) vault.VaultID {
	t.Helper()
	h.issueUnit(unit, owner, value, "pool-a")
	id, err := h.eng.OpenVault(owner)
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}
	if err := h.eng.DepositCollateral(owner, id, unit); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	return id
}

func (h *harness) drainPersist() []engine.Output {
	var out []engine.Output
	for {
		select {
		case o := <-h.persist:
			out = append(out, o)
		default:
			return out
		}
	}
}

// ============================================================================
// Test: full vault lifecycle
// ============================================================================

func TestLifecycle_OpenDepositMintBurnClose(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()

	// Unit worth 2000 backs 1400 at the 70% threshold.
	id := h.openFundedVault(t, owner, 7, 2000*quote)

	if err := h.eng.MintDebt(owner, id, 1000*quote); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := h.tok.BalanceOf(owner); got != 1000*quote {
		t.Errorf("owner balance after mint: got %d, want %d", got, 1000*quote)
	}

	// One year at 5% accrues a 50 fee; the owner needs 1050 to settle.
	h.advance(fixed.SecondsPerYear)
	h.tok.Mint(owner, 50*quote)

	if err := h.eng.BurnDebt(owner, id, 1050*quote); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := h.tok.BalanceOf(h.treasury); got != 50*quote {
		t.Errorf("treasury fee: got %d, want %d", got, 50*quote)
	}
	if got := h.tok.TotalSupply(); got != 50*quote {
		t.Errorf("supply after burn: got %d, want %d", got, 50*quote)
	}

	if err := h.eng.CloseVault(owner, id, uuid.Nil); err != nil {
		t.Fatalf("close: %v", err)
	}
	if holder, _ := h.cust.HolderOf(7); holder != owner {
		t.Errorf("unit holder after close: got %s, want owner", holder)
	}
	if _, err := h.eng.Ledger().Get(id); !errors.Is(err, vault.ErrVaultNotFound) {
		t.Errorf("vault after close: got %v, want ErrVaultNotFound", err)
	}
	if _, err := h.reg.OwnerOf(id); err == nil {
		t.Error("ownership record should be burned on close")
	}

	// Five operations, sequences 1..5 in arrival order.
	outputs := h.drainPersist()
	if len(outputs) != 5 {
		t.Fatalf("got %d outputs, want 5", len(outputs))
	}
	wantTypes := []event.EventType{
		event.EventTypeVaultOpened,
		event.EventTypeCollateralDeposited,
		event.EventTypeDebtMinted,
		event.EventTypeDebtBurned,
		event.EventTypeVaultClosed,
	}
	for i, o := range outputs {
		if o.Envelope.Sequence != int64(i+1) {
			t.Errorf("output %d: sequence %d, want %d", i, o.Envelope.Sequence, i+1)
		}
		if o.Envelope.EventType != wantTypes[i] {
			t.Errorf("output %d: type %s, want %s", i, o.Envelope.EventType, wantTypes[i])
		}
	}
}

func TestCloseVault_RejectsUnpaidDebt(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	id := h.openFundedVault(t, owner, 7, 2000*quote)

	if err := h.eng.MintDebt(owner, id, 100*quote); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := h.eng.CloseVault(owner, id, uuid.Nil); !errors.Is(err, vault.ErrUnpaidDebt) {
		t.Errorf("got %v, want ErrUnpaidDebt", err)
	}

	// Still open, collateral still in custody.
	if _, err := h.eng.Ledger().Get(id); err != nil {
		t.Errorf("vault should survive failed close: %v", err)
	}
	if holder, _ := h.cust.HolderOf(7); holder != h.self {
		t.Error("collateral must stay in custody after failed close")
	}
}

// ============================================================================
// Test: access control
// ============================================================================

func TestOpenVault_PrivateModeAllowList(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()

	if err := h.eng.SetAccessMode(h.admin, true); err != nil {
		t.Fatalf("set private: %v", err)
	}
	if _, err := h.eng.OpenVault(user); !errors.Is(err, vault.ErrAccessDenied) {
		t.Errorf("unlisted open: got %v, want ErrAccessDenied", err)
	}

	if err := h.eng.Allow(h.admin, user); err != nil {
		t.Fatalf("allow: %v", err)
	}
	if _, err := h.eng.OpenVault(user); err != nil {
		t.Errorf("allow-listed open: %v", err)
	}
}

func TestOwnerOnlyOperations_RejectStrangers(t *testing.T) {
	h := newHarness(t)
	owner, stranger := uuid.New(), uuid.New()
	id := h.openFundedVault(t, owner, 7, 2000*quote)

	if err := h.eng.MintDebt(stranger, id, 10*quote); !errors.Is(err, vault.ErrAccessDenied) {
		t.Errorf("stranger mint: got %v, want ErrAccessDenied", err)
	}
	if err := h.eng.WithdrawCollateral(stranger, id, 7); !errors.Is(err, vault.ErrAccessDenied) {
		t.Errorf("stranger withdraw: got %v, want ErrAccessDenied", err)
	}
	if err := h.eng.CloseVault(stranger, id, uuid.Nil); !errors.Is(err, vault.ErrAccessDenied) {
		t.Errorf("stranger close: got %v, want ErrAccessDenied", err)
	}
}

func TestBurnDebt_OwnerOnly(t *testing.T) {
	h := newHarness(t)
	owner, stranger := uuid.New(), uuid.New()
	id := h.openFundedVault(t, owner, 7, 2000*quote)

	if err := h.eng.MintDebt(owner, id, 100*quote); err != nil {
		t.Fatalf("mint: %v", err)
	}
	h.tok.Mint(stranger, 100*quote)

	if err := h.eng.BurnDebt(stranger, id, 100*quote); !errors.Is(err, vault.ErrAccessDenied) {
		t.Errorf("stranger burn: got %v, want ErrAccessDenied", err)
	}
	v, _ := h.eng.Ledger().Get(id)
	if v.OverallDebt() != 100*quote {
		t.Errorf("debt after rejected burn: got %d, want %d", v.OverallDebt(), 100*quote)
	}
	if got := h.tok.BalanceOf(stranger); got != 100*quote {
		t.Errorf("stranger balance: got %d, want %d", got, 100*quote)
	}
}

func TestCloseVault_CollateralGoesToRecipient(t *testing.T) {
	h := newHarness(t)
	owner, recipient := uuid.New(), uuid.New()
	id := h.openFundedVault(t, owner, 7, 2000*quote)

	if err := h.eng.CloseVault(owner, id, recipient); err != nil {
		t.Fatalf("close: %v", err)
	}
	if holder, _ := h.cust.HolderOf(7); holder != recipient {
		t.Errorf("unit holder after close: got %s, want recipient %s", holder, recipient)
	}

	outputs := h.drainPersist()
	last := outputs[len(outputs)-1]
	closed, ok := last.Envelope.Payload.(*event.VaultClosed)
	if !ok {
		t.Fatalf("last payload: got %T, want *event.VaultClosed", last.Envelope.Payload)
	}
	if closed.Recipient != recipient.String() {
		t.Errorf("event recipient: got %s, want %s", closed.Recipient, recipient)
	}
}

func TestPause_GatesMutatingOperations(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	id := h.openFundedVault(t, owner, 7, 2000*quote)

	if err := h.eng.Pause(h.operator); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := h.eng.OpenVault(owner); !errors.Is(err, vault.ErrPaused) {
		t.Errorf("open while paused: got %v, want ErrPaused", err)
	}
	if err := h.eng.MintDebt(owner, id, 10*quote); !errors.Is(err, vault.ErrPaused) {
		t.Errorf("mint while paused: got %v, want ErrPaused", err)
	}

	if err := h.eng.Unpause(h.operator); !errors.Is(err, vault.ErrAccessDenied) {
		t.Errorf("operator unpause: got %v, want ErrAccessDenied", err)
	}
	if err := h.eng.Unpause(h.admin); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := h.eng.MintDebt(owner, id, 10*quote); err != nil {
		t.Errorf("mint after unpause: %v", err)
	}
}

// ============================================================================
// Test: deposit validation
// ============================================================================

func TestDepositCollateral_Validation(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	id, err := h.eng.OpenVault(owner)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// No oracle price.
	h.cust.Issue(1, owner)
	if err := h.eng.DepositCollateral(owner, id, 1); !errors.Is(err, vault.ErrMissingOracle) {
		t.Errorf("unpriced unit: got %v, want ErrMissingOracle", err)
	}

	// Pool not whitelisted.
	h.issueUnit(2, owner, 1000*quote, "pool-x")
	if err := h.eng.DepositCollateral(owner, id, 2); !errors.Is(err, vault.ErrInvalidPool) {
		t.Errorf("unlisted pool: got %v, want ErrInvalidPool", err)
	}

	// Below the per-unit minimum (default 100).
	h.issueUnit(3, owner, 99*quote, "pool-a")
	if err := h.eng.DepositCollateral(owner, id, 3); !errors.Is(err, vault.ErrCollateralUnderflow) {
		t.Errorf("dust unit: got %v, want ErrCollateralUnderflow", err)
	}

	// Nothing bound, nothing pulled.
	v, _ := h.eng.Ledger().Get(id)
	if len(v.Units) != 0 {
		t.Errorf("collateral set after rejected deposits: %v", v.Units)
	}
	if holder, _ := h.cust.HolderOf(1); holder != owner {
		t.Error("rejected deposit must leave custody untouched")
	}
}

func TestDepositCollateral_UnitCap(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()

	params := governance.DefaultParams()
	params.MaxUnitsPerVault = 2
	if err := h.gov.SetParams(params); err != nil {
		t.Fatalf("set params: %v", err)
	}

	id := h.openFundedVault(t, owner, 1, 500*quote)
	h.issueUnit(2, owner, 500*quote, "pool-a")
	if err := h.eng.DepositCollateral(owner, id, 2); err != nil {
		t.Fatalf("second deposit: %v", err)
	}

	h.issueUnit(3, owner, 500*quote, "pool-a")
	if err := h.eng.DepositCollateral(owner, id, 3); !errors.Is(err, vault.ErrUnitLimitExceeded) {
		t.Errorf("over-cap deposit: got %v, want ErrUnitLimitExceeded", err)
	}
}

// ============================================================================
// Test: mint solvency and cap, atomic rollback
// ============================================================================

func TestMintDebt_SolvencyBoundary(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	// Unit worth 1000 backs exactly 700.
	id := h.openFundedVault(t, owner, 7, 1000*quote)

	if err := h.eng.MintDebt(owner, id, 700*quote); err != nil {
		t.Fatalf("mint at boundary: %v", err)
	}
	err := h.eng.MintDebt(owner, id, 1)
	if !errors.Is(err, vault.ErrPositionUnhealthy) {
		t.Errorf("mint past boundary: got %v, want ErrPositionUnhealthy", err)
	}

	// Rejected mint rolls principal back and mints no tokens.
	v, _ := h.eng.Ledger().Get(id)
	if v.DebtPrincipal != 700*quote {
		t.Errorf("principal after rejected mint: got %d, want %d", v.DebtPrincipal, 700*quote)
	}
	if got := h.tok.TotalSupply(); got != 700*quote {
		t.Errorf("supply after rejected mint: got %d, want %d", got, 700*quote)
	}
}

func TestMintDebt_PerVaultCap(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()

	params := governance.DefaultParams()
	params.MaxDebtPerVault = 500 * quote
	if err := h.gov.SetParams(params); err != nil {
		t.Fatalf("set params: %v", err)
	}

	id := h.openFundedVault(t, owner, 7, 10_000*quote)
	if err := h.eng.MintDebt(owner, id, 501*quote); !errors.Is(err, vault.ErrDebtLimitExceeded) {
		t.Errorf("got %v, want ErrDebtLimitExceeded", err)
	}

	v, _ := h.eng.Ledger().Get(id)
	if v.DebtPrincipal != 0 {
		t.Errorf("principal after rejected mint: got %d, want 0", v.DebtPrincipal)
	}
}

// ============================================================================
// Test: withdraw atomicity
// ============================================================================

func TestWithdrawCollateral_RestoredWhenUnhealthy(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	id := h.openFundedVault(t, owner, 1, 1000*quote)
	h.issueUnit(2, owner, 1000*quote, "pool-a")
	if err := h.eng.DepositCollateral(owner, id, 2); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// Debt of 1000 needs both units (total backing 1400, each alone 700).
	if err := h.eng.MintDebt(owner, id, 1000*quote); err != nil {
		t.Fatalf("mint: %v", err)
	}

	err := h.eng.WithdrawCollateral(owner, id, 2)
	if !errors.Is(err, vault.ErrPositionUnhealthy) {
		t.Errorf("got %v, want ErrPositionUnhealthy", err)
	}

	// All-or-nothing: the unit is back in the set and still in custody.
	v, _ := h.eng.Ledger().Get(id)
	if !v.HasUnit(2) {
		t.Errorf("unit 2 not restored, set: %v", v.Units)
	}
	if holder, _ := h.cust.HolderOf(2); holder != h.self {
		t.Error("unit must stay in custody after rejected withdraw")
	}

	// After repaying half, either unit alone carries the rest.
	if err := h.eng.BurnDebt(owner, id, 500*quote); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if err := h.eng.WithdrawCollateral(owner, id, 2); err != nil {
		t.Errorf("withdraw after repay: %v", err)
	}
	if holder, _ := h.cust.HolderOf(2); holder != owner {
		t.Error("withdrawn unit should return to owner")
	}
}

// ============================================================================
// Test: liquidation
// ============================================================================

func TestLiquidate_HealthyVaultRejected(t *testing.T) {
	h := newHarness(t)
	owner, liquidator := uuid.New(), uuid.New()
	id := h.openFundedVault(t, owner, 7, 1000*quote)
	if err := h.eng.MintDebt(owner, id, 500*quote); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := h.eng.Liquidate(liquidator, id); !errors.Is(err, vault.ErrPositionHealthy) {
		t.Errorf("got %v, want ErrPositionHealthy", err)
	}
}

func TestLiquidate_SplitDistribution(t *testing.T) {
	h := newHarness(t)
	owner, liquidator := uuid.New(), uuid.New()

	// Backing 700 at price 1000; mint 600; price drops to 800 so backing
	// falls to 560 < 600.
	id := h.openFundedVault(t, owner, 7, 1000*quote)
	if err := h.eng.MintDebt(owner, id, 600*quote); err != nil {
		t.Fatalf("mint: %v", err)
	}
	h.oracle.SetPrice(7, 800*quote, "pool-a")

	// return = max(600, 800×0.9) = 720; daoCut = min(0 + 800×3%, 120) = 24;
	// residual = 96.
	h.tok.Mint(liquidator, 720*quote)
	if err := h.eng.Liquidate(liquidator, id); err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	if got := h.tok.BalanceOf(liquidator); got != 0 {
		t.Errorf("liquidator balance: got %d, want 0", got)
	}
	if got := h.tok.BalanceOf(h.treasury); got != 24*quote {
		t.Errorf("treasury: got %d, want %d", got, 24*quote)
	}
	if got := h.tok.BalanceOf(owner); got != (600+96)*quote {
		t.Errorf("owner: got %d, want %d", got, (600+96)*quote)
	}
	// Principal 600 burned out of supply 600+720.
	if got := h.tok.TotalSupply(); got != 720*quote {
		t.Errorf("supply: got %d, want %d", got, 720*quote)
	}

	// Forced close: collateral to the liquidator, records gone.
	if holder, _ := h.cust.HolderOf(7); holder != liquidator {
		t.Errorf("unit holder: got %s, want liquidator", holder)
	}
	if _, err := h.eng.Ledger().Get(id); !errors.Is(err, vault.ErrVaultNotFound) {
		t.Errorf("vault after liquidation: got %v, want ErrVaultNotFound", err)
	}
	if err := h.tok.CheckSupplyInvariant(); err != nil {
		t.Errorf("supply invariant: %v", err)
	}
}

func TestLiquidate_InsufficientLiquidatorBalance(t *testing.T) {
	h := newHarness(t)
	owner, liquidator := uuid.New(), uuid.New()
	id := h.openFundedVault(t, owner, 7, 1000*quote)
	if err := h.eng.MintDebt(owner, id, 600*quote); err != nil {
		t.Fatalf("mint: %v", err)
	}
	h.oracle.SetPrice(7, 800*quote, "pool-a")

	err := h.eng.Liquidate(liquidator, id)
	if !errors.Is(err, vault.ErrValidationFailure) {
		t.Errorf("got %v, want ErrValidationFailure", err)
	}
	if _, gerr := h.eng.Ledger().Get(id); gerr != nil {
		t.Errorf("vault must survive rejected liquidation: %v", gerr)
	}
}

// ============================================================================
// Test: fee rate administration
// ============================================================================

func TestSetStabilisationFeeRate_AdminOnlyNeverRetroactive(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	id := h.openFundedVault(t, owner, 7, 2000*quote)
	if err := h.eng.MintDebt(owner, id, 1000*quote); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := h.eng.SetStabilisationFeeRate(owner, 100_000_000); !errors.Is(err, vault.ErrAccessDenied) {
		t.Errorf("non-admin: got %v, want ErrAccessDenied", err)
	}
	if err := h.eng.SetStabilisationFeeRate(h.admin, fixed.Denominator+1); !errors.Is(err, vault.ErrValidationFailure) {
		t.Errorf("over-cap rate: got %v, want ErrValidationFailure", err)
	}

	// Half a year at 5%, then double the rate; a later accrual must charge
	// 25 for the first half and 50 for the second, never re-price the past.
	h.advance(fixed.SecondsPerYear / 2)
	if err := h.eng.SetStabilisationFeeRate(h.admin, 100_000_000); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	h.advance(fixed.SecondsPerYear / 2)

	h.tok.Mint(owner, 100*quote)
	if err := h.eng.BurnDebt(owner, id, 1075*quote); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := h.tok.BalanceOf(h.treasury); got != 75*quote {
		t.Errorf("treasury fee: got %d, want %d", got, 75*quote)
	}
}

// ============================================================================
// Test: re-entrancy latch
// ============================================================================

// reentrantToken calls back into the engine mid-mint, the way a
// caller-controlled token hook would.
type reentrantToken struct {
	*token.Memory
	eng         *engine.Engine
	vaultID     vault.VaultID
	actor       uuid.UUID
	callbackErr error
}

func (r *reentrantToken) Mint(to uuid.UUID, amount int64) error {
	r.callbackErr = r.eng.BurnDebt(r.actor, r.vaultID, amount)
	return r.Memory.Mint(to, amount)
}

func TestReentrantCollaboratorCall_Rejected(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()

	rt := &reentrantToken{Memory: h.tok}

	// Rebuild the engine around the re-entrant token, same collaborators.
	fee, _ := vault.NewGlobalFeeState(50_000_000, h.nowSec)
	eng := engine.New(1, engine.Deps{
		Ledger:   vault.NewLedger(fee),
		Gate:     h.gate,
		Val:      valuation.NewAdapter(h.oracle, h.gov),
		Gov:      h.gov,
		Registry: h.reg,
		Token:    rt,
		Custody:  h.cust,
		Treasury: h.treasury,
		Self:     h.self,
		Clock:    func() time.Time { return time.Unix(h.nowSec, 0) },
	}, h.persist, h.proj, zerolog.Nop(), nil)
	rt.eng = eng
	rt.actor = owner

	h.issueUnit(7, owner, 2000*quote, "pool-a")
	id, err := eng.OpenVault(owner)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := eng.DepositCollateral(owner, id, 7); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	rt.vaultID = id

	// The outer mint succeeds; the nested call bounces off the latch.
	if err := eng.MintDebt(owner, id, 100*quote); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !errors.Is(rt.callbackErr, vault.ErrReentrancy) {
		t.Errorf("nested call: got %v, want ErrReentrancy", rt.callbackErr)
	}
}

// ============================================================================
// Test: system events reach the log
// ============================================================================

func TestSystemOperations_EmitEnvelopesWithoutVaultState(t *testing.T) {
	h := newHarness(t)

	if err := h.eng.Pause(h.operator); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := h.eng.Unpause(h.admin); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := h.eng.SetStabilisationFeeRate(h.admin, 60_000_000); err != nil {
		t.Fatalf("set rate: %v", err)
	}

	outputs := h.drainPersist()
	if len(outputs) != 3 {
		t.Fatalf("got %d outputs, want 3", len(outputs))
	}
	wantTypes := []event.EventType{
		event.EventTypeSystemPaused,
		event.EventTypeSystemUnpaused,
		event.EventTypeFeeRateUpdated,
	}
	for i, o := range outputs {
		if o.Envelope.EventType != wantTypes[i] {
			t.Errorf("output %d: type %s, want %s", i, o.Envelope.EventType, wantTypes[i])
		}
		if o.Envelope.VaultID != nil || o.VaultState != nil {
			t.Errorf("output %d: system event should carry no vault state", i)
		}
	}
	if outputs[2].FeeState.Rate != 60_000_000 {
		t.Errorf("fee state rate: got %d, want 60000000", outputs[2].FeeState.Rate)
	}
}

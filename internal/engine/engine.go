package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"VaultLedger/internal/access"
	"VaultLedger/internal/custody"
	"VaultLedger/internal/event"
	"VaultLedger/internal/governance"
	"VaultLedger/internal/liquidation"
	"VaultLedger/internal/observability"
	"VaultLedger/internal/registry"
	"VaultLedger/internal/token"
	"VaultLedger/internal/valuation"
	"VaultLedger/internal/vault"
)

// Engine is the single-threaded operation processor. All operations are
// applied strictly in arrival order on one goroutine; each either fully
// applies or leaves no trace. Collaborator calls happen inside the operation,
// guarded by a re-entrancy latch.
type Engine struct {
	ledger   *vault.Ledger
	gate     *access.Gate
	val      *valuation.Adapter
	gov      governance.Governance
	registry registry.Registry
	token    token.DebtToken
	custody  custody.Custody

	// treasury receives collected stabilisation fees and liquidation cuts;
	// self is the custody identity that holds locked collateral units.
	treasury uuid.UUID
	self     uuid.UUID

	clock    func() time.Time
	sequence int64
	busy     bool
	hasher   *StateHasher

	persistChan    chan<- Output
	projectionChan chan<- Output

	log     zerolog.Logger
	metrics *observability.Metrics
}

// Output is what one applied operation hands downstream: the log envelope
// plus the post-operation vault snapshot (nil for system-wide operations)
// and the fee state at that point.
type Output struct {
	Envelope   *event.Envelope
	VaultState *vault.Snapshot
	FeeState   vault.FeeStateSnapshot
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Ledger   *vault.Ledger
	Gate     *access.Gate
	Val      *valuation.Adapter
	Gov      governance.Governance
	Registry registry.Registry
	Token    token.DebtToken
	Custody  custody.Custody
	Treasury uuid.UUID
	Self     uuid.UUID
	Clock    func() time.Time
}

func New(
	startSequence int64,
	deps Deps,
	persistChan, projectionChan chan<- Output,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		ledger:         deps.Ledger,
		gate:           deps.Gate,
		val:            deps.Val,
		gov:            deps.Gov,
		registry:       deps.Registry,
		token:          deps.Token,
		custody:        deps.Custody,
		treasury:       deps.Treasury,
		self:           deps.Self,
		clock:          clock,
		sequence:       startSequence,
		hasher:         NewStateHasher(),
		persistChan:    persistChan,
		projectionChan: projectionChan,
		log:            log.With().Str("component", "engine").Logger(),
		metrics:        metrics,
	}
}

// Sequence returns the next sequence number to be assigned.
func (e *Engine) Sequence() int64 { return e.sequence }

// Gate exposes the access gate for read-side queries.
func (e *Engine) Gate() *access.Gate { return e.gate }

// Ledger exposes the vault ledger for read-side queries and snapshots.
func (e *Engine) Ledger() *vault.Ledger { return e.ledger }

// StateHash returns the current head of the deterministic state-hash chain.
func (e *Engine) StateHash() string { return e.hasher.CurrentHex() }

// RestoreStateHash resumes the hash chain from a snapshot. Call once at
// startup, before any operation.
func (e *Engine) RestoreStateHash(hexHash string) {
	e.hasher = RestoreStateHasher(hexHash)
}

// enter takes the re-entrancy latch for the duration of one operation.
func (e *Engine) enter() error {
	if e.busy {
		return vault.ErrReentrancy
	}
	e.busy = true
	return nil
}

func (e *Engine) exit() { e.busy = false }

// OpenVault allocates a fresh vault for the actor and registers ownership.
func (e *Engine) OpenVault(actor uuid.UUID) (vault.VaultID, error) {
	const op = "open_vault"
	start := time.Now()
	if err := e.enter(); err != nil {
		return 0, e.reject(op, err)
	}
	defer e.exit()

	if err := e.gate.RequireUnpaused(); err != nil {
		return 0, e.reject(op, err)
	}
	if err := e.gate.RequireCanOpen(actor); err != nil {
		return 0, e.reject(op, err)
	}

	now := e.clock()
	v := e.ledger.Open(now.Unix())
	if err := e.registry.Mint(actor, v.ID); err != nil {
		e.ledger.Close(v)
		return 0, e.reject(op, err)
	}

	e.emit(actor, now, v, &event.VaultOpened{VaultID: uint64(v.ID)})
	e.applied(op, start)
	return v.ID, nil
}

// CloseVault voluntarily closes a debt-free vault, transferring all
// collateral to the recipient and burning the ownership record. A nil
// recipient defaults to the owner.
func (e *Engine) CloseVault(actor uuid.UUID, id vault.VaultID, recipient uuid.UUID) error {
	const op = "close_vault"
	start := time.Now()
	if err := e.enter(); err != nil {
		return e.reject(op, err)
	}
	defer e.exit()

	if err := e.gate.RequireUnpaused(); err != nil {
		return e.reject(op, err)
	}
	v, owner, err := e.ownedVault(actor, id)
	if err != nil {
		return e.reject(op, err)
	}

	now := e.clock()
	e.ledger.Accrue(v, now.Unix())
	if v.OverallDebt() != 0 {
		return e.reject(op, fmt.Errorf("%w: vault %d owes %d", vault.ErrUnpaidDebt, id, v.OverallDebt()))
	}

	if recipient == uuid.Nil {
		recipient = owner
	}
	units := e.ledger.Close(v)
	for _, u := range units {
		if err := e.custody.Push(u, e.self, recipient); err != nil {
			panic(fmt.Sprintf("FATAL: custody release failed for unit %d: %v", u, err))
		}
	}
	if err := e.registry.Burn(id); err != nil {
		panic(fmt.Sprintf("FATAL: registry burn failed for vault %d: %v", id, err))
	}

	e.emitClosed(actor, now, id, &event.VaultClosed{
		VaultID:   uint64(id),
		Recipient: recipient.String(),
		Units:     unitIDs(units),
	})
	e.applied(op, start)
	return nil
}

// DepositCollateral pulls a unit from the actor into custody and binds it to
// the vault. The unit must price against a whitelisted pool and value at or
// above the per-unit minimum.
func (e *Engine) DepositCollateral(actor uuid.UUID, id vault.VaultID, unit vault.UnitID) error {
	const op = "deposit_collateral"
	start := time.Now()
	if err := e.enter(); err != nil {
		return e.reject(op, err)
	}
	defer e.exit()

	if err := e.gate.RequireUnpaused(); err != nil {
		return e.reject(op, err)
	}
	v, err := e.ledger.Get(id)
	if err != nil {
		return e.reject(op, err)
	}
	owner, err := e.registry.OwnerOf(id)
	if err != nil {
		return e.reject(op, err)
	}
	if err := e.gate.RequireCanDeposit(actor, owner); err != nil {
		return e.reject(op, err)
	}

	params := e.gov.ProtocolParams()
	if len(v.Units) >= params.MaxUnitsPerVault {
		return e.reject(op, fmt.Errorf("%w: vault %d at cap %d", vault.ErrUnitLimitExceeded, id, params.MaxUnitsPerVault))
	}

	value, pool, err := e.val.UnitValue(unit)
	if err != nil {
		return e.reject(op, err)
	}
	if !e.gov.IsPoolWhitelisted(pool) {
		return e.reject(op, fmt.Errorf("%w: pool %q", vault.ErrInvalidPool, pool))
	}
	if value < params.MinSingleUnitValue {
		return e.reject(op, fmt.Errorf("%w: unit %d valued %d below %d", vault.ErrCollateralUnderflow, unit, value, params.MinSingleUnitValue))
	}

	now := e.clock()
	e.ledger.Accrue(v, now.Unix())

	if err := e.ledger.AttachUnit(v, unit); err != nil {
		return e.reject(op, err)
	}
	if err := e.custody.Pull(unit, actor, e.self); err != nil {
		if _, derr := e.ledger.DetachUnit(unit); derr != nil {
			panic(fmt.Sprintf("FATAL: deposit rollback failed for unit %d: %v", unit, derr))
		}
		return e.reject(op, err)
	}

	e.emit(actor, now, v, &event.CollateralDeposited{
		VaultID:   uint64(id),
		UnitID:    uint64(unit),
		UnitValue: value,
		Pool:      string(pool),
	})
	e.applied(op, start)
	return nil
}

// WithdrawCollateral releases a unit back to the owner if the remaining set
// still covers the overall debt. The unit is removed first and restored when
// the solvency check fails, so a rejected withdraw leaves no trace.
func (e *Engine) WithdrawCollateral(actor uuid.UUID, id vault.VaultID, unit vault.UnitID) error {
	const op = "withdraw_collateral"
	start := time.Now()
	if err := e.enter(); err != nil {
		return e.reject(op, err)
	}
	defer e.exit()

	if err := e.gate.RequireUnpaused(); err != nil {
		return e.reject(op, err)
	}
	v, owner, err := e.ownedVault(actor, id)
	if err != nil {
		return e.reject(op, err)
	}
	if !v.HasUnit(unit) {
		return e.reject(op, fmt.Errorf("%w: unit %d not in vault %d", vault.ErrUnitNotFound, unit, id))
	}

	now := e.clock()
	e.ledger.Accrue(v, now.Unix())

	if _, err := e.ledger.DetachUnit(unit); err != nil {
		return e.reject(op, err)
	}

	solvent, err := e.val.IsSolvent(v.Units, v.OverallDebt())
	if err == nil && !solvent {
		err = fmt.Errorf("%w: withdrawing unit %d from vault %d", vault.ErrPositionUnhealthy, unit, id)
	}
	if err != nil {
		if aerr := e.ledger.AttachUnit(v, unit); aerr != nil {
			panic(fmt.Sprintf("FATAL: withdraw rollback failed for unit %d: %v", unit, aerr))
		}
		return e.reject(op, err)
	}

	if err := e.custody.Push(unit, e.self, owner); err != nil {
		if aerr := e.ledger.AttachUnit(v, unit); aerr != nil {
			panic(fmt.Sprintf("FATAL: withdraw rollback failed for unit %d: %v", unit, aerr))
		}
		return e.reject(op, err)
	}

	e.emit(actor, now, v, &event.CollateralWithdrawn{
		VaultID: uint64(id),
		UnitID:  uint64(unit),
	})
	e.applied(op, start)
	return nil
}

// MintDebt issues new principal against the vault and mints debt tokens to
// the owner. The post-mint position must stay solvent and under the per-vault
// debt cap.
func (e *Engine) MintDebt(actor uuid.UUID, id vault.VaultID, amount int64) error {
	const op = "mint_debt"
	start := time.Now()
	if err := e.enter(); err != nil {
		return e.reject(op, err)
	}
	defer e.exit()

	if err := e.gate.RequireUnpaused(); err != nil {
		return e.reject(op, err)
	}
	if amount <= 0 {
		return e.reject(op, fmt.Errorf("%w: mint amount %d", vault.ErrValidationFailure, amount))
	}
	v, owner, err := e.ownedVault(actor, id)
	if err != nil {
		return e.reject(op, err)
	}

	now := e.clock()
	e.ledger.Accrue(v, now.Unix())
	e.ledger.AddDebt(v, amount)

	err = func() error {
		overall := v.OverallDebt()
		if max := e.gov.ProtocolParams().MaxDebtPerVault; overall > max {
			return fmt.Errorf("%w: overall debt %d exceeds cap %d", vault.ErrDebtLimitExceeded, overall, max)
		}
		solvent, serr := e.val.IsSolvent(v.Units, overall)
		if serr != nil {
			return serr
		}
		if !solvent {
			return fmt.Errorf("%w: minting %d against vault %d", vault.ErrPositionUnhealthy, amount, id)
		}
		return nil
	}()
	if err != nil {
		e.ledger.AddDebt(v, -amount)
		return e.reject(op, err)
	}

	if err := e.token.Mint(owner, amount); err != nil {
		e.ledger.AddDebt(v, -amount)
		return e.reject(op, err)
	}

	e.emit(actor, now, v, &event.DebtMinted{
		VaultID:       uint64(id),
		Amount:        amount,
		DebtPrincipal: v.DebtPrincipal,
		AccruedFee:    v.AccruedFee,
	})
	if e.metrics != nil {
		e.metrics.DebtMinted.Add(float64(amount))
	}
	e.applied(op, start)
	return nil
}

// BurnDebt repays up to the vault's overall debt from the owner's token
// balance, fee before principal. The fee portion transfers to the treasury;
// the principal portion is burned.
func (e *Engine) BurnDebt(actor uuid.UUID, id vault.VaultID, amount int64) error {
	const op = "burn_debt"
	start := time.Now()
	if err := e.enter(); err != nil {
		return e.reject(op, err)
	}
	defer e.exit()

	if err := e.gate.RequireUnpaused(); err != nil {
		return e.reject(op, err)
	}
	if amount <= 0 {
		return e.reject(op, fmt.Errorf("%w: burn amount %d", vault.ErrValidationFailure, amount))
	}
	v, _, err := e.ownedVault(actor, id)
	if err != nil {
		return e.reject(op, err)
	}

	now := e.clock()
	e.ledger.Accrue(v, now.Unix())

	overall := v.OverallDebt()
	if overall == 0 {
		return e.reject(op, fmt.Errorf("%w: vault %d has no debt", vault.ErrValidationFailure, id))
	}
	if amount > overall {
		amount = overall
	}
	if bal := e.token.BalanceOf(actor); bal < amount {
		return e.reject(op, fmt.Errorf("%w: balance %d below burn %d", vault.ErrValidationFailure, bal, amount))
	}

	feePaid, principalPaid := e.ledger.ApplyBurn(v, amount)

	if feePaid > 0 {
		if err := e.token.Transfer(actor, e.treasury, feePaid); err != nil {
			panic(fmt.Sprintf("FATAL: fee transfer failed after balance check: %v", err))
		}
	}
	if principalPaid > 0 {
		if err := e.token.Burn(actor, principalPaid); err != nil {
			panic(fmt.Sprintf("FATAL: principal burn failed after balance check: %v", err))
		}
	}

	e.emit(actor, now, v, &event.DebtBurned{
		VaultID:       uint64(id),
		FeePaid:       feePaid,
		PrincipalPaid: principalPaid,
		DebtPrincipal: v.DebtPrincipal,
		AccruedFee:    v.AccruedFee,
	})
	if e.metrics != nil {
		e.metrics.DebtBurned.Add(float64(principalPaid))
		e.metrics.FeeCollected.Add(float64(feePaid))
	}
	e.applied(op, start)
	return nil
}

// Liquidate force-closes an insolvent vault. The liquidator pays the return
// amount from their token balance; the vault's principal is burned, the
// protocol cut transfers to the treasury, any residual goes to the owner,
// and all collateral units transfer to the liquidator.
func (e *Engine) Liquidate(actor uuid.UUID, id vault.VaultID) error {
	const op = "liquidate"
	start := time.Now()
	if err := e.enter(); err != nil {
		return e.reject(op, err)
	}
	defer e.exit()

	if err := e.gate.RequireUnpaused(); err != nil {
		return e.reject(op, err)
	}
	v, err := e.ledger.Get(id)
	if err != nil {
		return e.reject(op, err)
	}
	owner, err := e.registry.OwnerOf(id)
	if err != nil {
		return e.reject(op, err)
	}

	now := e.clock()
	e.ledger.Accrue(v, now.Unix())
	overall := v.OverallDebt()

	solvent, err := e.val.IsSolvent(v.Units, overall)
	if err != nil {
		return e.reject(op, err)
	}
	if solvent {
		return e.reject(op, fmt.Errorf("%w: vault %d", vault.ErrPositionHealthy, id))
	}

	raw, err := e.val.RawCollateral(v.Units)
	if err != nil {
		return e.reject(op, err)
	}

	params := e.gov.ProtocolParams()
	split := liquidation.ComputeSplit(v.DebtPrincipal, overall, raw, params.LiquidationFeeRate, params.LiquidationPremiumRate)

	if bal := e.token.BalanceOf(actor); bal < split.ReturnAmount {
		return e.reject(op, fmt.Errorf("%w: balance %d below return amount %d", vault.ErrValidationFailure, bal, split.ReturnAmount))
	}

	// Settlement. After the balance check these moves cannot fail without a
	// broken token collaborator, which is unrecoverable mid-operation.
	if split.Principal > 0 {
		if err := e.token.Burn(actor, split.Principal); err != nil {
			panic(fmt.Sprintf("FATAL: liquidation principal burn failed: %v", err))
		}
	}
	if split.DAOCut > 0 {
		if err := e.token.Transfer(actor, e.treasury, split.DAOCut); err != nil {
			panic(fmt.Sprintf("FATAL: liquidation treasury transfer failed: %v", err))
		}
	}
	if split.OwnerResidual > 0 {
		if err := e.token.Transfer(actor, owner, split.OwnerResidual); err != nil {
			panic(fmt.Sprintf("FATAL: liquidation residual transfer failed: %v", err))
		}
	}

	units := e.ledger.Close(v)
	for _, u := range units {
		if err := e.custody.Push(u, e.self, actor); err != nil {
			panic(fmt.Sprintf("FATAL: custody release failed for unit %d: %v", u, err))
		}
	}
	if err := e.registry.Burn(id); err != nil {
		panic(fmt.Sprintf("FATAL: registry burn failed for vault %d: %v", id, err))
	}

	e.emitClosed(actor, now, id, &event.VaultLiquidated{
		VaultID:       uint64(id),
		Liquidator:    actor.String(),
		Owner:         owner.String(),
		OverallDebt:   overall,
		VaultAmount:   split.VaultAmount,
		ReturnAmount:  split.ReturnAmount,
		DAOCut:        split.DAOCut,
		OwnerResidual: split.OwnerResidual,
		Units:         unitIDs(units),
	})
	if e.metrics != nil {
		e.metrics.Liquidations.Inc()
		e.metrics.LiquidationPayout.WithLabelValues("burned").Add(float64(split.Principal))
		e.metrics.LiquidationPayout.WithLabelValues("treasury").Add(float64(split.DAOCut))
		e.metrics.LiquidationPayout.WithLabelValues("owner").Add(float64(split.OwnerResidual))
	}
	e.applied(op, start)
	return nil
}

// SetStabilisationFeeRate updates the annualized fee rate. Accrual under the
// old rate is flushed into the frozen index first. Admin only.
func (e *Engine) SetStabilisationFeeRate(actor uuid.UUID, rate int64) error {
	const op = "set_fee_rate"
	start := time.Now()
	if err := e.enter(); err != nil {
		return e.reject(op, err)
	}
	defer e.exit()

	if err := e.gate.RequireAdmin(actor); err != nil {
		return e.reject(op, err)
	}

	now := e.clock()
	fee := e.ledger.FeeState()
	oldRate := fee.Rate
	if err := fee.SetRate(rate, now.Unix()); err != nil {
		return e.reject(op, err)
	}

	e.emit(actor, now, nil, &event.FeeRateUpdated{
		OldRate:     oldRate,
		NewRate:     rate,
		FrozenIndex: fee.FrozenIndex,
	})
	e.applied(op, start)
	return nil
}

// Pause sets the system-wide pause latch. Operator or admin.
func (e *Engine) Pause(actor uuid.UUID) error {
	const op = "pause"
	start := time.Now()
	if err := e.enter(); err != nil {
		return e.reject(op, err)
	}
	defer e.exit()

	if err := e.gate.Pause(actor); err != nil {
		return e.reject(op, err)
	}
	e.emit(actor, e.clock(), nil, &event.SystemPaused{})
	e.applied(op, start)
	return nil
}

// Unpause clears the pause latch. Admin only.
func (e *Engine) Unpause(actor uuid.UUID) error {
	const op = "unpause"
	start := time.Now()
	if err := e.enter(); err != nil {
		return e.reject(op, err)
	}
	defer e.exit()

	if err := e.gate.Unpause(actor); err != nil {
		return e.reject(op, err)
	}
	e.emit(actor, e.clock(), nil, &event.SystemUnpaused{})
	e.applied(op, start)
	return nil
}

// SetAccessMode toggles allow-list enforcement. Admin only.
func (e *Engine) SetAccessMode(actor uuid.UUID, private bool) error {
	const op = "set_access_mode"
	start := time.Now()
	if err := e.enter(); err != nil {
		return e.reject(op, err)
	}
	defer e.exit()

	var err error
	if private {
		err = e.gate.MakePrivate(actor)
	} else {
		err = e.gate.MakePublic(actor)
	}
	if err != nil {
		return e.reject(op, err)
	}
	e.emit(actor, e.clock(), nil, &event.AccessModeChanged{Private: private})
	e.applied(op, start)
	return nil
}

// Allow adds a subject to the deposit/open allow-list. Admin only.
func (e *Engine) Allow(actor, subject uuid.UUID) error {
	if err := e.enter(); err != nil {
		return e.reject("allow", err)
	}
	defer e.exit()
	if err := e.gate.Allow(actor, subject); err != nil {
		return e.reject("allow", err)
	}
	return nil
}

// Disallow removes a subject from the allow-list. Admin only.
func (e *Engine) Disallow(actor, subject uuid.UUID) error {
	if err := e.enter(); err != nil {
		return e.reject("disallow", err)
	}
	defer e.exit()
	if err := e.gate.Disallow(actor, subject); err != nil {
		return e.reject("disallow", err)
	}
	return nil
}

// ownedVault fetches the vault and enforces actor ownership.
func (e *Engine) ownedVault(actor uuid.UUID, id vault.VaultID) (*vault.Vault, uuid.UUID, error) {
	v, err := e.ledger.Get(id)
	if err != nil {
		return nil, uuid.Nil, err
	}
	owner, err := e.registry.OwnerOf(id)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if err := e.gate.RequireOwner(actor, owner); err != nil {
		return nil, uuid.Nil, err
	}
	return v, owner, nil
}

// emit assigns the next sequence, wraps the payload, and hands the output
// downstream. The persist send blocks (backpressure from Postgres); the
// projection send drops on full and the projection catches up from the log.
func (e *Engine) emit(actor uuid.UUID, now time.Time, v *vault.Vault, payload event.Notification) {
	var snap *vault.Snapshot
	if v != nil {
		s := v.Snapshot()
		snap = &s
	}
	e.dispatch(actor, now, payload, snap)
}

// emitClosed emits for a vault that no longer exists; the snapshot carries
// only the id with zeroed state so projections mark the row closed.
func (e *Engine) emitClosed(actor uuid.UUID, now time.Time, id vault.VaultID, payload event.Notification) {
	e.dispatch(actor, now, payload, &vault.Snapshot{ID: uint64(id)})
}

func (e *Engine) dispatch(actor uuid.UUID, now time.Time, payload event.Notification, snap *vault.Snapshot) {
	env := &event.Envelope{
		Sequence:  e.sequence,
		Actor:     actor,
		EventType: payload.EventType(),
		VaultID:   payload.VaultRef(),
		Timestamp: now,
		Payload:   payload,
	}
	out := Output{
		Envelope:   env,
		VaultState: snap,
		FeeState:   e.ledger.FeeState().Snapshot(),
	}
	e.hasher.Advance(env.Sequence, digestOperation(snap, out.FeeState))
	e.sequence++

	e.persistChan <- out

	select {
	case e.projectionChan <- out:
	default:
		if e.metrics != nil {
			e.metrics.ProjectionDrops.Inc()
		}
	}

	if e.metrics != nil {
		e.metrics.EngineSeq.Set(float64(e.sequence))
		e.metrics.OpenVaults.Set(float64(e.ledger.VaultCount()))
		fee := e.ledger.FeeState()
		e.metrics.FeeIndex.Set(float64(fee.FrozenIndex))
		e.metrics.FeeRate.Set(float64(fee.Rate))
	}
}

func (e *Engine) applied(op string, start time.Time) {
	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(op).Inc()
		e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (e *Engine) reject(op string, err error) error {
	reason := rejectReason(err)
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, reason).Inc()
	}
	e.log.Debug().Str("op", op).Str("reason", reason).Err(err).Msg("operation rejected")
	return err
}

// rejectReason maps an error to its taxonomy root name for metrics labels.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, vault.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, vault.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, vault.ErrValidationFailure):
		return "validation_failure"
	case errors.Is(err, vault.ErrResourceNotFound):
		return "resource_not_found"
	case errors.Is(err, vault.ErrFinancialInvariant):
		return "financial_invariant"
	case errors.Is(err, vault.ErrMissingPriceData):
		return "missing_price_data"
	default:
		return "internal"
	}
}

func unitIDs(units []vault.UnitID) []uint64 {
	out := make([]uint64, len(units))
	for i, u := range units {
		out[i] = uint64(u)
	}
	return out
}

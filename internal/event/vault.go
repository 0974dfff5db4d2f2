package event

// VaultOpened announces a newly allocated vault id.
type VaultOpened struct {
	VaultID uint64 `json:"vault_id"`
}

func (e *VaultOpened) EventType() EventType { return EventTypeVaultOpened }
func (e *VaultOpened) VaultRef() *uint64    { return &e.VaultID }

// VaultClosed announces a voluntary closure; all collateral went to the
// recipient.
type VaultClosed struct {
	VaultID   uint64   `json:"vault_id"`
	Recipient string   `json:"recipient"`
	Units     []uint64 `json:"units"`
}

func (e *VaultClosed) EventType() EventType { return EventTypeVaultClosed }
func (e *VaultClosed) VaultRef() *uint64    { return &e.VaultID }

// CollateralDeposited announces a unit bound to a vault.
type CollateralDeposited struct {
	VaultID   uint64 `json:"vault_id"`
	UnitID    uint64 `json:"unit_id"`
	UnitValue int64  `json:"unit_value"`
	Pool      string `json:"pool"`
}

func (e *CollateralDeposited) EventType() EventType { return EventTypeCollateralDeposited }
func (e *CollateralDeposited) VaultRef() *uint64    { return &e.VaultID }

// CollateralWithdrawn announces a unit released from a vault.
type CollateralWithdrawn struct {
	VaultID uint64 `json:"vault_id"`
	UnitID  uint64 `json:"unit_id"`
}

func (e *CollateralWithdrawn) EventType() EventType { return EventTypeCollateralWithdrawn }
func (e *CollateralWithdrawn) VaultRef() *uint64    { return &e.VaultID }

// DebtMinted announces new principal issued against a vault.
type DebtMinted struct {
	VaultID       uint64 `json:"vault_id"`
	Amount        int64  `json:"amount"`
	DebtPrincipal int64  `json:"debt_principal"`
	AccruedFee    int64  `json:"accrued_fee"`
}

func (e *DebtMinted) EventType() EventType { return EventTypeDebtMinted }
func (e *DebtMinted) VaultRef() *uint64    { return &e.VaultID }

// DebtBurned announces a repayment, split into fee and principal portions.
type DebtBurned struct {
	VaultID       uint64 `json:"vault_id"`
	FeePaid       int64  `json:"fee_paid"`
	PrincipalPaid int64  `json:"principal_paid"`
	DebtPrincipal int64  `json:"debt_principal"`
	AccruedFee    int64  `json:"accrued_fee"`
}

func (e *DebtBurned) EventType() EventType { return EventTypeDebtBurned }
func (e *DebtBurned) VaultRef() *uint64    { return &e.VaultID }

// VaultLiquidated announces a forced closure with its payout split.
type VaultLiquidated struct {
	VaultID       uint64   `json:"vault_id"`
	Liquidator    string   `json:"liquidator"`
	Owner         string   `json:"owner"`
	OverallDebt   int64    `json:"overall_debt"`
	VaultAmount   int64    `json:"vault_amount"`
	ReturnAmount  int64    `json:"return_amount"`
	DAOCut        int64    `json:"dao_cut"`
	OwnerResidual int64    `json:"owner_residual"`
	Units         []uint64 `json:"units"`
}

func (e *VaultLiquidated) EventType() EventType { return EventTypeVaultLiquidated }
func (e *VaultLiquidated) VaultRef() *uint64    { return &e.VaultID }

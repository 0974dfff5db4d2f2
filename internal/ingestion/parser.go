package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"VaultLedger/internal/engine"
	"VaultLedger/internal/vault"
)

// ParseCommand converts a RawCommand (subject + JSON bytes) into a typed
// engine.Command. The subject's final token names the command; the shell
// validates and parses before anything reaches the processor.
func ParseCommand(raw RawCommand) (engine.Command, error) {
	name := commandName(raw.Subject)

	switch name {
	case "open":
		return parseActorOnly(raw.Data, engine.CmdOpenVault)
	case "close":
		return parseClose(raw.Data)
	case "deposit":
		return parseUnitRef(raw.Data, engine.CmdDepositCollateral)
	case "withdraw":
		return parseUnitRef(raw.Data, engine.CmdWithdrawCollateral)
	case "mint":
		return parseAmount(raw.Data, engine.CmdMintDebt)
	case "burn":
		return parseAmount(raw.Data, engine.CmdBurnDebt)
	case "liquidate":
		return parseVaultRef(raw.Data, engine.CmdLiquidate)
	case "set_fee_rate":
		return parseFeeRate(raw.Data)
	case "pause":
		return parseActorOnly(raw.Data, engine.CmdPause)
	case "unpause":
		return parseActorOnly(raw.Data, engine.CmdUnpause)
	case "set_access_mode":
		return parseAccessMode(raw.Data)
	case "allow":
		return parseSubject(raw.Data, engine.CmdAllow)
	case "disallow":
		return parseSubject(raw.Data, engine.CmdDisallow)
	default:
		return engine.Command{}, fmt.Errorf("unknown command %q (subject %s)", name, raw.Subject)
	}
}

// commandName extracts the final subject token,
// e.g. "cdp.commands.debt.mint" -> "mint".
func commandName(subject string) string {
	idx := strings.LastIndex(subject, ".")
	if idx < 0 {
		return subject
	}
	return subject[idx+1:]
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers.

type actorJSON struct {
	Actor string `json:"actor"`
}

func parseActorOnly(data []byte, t engine.CommandType) (engine.Command, error) {
	var j actorJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return engine.Command{}, fmt.Errorf("parse %s: %w", t, err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return engine.Command{}, fmt.Errorf("parse actor: %w", err)
	}
	return engine.Command{Type: t, Actor: actor}, nil
}

type vaultRefJSON struct {
	Actor   string `json:"actor"`
	VaultID uint64 `json:"vault_id"`
}

func parseVaultRef(data []byte, t engine.CommandType) (engine.Command, error) {
	var j vaultRefJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return engine.Command{}, fmt.Errorf("parse %s: %w", t, err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return engine.Command{}, fmt.Errorf("parse actor: %w", err)
	}
	return engine.Command{Type: t, Actor: actor, VaultID: vault.VaultID(j.VaultID)}, nil
}

type closeJSON struct {
	Actor     string `json:"actor"`
	VaultID   uint64 `json:"vault_id"`
	Recipient string `json:"recipient"` // optional; empty means the owner
}

func parseClose(data []byte) (engine.Command, error) {
	var j closeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return engine.Command{}, fmt.Errorf("parse close: %w", err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return engine.Command{}, fmt.Errorf("parse actor: %w", err)
	}
	recipient := uuid.Nil
	if j.Recipient != "" {
		recipient, err = uuid.Parse(j.Recipient)
		if err != nil {
			return engine.Command{}, fmt.Errorf("parse recipient: %w", err)
		}
	}
	return engine.Command{
		Type:      engine.CmdCloseVault,
		Actor:     actor,
		VaultID:   vault.VaultID(j.VaultID),
		Recipient: recipient,
	}, nil
}

type unitRefJSON struct {
	Actor   string `json:"actor"`
	VaultID uint64 `json:"vault_id"`
	UnitID  uint64 `json:"unit_id"`
}

func parseUnitRef(data []byte, t engine.CommandType) (engine.Command, error) {
	var j unitRefJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return engine.Command{}, fmt.Errorf("parse %s: %w", t, err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return engine.Command{}, fmt.Errorf("parse actor: %w", err)
	}
	return engine.Command{
		Type:    t,
		Actor:   actor,
		VaultID: vault.VaultID(j.VaultID),
		UnitID:  vault.UnitID(j.UnitID),
	}, nil
}

type amountJSON struct {
	Actor   string `json:"actor"`
	VaultID uint64 `json:"vault_id"`
	Amount  int64  `json:"amount"`
}

func parseAmount(data []byte, t engine.CommandType) (engine.Command, error) {
	var j amountJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return engine.Command{}, fmt.Errorf("parse %s: %w", t, err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return engine.Command{}, fmt.Errorf("parse actor: %w", err)
	}
	if j.Amount <= 0 {
		return engine.Command{}, fmt.Errorf("parse %s: amount %d must be positive", t, j.Amount)
	}
	return engine.Command{
		Type:    t,
		Actor:   actor,
		VaultID: vault.VaultID(j.VaultID),
		Amount:  j.Amount,
	}, nil
}

type feeRateJSON struct {
	Actor string `json:"actor"`
	Rate  int64  `json:"rate"`
}

func parseFeeRate(data []byte) (engine.Command, error) {
	var j feeRateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return engine.Command{}, fmt.Errorf("parse set_fee_rate: %w", err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return engine.Command{}, fmt.Errorf("parse actor: %w", err)
	}
	if j.Rate < 0 {
		return engine.Command{}, fmt.Errorf("parse set_fee_rate: rate %d must be non-negative", j.Rate)
	}
	return engine.Command{Type: engine.CmdSetFeeRate, Actor: actor, Rate: j.Rate}, nil
}

type accessModeJSON struct {
	Actor   string `json:"actor"`
	Private bool   `json:"private"`
}

func parseAccessMode(data []byte) (engine.Command, error) {
	var j accessModeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return engine.Command{}, fmt.Errorf("parse set_access_mode: %w", err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return engine.Command{}, fmt.Errorf("parse actor: %w", err)
	}
	return engine.Command{Type: engine.CmdSetAccessMode, Actor: actor, Private: j.Private}, nil
}

type subjectJSON struct {
	Actor   string `json:"actor"`
	Subject string `json:"subject"`
}

func parseSubject(data []byte, t engine.CommandType) (engine.Command, error) {
	var j subjectJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return engine.Command{}, fmt.Errorf("parse %s: %w", t, err)
	}
	actor, err := uuid.Parse(j.Actor)
	if err != nil {
		return engine.Command{}, fmt.Errorf("parse actor: %w", err)
	}
	subject, err := uuid.Parse(j.Subject)
	if err != nil {
		return engine.Command{}, fmt.Errorf("parse subject: %w", err)
	}
	return engine.Command{Type: t, Actor: actor, Subject: subject}, nil
}

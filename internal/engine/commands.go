package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"VaultLedger/internal/vault"
)

// CommandType discriminates submitted commands.
type CommandType string

const (
	CmdOpenVault          CommandType = "open_vault"
	CmdCloseVault         CommandType = "close_vault"
	CmdDepositCollateral  CommandType = "deposit_collateral"
	CmdWithdrawCollateral CommandType = "withdraw_collateral"
	CmdMintDebt           CommandType = "mint_debt"
	CmdBurnDebt           CommandType = "burn_debt"
	CmdLiquidate          CommandType = "liquidate"
	CmdSetFeeRate         CommandType = "set_fee_rate"
	CmdPause              CommandType = "pause"
	CmdUnpause            CommandType = "unpause"
	CmdSetAccessMode      CommandType = "set_access_mode"
	CmdAllow              CommandType = "allow"
	CmdDisallow           CommandType = "disallow"
)

// Command is one unit of work for the processor loop. Fields beyond Type and
// Actor are populated per command type.
type Command struct {
	Type      CommandType
	Actor     uuid.UUID
	VaultID   vault.VaultID
	UnitID    vault.UnitID
	Amount    int64
	Rate      int64
	Private   bool
	Subject   uuid.UUID
	Recipient uuid.UUID // close_vault collateral destination; Nil means owner

	// inspect is set for internal read-side commands submitted via Inspect.
	inspect func(*Engine)

	// reply receives the result; buffered so the loop never blocks on it.
	reply chan Result
}

// Result is the outcome of one command.
type Result struct {
	VaultID vault.VaultID // set for open_vault
	Err     error
}

// Processor owns the engine goroutine. Commands are applied strictly in
// channel order; submitters block until their command is picked up, then
// wait on a per-command reply channel.
type Processor struct {
	engine   *Engine
	commands chan Command
	log      zerolog.Logger
}

func NewProcessor(engine *Engine, queueDepth int, log zerolog.Logger) *Processor {
	return &Processor{
		engine:   engine,
		commands: make(chan Command, queueDepth),
		log:      log.With().Str("component", "processor").Logger(),
	}
}

// Submit queues a command and waits for its result.
func (p *Processor) Submit(ctx context.Context, cmd Command) Result {
	cmd.reply = make(chan Result, 1)

	select {
	case p.commands <- cmd:
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}

	select {
	case res := <-cmd.reply:
		return res
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}

// Inspect runs fn on the processor goroutine, serialized with commands. It
// is the only safe way for other goroutines to read engine state while the
// loop is live; the snapshotter uses it to copy vault state.
func (p *Processor) Inspect(ctx context.Context, fn func(*Engine)) error {
	res := p.Submit(ctx, Command{inspect: fn})
	return res.Err
}

// Run drains the command channel until the context is cancelled. It is the
// only goroutine that touches the engine.
func (p *Processor) Run(ctx context.Context) {
	p.log.Info().Msg("command processor started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("command processor stopped")
			return
		case cmd := <-p.commands:
			cmd.reply <- p.apply(cmd)
		}
	}
}

func (p *Processor) apply(cmd Command) Result {
	if cmd.inspect != nil {
		cmd.inspect(p.engine)
		return Result{}
	}
	switch cmd.Type {
	case CmdOpenVault:
		id, err := p.engine.OpenVault(cmd.Actor)
		return Result{VaultID: id, Err: err}
	case CmdCloseVault:
		return Result{Err: p.engine.CloseVault(cmd.Actor, cmd.VaultID, cmd.Recipient)}
	case CmdDepositCollateral:
		return Result{Err: p.engine.DepositCollateral(cmd.Actor, cmd.VaultID, cmd.UnitID)}
	case CmdWithdrawCollateral:
		return Result{Err: p.engine.WithdrawCollateral(cmd.Actor, cmd.VaultID, cmd.UnitID)}
	case CmdMintDebt:
		return Result{Err: p.engine.MintDebt(cmd.Actor, cmd.VaultID, cmd.Amount)}
	case CmdBurnDebt:
		return Result{Err: p.engine.BurnDebt(cmd.Actor, cmd.VaultID, cmd.Amount)}
	case CmdLiquidate:
		return Result{Err: p.engine.Liquidate(cmd.Actor, cmd.VaultID)}
	case CmdSetFeeRate:
		return Result{Err: p.engine.SetStabilisationFeeRate(cmd.Actor, cmd.Rate)}
	case CmdPause:
		return Result{Err: p.engine.Pause(cmd.Actor)}
	case CmdUnpause:
		return Result{Err: p.engine.Unpause(cmd.Actor)}
	case CmdSetAccessMode:
		return Result{Err: p.engine.SetAccessMode(cmd.Actor, cmd.Private)}
	case CmdAllow:
		return Result{Err: p.engine.Allow(cmd.Actor, cmd.Subject)}
	case CmdDisallow:
		return Result{Err: p.engine.Disallow(cmd.Actor, cmd.Subject)}
	default:
		return Result{Err: fmt.Errorf("%w: unknown command type %q", vault.ErrValidationFailure, cmd.Type)}
	}
}

// QueueDepth reports current and maximum command queue occupancy.
func (p *Processor) QueueDepth() (size, capacity int) {
	return len(p.commands), cap(p.commands)
}

package access

import (
	"fmt"

	"github.com/google/uuid"

	"VaultLedger/internal/vault"
)

// Role is a capability consulted at the top of each operation.
type Role int

const (
	RoleAdmin Role = iota
	RoleOperator
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleOperator:
		return "operator"
	default:
		return "unknown"
	}
}

// RoleChecker is the external role store. The gate consults it; it never
// grants or revokes roles itself.
type RoleChecker interface {
	HasRole(actor uuid.UUID, role Role) bool
}

// StaticRoles is a fixed in-memory RoleChecker.
type StaticRoles struct {
	admins    map[uuid.UUID]bool
	operators map[uuid.UUID]bool
}

func NewStaticRoles() *StaticRoles {
	return &StaticRoles{
		admins:    make(map[uuid.UUID]bool),
		operators: make(map[uuid.UUID]bool),
	}
}

func (s *StaticRoles) GrantAdmin(actor uuid.UUID)    { s.admins[actor] = true }
func (s *StaticRoles) GrantOperator(actor uuid.UUID) { s.operators[actor] = true }

func (s *StaticRoles) HasRole(actor uuid.UUID, role Role) bool {
	switch role {
	case RoleAdmin:
		return s.admins[actor]
	case RoleOperator:
		return s.operators[actor]
	default:
		return false
	}
}

// Gate holds the mutable access state consulted before every operation:
// pause latch, public/private mode, and the deposit allow-list.
type Gate struct {
	roles     RoleChecker
	paused    bool
	private   bool
	allowList map[uuid.UUID]bool
}

// NewGate creates a gate in unpaused, private mode with an empty allow-list.
func NewGate(roles RoleChecker) *Gate {
	return &Gate{
		roles:     roles,
		private:   true,
		allowList: make(map[uuid.UUID]bool),
	}
}

// ForcePaused restores the pause latch during warm restart, bypassing role
// checks. Never call after startup.
func (g *Gate) ForcePaused(paused bool) { g.paused = paused }

// ForcePrivate restores the access mode during warm restart, bypassing role
// checks. Never call after startup.
func (g *Gate) ForcePrivate(private bool) { g.private = private }

// Paused reports the pause latch.
func (g *Gate) Paused() bool { return g.paused }

// Private reports whether allow-list enforcement is on.
func (g *Gate) Private() bool { return g.private }

// IsAllowed reports allow-list membership.
func (g *Gate) IsAllowed(actor uuid.UUID) bool { return g.allowList[actor] }

// RequireUnpaused rejects mutating operations while paused.
func (g *Gate) RequireUnpaused() error {
	if g.paused {
		return vault.ErrPaused
	}
	return nil
}

// RequireAdmin rejects actors without the admin role.
func (g *Gate) RequireAdmin(actor uuid.UUID) error {
	if !g.roles.HasRole(actor, RoleAdmin) {
		return fmt.Errorf("%w: %s is not admin", vault.ErrAccessDenied, actor)
	}
	return nil
}

// RequireOperatorOrAdmin rejects actors holding neither role.
func (g *Gate) RequireOperatorOrAdmin(actor uuid.UUID) error {
	if !g.roles.HasRole(actor, RoleOperator) && !g.roles.HasRole(actor, RoleAdmin) {
		return fmt.Errorf("%w: %s is neither operator nor admin", vault.ErrAccessDenied, actor)
	}
	return nil
}

// RequireCanOpen gates openVault: anyone in public mode, allow-list members
// in private mode.
func (g *Gate) RequireCanOpen(actor uuid.UUID) error {
	if !g.private || g.allowList[actor] {
		return nil
	}
	return fmt.Errorf("%w: %s not on allow-list", vault.ErrAccessDenied, actor)
}

// RequireCanDeposit gates depositCollateral: the vault owner always may;
// others only when allow-listed.
func (g *Gate) RequireCanDeposit(actor, owner uuid.UUID) error {
	if actor == owner || g.allowList[actor] {
		return nil
	}
	return fmt.Errorf("%w: %s may not deposit to vault owned by %s", vault.ErrAccessDenied, actor, owner)
}

// RequireOwner rejects anyone but the vault owner.
func (g *Gate) RequireOwner(actor, owner uuid.UUID) error {
	if actor != owner {
		return fmt.Errorf("%w: %s does not own this vault", vault.ErrAccessDenied, actor)
	}
	return nil
}

// Pause sets the pause latch. Operators and admins may pause.
func (g *Gate) Pause(actor uuid.UUID) error {
	if err := g.RequireOperatorOrAdmin(actor); err != nil {
		return err
	}
	g.paused = true
	return nil
}

// Unpause clears the pause latch. Admin only.
func (g *Gate) Unpause(actor uuid.UUID) error {
	if err := g.RequireAdmin(actor); err != nil {
		return err
	}
	g.paused = false
	return nil
}

// MakePrivate enables allow-list enforcement. Admin only.
func (g *Gate) MakePrivate(actor uuid.UUID) error {
	if err := g.RequireAdmin(actor); err != nil {
		return err
	}
	g.private = true
	return nil
}

// MakePublic disables allow-list enforcement. Admin only.
func (g *Gate) MakePublic(actor uuid.UUID) error {
	if err := g.RequireAdmin(actor); err != nil {
		return err
	}
	g.private = false
	return nil
}

// Allow adds an actor to the allow-list. Admin only.
func (g *Gate) Allow(actor, subject uuid.UUID) error {
	if err := g.RequireAdmin(actor); err != nil {
		return err
	}
	g.allowList[subject] = true
	return nil
}

// Disallow removes an actor from the allow-list. Admin only.
func (g *Gate) Disallow(actor, subject uuid.UUID) error {
	if err := g.RequireAdmin(actor); err != nil {
		return err
	}
	delete(g.allowList, subject)
	return nil
}

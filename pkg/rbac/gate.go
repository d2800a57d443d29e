package rbac

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the Gate.
var (
	// ErrUserNotFound indicates the user ID resolves to no profile.
	ErrUserNotFound = errors.New("user not found")

	// ErrPermissionDenied indicates the user may not mutate the policy.
	ErrPermissionDenied = errors.New("permission denied")
)

// PolicyMeta is the slice of a budget policy the Gate needs for its
// decision. The budget package supplies it so rbac does not depend on the
// policy type.
type PolicyMeta struct {
	// Name is the policy name (used in error messages only).
	Name string

	// System marks a seeded system policy.
	System bool

	// CreatedBy is the user ID that created the policy ("system" for
	// seeded policies).
	CreatedBy string
}

// Gate decides whether a user may mutate a given policy.
type Gate struct {
	registry *Registry
}

// NewGate creates a gate over the given profile registry.
func NewGate(registry *Registry) *Gate {
	return &Gate{registry: registry}
}

// CanModify reports whether the user may modify the policy described by
// meta. A policy is modifiable iff the profile has create or modify
// permission, and the policy is not a system policy, or the profile is a
// super admin, or the profile is the admin that created it.
func (g *Gate) CanModify(userID string, meta PolicyMeta) bool {
	profile, ok := g.registry.Get(userID)
	if !ok {
		return false
	}

	if !profile.CanModifyBudgets() {
		return false
	}

	if !meta.System {
		return true
	}

	switch profile.Role {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return meta.CreatedBy == userID
	default:
		return false
	}
}

// AssertCanMutate returns nil if the user may mutate the policy, or a
// wrapped ErrUserNotFound / ErrPermissionDenied otherwise.
func (g *Gate) AssertCanMutate(userID string, meta PolicyMeta) error {
	if _, ok := g.registry.Get(userID); !ok {
		return fmt.Errorf("%w: %q", ErrUserNotFound, userID)
	}

	if !g.CanModify(userID, meta) {
		return fmt.Errorf("%w: user %q may not mutate policy %q",
			ErrPermissionDenied, userID, meta.Name)
	}

	return nil
}

// AssertCanCreate returns nil if the user may create a brand-new policy.
// Creation has no ownership check since the policy does not yet exist.
func (g *Gate) AssertCanCreate(userID string) error {
	profile, ok := g.registry.Get(userID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUserNotFound, userID)
	}

	if !profile.CanModifyBudgets() {
		return fmt.Errorf("%w: user %q may not create policies",
			ErrPermissionDenied, userID)
	}

	return nil
}

package rbac

import (
	"sync"
	"time"
)

// Profile is a registered user with a role and its derived permissions.
type Profile struct {
	// UserID is the unique identifier for this user.
	UserID string

	// Username is the human-readable name.
	Username string

	// Role is the privilege tier.
	Role Role

	// Permissions is the set derived from Role at construction time.
	Permissions []Permission

	// CreatedAt is when the profile was first registered.
	CreatedAt time.Time

	// LastActive is the most recent activity timestamp.
	LastActive time.Time
}

// NewProfile creates a profile with permissions derived from the role.
func NewProfile(userID, username string, role Role) *Profile {
	now := time.Now()
	return &Profile{
		UserID:      userID,
		Username:    username,
		Role:        role,
		Permissions: PermissionsFor(role),
		CreatedAt:   now,
		LastActive:  now,
	}
}

// Has reports whether the profile holds the given permission.
func (p *Profile) Has(perm Permission) bool {
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// CanModifyBudgets reports whether the profile may create or modify
// budget policies at all (ownership checks are handled by the Gate).
func (p *Profile) CanModifyBudgets() bool {
	return p.Has(PermissionCreate) || p.Has(PermissionModify)
}

// Registry holds registered user profiles keyed by user ID.
//
// Registration is an idempotent upsert: re-registering a user ID replaces
// the previous profile. Profiles are never deleted individually; Reset
// clears the whole registry.
type Registry struct {
	profiles map[string]*Profile
	mu       sync.RWMutex
}

// NewRegistry creates an empty profile registry.
func NewRegistry() *Registry {
	return &Registry{
		profiles: make(map[string]*Profile),
	}
}

// Register adds or replaces a profile.
func (r *Registry) Register(profile *Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.UserID] = profile
}

// Get returns the profile for a user ID, if registered.
func (r *Registry) Get(userID string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, ok := r.profiles[userID]
	return profile, ok
}

// IsAdmin reports whether the user holds an admin or super-admin role.
func (r *Registry) IsAdmin(userID string) bool {
	profile, ok := r.Get(userID)
	if !ok {
		return false
	}
	return profile.Role == RoleAdmin || profile.Role == RoleSuperAdmin
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// Reset removes all registered profiles.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = make(map[string]*Profile)
}

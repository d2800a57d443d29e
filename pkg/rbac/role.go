package rbac

// Role identifies a user's privilege tier. Ordering of privilege is
// RoleUser < RoleAdmin < RoleSuperAdmin.
type Role string

const (
	// RoleUser is a regular user with read-only access.
	RoleUser Role = "user"

	// RoleAdmin can create and modify non-system policies.
	RoleAdmin Role = "admin"

	// RoleSuperAdmin has full control, including overrides.
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Permission is a capability over budget policies.
type Permission string

const (
	// PermissionView allows reading policies and usage.
	PermissionView Permission = "view"

	// PermissionCreate allows creating new policies.
	PermissionCreate Permission = "create"

	// PermissionModify allows modifying existing policies.
	PermissionModify Permission = "modify"

	// PermissionDelete allows deleting non-system policies.
	PermissionDelete Permission = "delete"

	// PermissionOverride allows temporarily overriding limits.
	PermissionOverride Permission = "override"
)

// PermissionsFor returns the permission set derived from a role.
// Permissions are a pure function of role; they are never assigned
// independently.
func PermissionsFor(role Role) []Permission {
	switch role {
	case RoleAdmin:
		return []Permission{PermissionView, PermissionCreate, PermissionModify}
	case RoleSuperAdmin:
		return []Permission{
			PermissionView,
			PermissionCreate,
			PermissionModify,
			PermissionDelete,
			PermissionOverride,
		}
	default:
		return []Permission{PermissionView}
	}
}

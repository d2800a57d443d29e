package budget

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	// ErrPolicyNotFound indicates a named policy does not exist. Check
	// never returns it (admission fails open); mutation paths do.
	ErrPolicyNotFound = errors.New("budget policy not found")

	// ErrInvalidPolicy indicates a policy violates its construction
	// invariants (limit <= 0, soft limit >= hard limit).
	ErrInvalidPolicy = errors.New("invalid budget policy")

	// ErrSystemPolicy indicates an attempt to delete a system policy.
	// System policies are permanently undeletable for every role.
	ErrSystemPolicy = errors.New("system policy is protected")
)

// errInvalid wraps ErrInvalidPolicy with a formatted detail message.
func errInvalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPolicy, fmt.Sprintf(format, args...))
}

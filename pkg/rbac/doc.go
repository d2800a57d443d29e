// Package rbac provides role-based access control for budget policy mutation.
//
// # Overview
//
// Callers are identified by a user ID that resolves to a Profile. Each
// profile carries a Role, and permissions are derived purely from that role
// at construction time - there are no ad-hoc grants. The Gate answers one
// question: may this user mutate this policy?
//
// # Roles
//
//   - user: view only
//   - admin: view, create, modify
//   - super_admin: all permissions including delete and override
//
// # Usage
//
//	registry := rbac.NewRegistry()
//	registry.Register(rbac.NewProfile("alice", "Alice", rbac.RoleAdmin))
//
//	gate := rbac.NewGate(registry)
//	if err := gate.AssertCanMutate("alice", meta); err != nil {
//	    return err
//	}
//
// Gate decisions are pure reads over in-memory state; nothing in this
// package performs I/O.
package rbac

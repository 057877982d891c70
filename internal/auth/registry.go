package auth

import (
	"context"
	"errors"
)

// Registry resolves a role to its granted permission set. It holds no
// mutable state of its own; caching the result per session is the
// gateway's responsibility.
type Registry struct {
	perms PermissionStore
}

// NewRegistry constructs a Registry over the permission store.
func NewRegistry(perms PermissionStore) (*Registry, error) {
	if perms == nil {
		return nil, errors.New("permission store is required")
	}
	return &Registry{perms: perms}, nil
}

// EnsureBuiltins makes sure the predefined permission catalog exists.
func (r *Registry) EnsureBuiltins(ctx context.Context) error {
	return r.perms.Ensure(ctx, BuiltinPermissions)
}

// Resolve returns all permissions granted to roleID. An unknown role
// resolves to an empty set: absence of permission, not an error.
func (r *Registry) Resolve(ctx context.Context, roleID string) (PermissionSet, error) {
	if roleID == "" {
		return PermissionSet{}, nil
	}
	list, err := r.perms.ForRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PermissionSet{}, nil
		}
		return nil, err
	}
	return NewPermissionSet(list), nil
}

package auth

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryResolve(t *testing.T) {
	perms := &fakePermissionStore{byRole: map[string][]Permission{
		"editor": {{Key: PermMarkerView}, {Key: PermMarkerEdit}},
	}}
	r, err := NewRegistry(perms)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	ctx := context.Background()

	set, err := r.Resolve(ctx, "editor")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !set.Has(PermMarkerView) || !set.Has(PermMarkerEdit) || set.Has(PermMarkerDelete) {
		t.Fatalf("unexpected set: %v", set)
	}
}

func TestRegistryResolveUnknownRole(t *testing.T) {
	r, err := NewRegistry(&fakePermissionStore{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	for _, roleID := range []string{"ghost", ""} {
		set, err := r.Resolve(context.Background(), roleID)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", roleID, err)
		}
		if len(set) != 0 {
			t.Fatalf("Resolve(%q) = %v, want empty set", roleID, set)
		}
	}
}

func TestRegistryResolveStoreError(t *testing.T) {
	r, err := NewRegistry(&fakePermissionStore{err: errStoreDown})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, err := r.Resolve(context.Background(), "editor"); !errors.Is(err, errStoreDown) {
		t.Fatalf("store error must propagate, got %v", err)
	}
}

func TestRegistryEnsureBuiltins(t *testing.T) {
	perms := &fakePermissionStore{}
	r, err := NewRegistry(perms)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := r.EnsureBuiltins(context.Background()); err != nil {
		t.Fatalf("EnsureBuiltins: %v", err)
	}
	if len(perms.ensured) != len(BuiltinPermissions) {
		t.Fatalf("ensured %d permissions, want %d", len(perms.ensured), len(BuiltinPermissions))
	}
}

package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"trailmark.org/internal/auth"
)

func TestFindByUsername(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("select id, username, password_hash, role_id, active, last_login_at, created_at, updated_at").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "password_hash", "role_id", "active", "last_login_at", "created_at", "updated_at",
		}).AddRow("u1", "alice", "$2a$10$hash", "r1", true, nil, now, now))

	cred, err := store.Credentials().FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if cred.ID != "u1" || cred.RoleID != "r1" || !cred.Active || cred.LastLoginAt != nil {
		t.Fatalf("unexpected credential: %+v", cred)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindByUsernameNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, username, password_hash").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Credentials().FindByUsername(context.Background(), "ghost"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTouchLastLogin(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("update credentials set last_login_at").
		WithArgs("u1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Credentials().TouchLastLogin(context.Background(), "u1", at); err != nil {
		t.Fatalf("TouchLastLogin: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleFind(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("select id, name, display_name, is_system").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "display_name", "is_system", "created_at", "updated_at",
		}).AddRow("r1", "admin", "Administrator", true, now, now))

	role, err := store.Roles().Find(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if role.Name != "admin" || !role.System {
		t.Fatalf("unexpected role: %+v", role)
	}

	mock.ExpectQuery("select id, name, display_name, is_system").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Roles().Find(context.Background(), "ghost"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionEnsureIsIdempotentInsert(t *testing.T) {
	store, mock := newMockStore(t)
	perms := []auth.Permission{
		{Key: "marker.view", Category: "marker", Description: "View asset markers"},
		{Key: "marker.edit", Category: "marker", Description: "Create and edit asset markers"},
	}
	for range perms {
		mock.ExpectExec("insert into permissions").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	if err := store.Permissions().Ensure(context.Background(), perms); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetForRoleReplacesGrants(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("delete from role_permissions").
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	for range []string{"marker.view", "marker.edit"} {
		mock.ExpectExec("insert into role_permissions").
			WithArgs("r1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err := store.Permissions().SetForRole(context.Background(), "r1", []string{"marker.view", "marker.edit"})
	if err != nil {
		t.Fatalf("SetForRole: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestForRole(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("join role_permissions").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "key", "category", "description", "created_at",
		}).AddRow("p1", "marker.view", "marker", "View asset markers", now).
			AddRow("p2", "marker.edit", "marker", "Create and edit asset markers", now))

	perms, err := store.Permissions().ForRole(context.Background(), "r1")
	if err != nil {
		t.Fatalf("ForRole: %v", err)
	}
	if len(perms) != 2 || perms[0].Key != "marker.view" {
		t.Fatalf("unexpected permissions: %+v", perms)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

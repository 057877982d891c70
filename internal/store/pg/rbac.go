package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trailmark.org/internal/auth"
	"trailmark.org/internal/ids"
)

// Credential store ---------------------------------------------------------

type credentialStore struct{ db *sql.DB }

func (s *credentialStore) FindByUsername(ctx context.Context, username string) (*auth.Credential, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, username, password_hash, role_id, active, last_login_at, created_at, updated_at
		from credentials
		where username = $1
	`, username)
	var c auth.Credential
	if err := row.Scan(&c.ID, &c.Username, &c.PasswordHash, &c.RoleID, &c.Active, &c.LastLoginAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *credentialStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update credentials set last_login_at = $2, updated_at = now() where id = $1`, id, at)
	return err
}

// Role store ---------------------------------------------------------------

type roleStore struct{ db *sql.DB }

func (s *roleStore) Find(ctx context.Context, id string) (*auth.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, display_name, is_system, created_at, updated_at
		from roles
		where id = $1
	`, id)
	var role auth.Role
	if err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.System, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// Permission store ---------------------------------------------------------

type permissionStore struct{ db *sql.DB }

func (s *permissionStore) Ensure(ctx context.Context, perms []auth.Permission) error {
	for _, p := range perms {
		if p.ID == "" {
			p.ID = ids.New()
		}
		_, err := s.db.ExecContext(ctx, `
			insert into permissions(id, key, category, description)
			values ($1, $2, $3, $4)
			on conflict (key) do nothing
		`, p.ID, p.Key, p.Category, p.Description)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *permissionStore) List(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, key, category, description, created_at from permissions order by key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Category, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *permissionStore) SetForRole(ctx context.Context, roleID string, keys []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, key := range keys {
		_, err := tx.ExecContext(ctx, `
			insert into role_permissions(role_id, permission_id)
			select $1, id from permissions where key = $2
		`, roleID, key)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return auth.ErrNotFound
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *permissionStore) ForRole(ctx context.Context, roleID string) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.key, p.category, p.description, p.created_at
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id = $1
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Category, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

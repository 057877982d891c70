package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trailmark.org/internal/ids"
)

// attemptStore is the append-only login attempt log. Writes are append-
// or delete-only so retention sweeps can run against live traffic.
type attemptStore struct{ db *sql.DB }

// AppendFailure inserts the failure and counts in-window failures in one
// round trip. The data-modifying CTE's row is not visible to the sibling
// select, hence the +1; two truly simultaneous statements can still each
// see a sub-threshold count, an accepted over-admission bounded at one
// attempt.
func (s *attemptStore) AppendFailure(ctx context.Context, username, origin string, at, windowStart time.Time) (int, error) {
	var prior int
	err := s.db.QueryRowContext(ctx, `
		with ins as (
			insert into login_attempts(id, origin, username, occurred_at, success)
			values ($1, $2, $3, $4, false)
		)
		select count(*) from login_attempts
		where origin = $2 and success = false and occurred_at > $5
	`, ids.New(), origin, username, at, windowStart).Scan(&prior)
	if err != nil {
		return 0, err
	}
	return prior + 1, nil
}

func (s *attemptStore) AppendSuccess(ctx context.Context, username, origin string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		insert into login_attempts(id, origin, username, occurred_at, success)
		values ($1, $2, $3, $4, true)
	`, ids.New(), origin, username, at)
	return err
}

// SetLock stamps the most recent failure row for origin. The predicate
// keeps the lock monotonic: an existing later expiry is never shortened.
func (s *attemptStore) SetLock(ctx context.Context, origin string, until time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		update login_attempts set locked_until = $2
		where id = (
			select id from login_attempts
			where origin = $1 and success = false
			order by id desc limit 1
		)
		and (locked_until is null or locked_until < $2)
	`, origin, until)
	return err
}

func (s *attemptStore) LatestLockExpiry(ctx context.Context, origin string) (time.Time, error) {
	var until sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		select max(locked_until) from login_attempts where origin = $1
	`, origin).Scan(&until)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	if !until.Valid {
		return time.Time{}, nil
	}
	return until.Time, nil
}

func (s *attemptStore) CountFailuresSince(ctx context.Context, origin string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from login_attempts
		where origin = $1 and success = false and occurred_at > $2
	`, origin, since).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ClearFailures drops unlocked failure rows for origin after a
// successful login. Rows carrying a lock stay so the lock remains
// derivable until it expires.
func (s *attemptStore) ClearFailures(ctx context.Context, origin string) error {
	_, err := s.db.ExecContext(ctx, `
		delete from login_attempts
		where origin = $1 and success = false and locked_until is null
	`, origin)
	return err
}

func (s *attemptStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from login_attempts where occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

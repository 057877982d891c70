package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeAttemptStore is an in-memory stand-in for the Postgres attempt
// log, matching its append/delete-only semantics.
type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts []LoginAttempt
	failErr  error
	nextID   int
}

func (s *fakeAttemptStore) AppendFailure(_ context.Context, username, origin string, at, windowStart time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, s.failErr
	}
	s.nextID++
	s.attempts = append(s.attempts, LoginAttempt{
		Origin: origin, Username: username, OccurredAt: at,
	})
	count := 0
	for _, a := range s.attempts {
		if a.Origin == origin && !a.Success && a.OccurredAt.After(windowStart) {
			count++
		}
	}
	return count, nil
}

func (s *fakeAttemptStore) AppendSuccess(_ context.Context, username, origin string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, LoginAttempt{
		Origin: origin, Username: username, OccurredAt: at, Success: true,
	})
	return nil
}

func (s *fakeAttemptStore) SetLock(_ context.Context, origin string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.attempts) - 1; i >= 0; i-- {
		a := &s.attempts[i]
		if a.Origin == origin && !a.Success {
			if a.LockedUntil == nil || a.LockedUntil.Before(until) {
				u := until
				a.LockedUntil = &u
			}
			return nil
		}
	}
	return nil
}

func (s *fakeAttemptStore) LatestLockExpiry(_ context.Context, origin string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest time.Time
	for _, a := range s.attempts {
		if a.Origin == origin && a.LockedUntil != nil && a.LockedUntil.After(latest) {
			latest = *a.LockedUntil
		}
	}
	return latest, nil
}

func (s *fakeAttemptStore) CountFailuresSince(_ context.Context, origin string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, a := range s.attempts {
		if a.Origin == origin && !a.Success && a.OccurredAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *fakeAttemptStore) ClearFailures(_ context.Context, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.attempts[:0]
	for _, a := range s.attempts {
		if a.Origin == origin && !a.Success && a.LockedUntil == nil {
			continue
		}
		kept = append(kept, a)
	}
	s.attempts = kept
	return nil
}

func (s *fakeAttemptStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	kept := s.attempts[:0]
	for _, a := range s.attempts {
		if a.OccurredAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.attempts = kept
	return removed, nil
}

type fakeCredentialStore struct {
	creds     map[string]*Credential
	findCalls int
	findErr   error
	touched   map[string]time.Time
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{creds: map[string]*Credential{}, touched: map[string]time.Time{}}
}

func (s *fakeCredentialStore) FindByUsername(_ context.Context, username string) (*Credential, error) {
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	cred, ok := s.creds[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *cred
	return &cp, nil
}

func (s *fakeCredentialStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.touched[id] = at
	return nil
}

type fakeRoleStore struct {
	roles map[string]*Role
}

func (s *fakeRoleStore) Find(_ context.Context, id string) (*Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *role
	return &cp, nil
}

type fakePermissionStore struct {
	byRole  map[string][]Permission
	ensured []Permission
	err     error
}

func (s *fakePermissionStore) Ensure(_ context.Context, perms []Permission) error {
	s.ensured = append(s.ensured, perms...)
	return s.err
}

func (s *fakePermissionStore) List(_ context.Context) ([]Permission, error) {
	var all []Permission
	for _, perms := range s.byRole {
		all = append(all, perms...)
	}
	return all, s.err
}

func (s *fakePermissionStore) SetForRole(_ context.Context, roleID string, keys []string) error {
	perms := make([]Permission, 0, len(keys))
	for _, k := range keys {
		perms = append(perms, Permission{Key: k})
	}
	if s.byRole == nil {
		s.byRole = map[string][]Permission{}
	}
	s.byRole[roleID] = perms
	return s.err
}

func (s *fakePermissionStore) ForRole(_ context.Context, roleID string) ([]Permission, error) {
	if s.err != nil {
		return nil, s.err
	}
	perms, ok := s.byRole[roleID]
	if !ok {
		return nil, ErrNotFound
	}
	return perms, nil
}

type fakeStore struct {
	creds    *fakeCredentialStore
	roles    *fakeRoleStore
	perms    *fakePermissionStore
	attempts *fakeAttemptStore
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		creds:    newFakeCredentialStore(),
		roles:    &fakeRoleStore{roles: map[string]*Role{}},
		perms:    &fakePermissionStore{byRole: map[string][]Permission{}},
		attempts: &fakeAttemptStore{},
	}
}

func (s *fakeStore) Credentials() CredentialStore { return s.creds }
func (s *fakeStore) Roles() RoleStore             { return s.roles }
func (s *fakeStore) Permissions() PermissionStore { return s.perms }
func (s *fakeStore) Attempts() AttemptStore       { return s.attempts }

var errStoreDown = errors.New("store down")

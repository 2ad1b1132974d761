// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Pagination bounds for admin listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Stats summarizes the credential store for the admin surface.
type Stats struct {
	Accounts     int64
	Machines     int64
	LiveSessions int64
}

// AdminService provides the administrative operations behind the admin
// endpoints: listings, cascading account deletion, machine unbinding, and
// the optional expired-token sweep.
type AdminService struct {
	accounts AccountRepository
	bindings MachineBindingRepository
	sessions SessionTokenRepository
	launches LaunchTokenRepository
	now      func() time.Time
}

// NewAdminService creates a new AdminService. now may be nil, in which
// case time.Now is used.
func NewAdminService(accounts AccountRepository, bindings MachineBindingRepository, sessions SessionTokenRepository, launches LaunchTokenRepository, now func() time.Time) (*AdminService, error) {
	if accounts == nil {
		return nil, oops.Code("ADMIN_NIL_DEPENDENCY").Errorf("accounts repository is required")
	}
	if bindings == nil {
		return nil, oops.Code("ADMIN_NIL_DEPENDENCY").Errorf("bindings repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("ADMIN_NIL_DEPENDENCY").Errorf("sessions repository is required")
	}
	if launches == nil {
		return nil, oops.Code("ADMIN_NIL_DEPENDENCY").Errorf("launches repository is required")
	}
	if now == nil {
		now = time.Now
	}
	return &AdminService{
		accounts: accounts,
		bindings: bindings,
		sessions: sessions,
		launches: launches,
		now:      now,
	}, nil
}

// clampPage normalizes 1-based page/size inputs into an offset and limit.
func clampPage(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return (page - 1) * size, size
}

// Stats returns store-wide counts.
func (s *AdminService) Stats(ctx context.Context) (Stats, error) {
	accounts, err := s.accounts.Count(ctx)
	if err != nil {
		return Stats{}, oops.Code("ADMIN_STATS_FAILED").With("operation", "count accounts").Wrap(err)
	}
	machines, err := s.bindings.CountMachines(ctx)
	if err != nil {
		return Stats{}, oops.Code("ADMIN_STATS_FAILED").With("operation", "count machines").Wrap(err)
	}
	live, err := s.sessions.CountLive(ctx, s.now())
	if err != nil {
		return Stats{}, oops.Code("ADMIN_STATS_FAILED").With("operation", "count live sessions").Wrap(err)
	}
	return Stats{Accounts: accounts, Machines: machines, LiveSessions: live}, nil
}

// ListAccounts returns a page of accounts whose handle contains search.
func (s *AdminService) ListAccounts(ctx context.Context, search string, page, size int) ([]*Account, int64, error) {
	offset, limit := clampPage(page, size)
	accounts, total, err := s.accounts.List(ctx, search, offset, limit)
	if err != nil {
		return nil, 0, oops.Code("ADMIN_LIST_ACCOUNTS_FAILED").
			With("search", search).
			Wrap(err)
	}
	return accounts, total, nil
}

// DeleteAccount removes an account with its machine bindings and session
// tokens. Cascading is transactional; no orphaned rows survive a failure.
func (s *AdminService) DeleteAccount(ctx context.Context, id ulid.ULID) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		return err //nolint:wrapcheck // Repo wraps with oops codes already
	}
	return nil
}

// ListSessions returns a page of currently live sessions.
func (s *AdminService) ListSessions(ctx context.Context, page, size int) ([]*SessionToken, int64, error) {
	offset, limit := clampPage(page, size)
	sessions, total, err := s.sessions.ListLive(ctx, s.now(), offset, limit)
	if err != nil {
		return nil, 0, oops.Code("ADMIN_LIST_SESSIONS_FAILED").Wrap(err)
	}
	return sessions, total, nil
}

// ListMachines returns all machine bindings grouped by machine identifier.
func (s *AdminService) ListMachines(ctx context.Context) ([]MachineAccounts, error) {
	machines, err := s.bindings.ListGrouped(ctx)
	if err != nil {
		return nil, oops.Code("ADMIN_LIST_MACHINES_FAILED").Wrap(err)
	}
	return machines, nil
}

// UnbindMachine force-removes every binding for a machine identifier,
// freeing it to register new accounts. Returns the number of bindings
// removed.
func (s *AdminService) UnbindMachine(ctx context.Context, machineID string) (int64, error) {
	if machineID == "" {
		return 0, oops.Code("ADMIN_INVALID_MACHINE").Errorf("machine identifier cannot be empty")
	}
	removed, err := s.bindings.DeleteByMachine(ctx, machineID)
	if err != nil {
		return 0, oops.Code("ADMIN_UNBIND_FAILED").
			With("machine_id", machineID).
			Wrap(err)
	}
	return removed, nil
}

// PurgeExpired deletes expired session and launch tokens. This is storage
// hygiene only: expiry is always checked lazily at verification time, so
// correctness never depends on this sweep running.
func (s *AdminService) PurgeExpired(ctx context.Context) (sessions, launches int64, err error) {
	now := s.now()
	sessions, err = s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, 0, oops.Code("ADMIN_PURGE_FAILED").With("operation", "delete expired sessions").Wrap(err)
	}
	launches, err = s.launches.DeleteExpired(ctx, now)
	if err != nil {
		return sessions, 0, oops.Code("ADMIN_PURGE_FAILED").With("operation", "delete expired launch tokens").Wrap(err)
	}
	return sessions, launches, nil
}

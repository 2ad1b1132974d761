// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

// Package authtest provides in-memory repository implementations for
// exercising the auth services without a database.
package authtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/Maggotxy/cube-recall/internal/auth"
)

// Store backs every auth repository interface with maps. All methods are
// safe for concurrent use. The zero value is not usable; call NewStore.
type Store struct {
	mu       sync.Mutex
	accounts map[ulid.ULID]*auth.Account
	bindings []*auth.MachineBinding
	sessions map[ulid.ULID]*auth.SessionToken
	launches []*auth.LaunchToken
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[ulid.ULID]*auth.Account),
		sessions: make(map[ulid.ULID]*auth.SessionToken),
	}
}

// Accounts returns the AccountRepository view of the store.
func (s *Store) Accounts() auth.AccountRepository { return (*accountRepo)(s) }

// Bindings returns the MachineBindingRepository view of the store.
func (s *Store) Bindings() auth.MachineBindingRepository { return (*bindingRepo)(s) }

// Sessions returns the SessionTokenRepository view of the store.
func (s *Store) Sessions() auth.SessionTokenRepository { return (*sessionRepo)(s) }

// Launches returns the LaunchTokenRepository view of the store.
func (s *Store) Launches() auth.LaunchTokenRepository { return (*launchRepo)(s) }

func copyAccount(a *auth.Account) *auth.Account {
	dup := *a
	if a.LockedUntil != nil {
		t := *a.LockedUntil
		dup.LockedUntil = &t
	}
	return &dup
}

func copySession(s *auth.SessionToken) *auth.SessionToken {
	dup := *s
	return &dup
}

type accountRepo Store

var _ auth.AccountRepository = (*accountRepo)(nil)

func (r *accountRepo) CreateWithBinding(_ context.Context, account *auth.Account, maxPerMachine int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Handle == account.Handle {
			return oops.Code("ACCOUNT_DUPLICATE").Wrap(auth.ErrDuplicateHandle)
		}
	}

	bound := 0
	for _, b := range r.bindings {
		if b.MachineID == account.MachineID {
			bound++
		}
	}
	if !auth.CanRegister(bound, maxPerMachine) {
		return oops.Code("ACCOUNT_MACHINE_LIMIT").
			With("machine_id", account.MachineID).
			Wrap(auth.ErrMachineLimit)
	}

	r.accounts[account.ID] = copyAccount(account)
	r.bindings = append(r.bindings, &auth.MachineBinding{
		ID:        ulid.Make(),
		MachineID: account.MachineID,
		Handle:    account.Handle,
		CreatedAt: time.Now(),
	})
	return nil
}

func (r *accountRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return copyAccount(account), nil
}

func (r *accountRepo) GetByHandle(_ context.Context, handle string) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if account.Handle == handle {
			return copyAccount(account), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *accountRepo) Update(_ context.Context, account *auth.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.ID]; !ok {
		return auth.ErrNotFound
	}
	r.accounts[account.ID] = copyAccount(account)
	return nil
}

func (r *accountRepo) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return auth.ErrNotFound
	}

	kept := r.bindings[:0]
	for _, b := range r.bindings {
		if b.Handle != account.Handle {
			kept = append(kept, b)
		}
	}
	r.bindings = kept

	for sid, sess := range r.sessions {
		if sess.AccountID == id {
			delete(r.sessions, sid)
		}
	}

	keptLaunches := r.launches[:0]
	for _, lt := range r.launches {
		if lt.Handle != account.Handle {
			keptLaunches = append(keptLaunches, lt)
		}
	}
	r.launches = keptLaunches

	delete(r.accounts, id)
	return nil
}

func (r *accountRepo) List(_ context.Context, search string, offset, limit int) ([]*auth.Account, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*auth.Account
	for _, account := range r.accounts {
		if search == "" || strings.Contains(account.Handle, search) {
			matched = append(matched, copyAccount(account))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *accountRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.accounts)), nil
}

type bindingRepo Store

var _ auth.MachineBindingRepository = (*bindingRepo)(nil)

func (r *bindingRepo) CountByMachine(_ context.Context, machineID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, b := range r.bindings {
		if b.MachineID == machineID {
			count++
		}
	}
	return count, nil
}

func (r *bindingRepo) CountMachines(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{})
	for _, b := range r.bindings {
		seen[b.MachineID] = struct{}{}
	}
	return int64(len(seen)), nil
}

func (r *bindingRepo) ListGrouped(_ context.Context) ([]auth.MachineAccounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	grouped := make(map[string][]string)
	var order []string
	for _, b := range r.bindings {
		if _, ok := grouped[b.MachineID]; !ok {
			order = append(order, b.MachineID)
		}
		grouped[b.MachineID] = append(grouped[b.MachineID], b.Handle)
	}

	out := make([]auth.MachineAccounts, 0, len(order))
	for _, machineID := range order {
		out = append(out, auth.MachineAccounts{
			MachineID: machineID,
			Handles:   grouped[machineID],
		})
	}
	return out, nil
}

func (r *bindingRepo) DeleteByMachine(_ context.Context, machineID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	kept := r.bindings[:0]
	for _, b := range r.bindings {
		if b.MachineID == machineID {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	r.bindings = kept
	return removed, nil
}

type sessionRepo Store

var _ auth.SessionTokenRepository = (*sessionRepo)(nil)

func (r *sessionRepo) Replace(_ context.Context, session *auth.SessionToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.sessions {
		if existing.AccountID == session.AccountID {
			delete(r.sessions, id)
		}
	}
	r.sessions[session.ID] = copySession(session)
	return nil
}

func (r *sessionRepo) GetByToken(_ context.Context, token string) (*auth.SessionToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sess := range r.sessions {
		if sess.Token == token {
			return copySession(sess), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *sessionRepo) GetLiveByAccount(_ context.Context, accountID ulid.ULID, now time.Time) (*auth.SessionToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newest *auth.SessionToken
	for _, sess := range r.sessions {
		if sess.AccountID != accountID || !sess.ExpiresAt.After(now) {
			continue
		}
		if newest == nil || sess.CreatedAt.After(newest.CreatedAt) {
			newest = sess
		}
	}
	if newest == nil {
		return nil, auth.ErrNotFound
	}
	return copySession(newest), nil
}

func (r *sessionRepo) UpdateClientIP(_ context.Context, id ulid.ULID, clientIP string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return auth.ErrNotFound
	}
	sess.ClientIP = clientIP
	return nil
}

func (r *sessionRepo) ListLive(_ context.Context, now time.Time, offset, limit int) ([]*auth.SessionToken, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var live []*auth.SessionToken
	for _, sess := range r.sessions {
		if sess.ExpiresAt.After(now) {
			live = append(live, copySession(sess))
		}
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].CreatedAt.After(live[j].CreatedAt)
	})

	total := int64(len(live))
	if offset >= len(live) {
		return nil, total, nil
	}
	live = live[offset:]
	if limit < len(live) {
		live = live[:limit]
	}
	return live, total, nil
}

func (r *sessionRepo) CountLive(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, sess := range r.sessions {
		if sess.ExpiresAt.After(now) {
			count++
		}
	}
	return count, nil
}

func (r *sessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, sess := range r.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

type launchRepo Store

var _ auth.LaunchTokenRepository = (*launchRepo)(nil)

func (r *launchRepo) Replace(_ context.Context, token *auth.LaunchToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.launches[:0]
	for _, lt := range r.launches {
		if lt.Handle == token.Handle && !lt.Used {
			continue
		}
		kept = append(kept, lt)
	}
	dup := *token
	r.launches = append(kept, &dup)
	return nil
}

func (r *launchRepo) Redeem(_ context.Context, handle, token string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, lt := range r.launches {
		if lt.Handle == handle && lt.Token == token && !lt.Used && lt.ExpiresAt.After(now) {
			lt.Used = true
			return true, nil
		}
	}
	return false, nil
}

func (r *launchRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	kept := r.launches[:0]
	for _, lt := range r.launches {
		if !lt.ExpiresAt.After(now) {
			removed++
			continue
		}
		kept = append(kept, lt)
	}
	r.launches = kept
	return removed, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/Maggotxy/cube-recall/internal/auth"
)

// SessionTokenRepository implements auth.SessionTokenRepository using
// PostgreSQL.
type SessionTokenRepository struct {
	db Querier
}

// NewSessionTokenRepository creates a new SessionTokenRepository.
func NewSessionTokenRepository(db Querier) *SessionTokenRepository {
	return &SessionTokenRepository{db: db}
}

// Replace deletes all session tokens for the owning account and inserts
// the new one, in one transaction. The at-most-one-session-per-account
// invariant holds even under concurrent logins: both the delete and the
// insert commit together or not at all.
func (r *SessionTokenRepository) Replace(ctx context.Context, session *auth.SessionToken) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return oops.Code("SESSION_REPLACE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }() //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		DELETE FROM session_tokens WHERE account_id = $1
	`, session.AccountID.String())
	if err != nil {
		return oops.Code("SESSION_REPLACE_FAILED").
			With("operation", "delete prior sessions").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO session_tokens (id, account_id, handle, token, client_ip, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		session.ID.String(),
		session.AccountID.String(),
		session.Handle,
		session.Token,
		session.ClientIP,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_REPLACE_FAILED").
			With("operation", "insert session").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("SESSION_REPLACE_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return nil
}

// GetByToken retrieves a session by its exact token string.
func (r *SessionTokenRepository) GetByToken(ctx context.Context, token string) (*auth.SessionToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, account_id, handle, token, client_ip, expires_at, created_at
		FROM session_tokens
		WHERE token = $1
	`, token)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").Wrap(err)
	}
	return session, nil
}

// GetLiveByAccount retrieves the account's newest unexpired session.
func (r *SessionTokenRepository) GetLiveByAccount(ctx context.Context, accountID ulid.ULID, now time.Time) (*auth.SessionToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, account_id, handle, token, client_ip, expires_at, created_at
		FROM session_tokens
		WHERE account_id = $1 AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1
	`, accountID.String(), now)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("account_id", accountID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_LIVE_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return session, nil
}

// UpdateClientIP rewrites the stored address for a session in place.
func (r *SessionTokenRepository) UpdateClientIP(ctx context.Context, id ulid.ULID, clientIP string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE session_tokens SET client_ip = $2 WHERE id = $1
	`, id.String(), clientIP)
	if err != nil {
		return oops.Code("SESSION_UPDATE_IP_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ListLive returns a page of unexpired sessions, newest first, plus the
// total live count.
func (r *SessionTokenRepository) ListLive(ctx context.Context, now time.Time, offset, limit int) ([]*auth.SessionToken, int64, error) {
	total, err := r.CountLive(ctx, now)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, handle, token, client_ip, expires_at, created_at
		FROM session_tokens
		WHERE expires_at > $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`, now, offset, limit)
	if err != nil {
		return nil, 0, oops.Code("SESSION_LIST_FAILED").Wrap(err)
	}
	defer rows.Close()

	var sessions []*auth.SessionToken
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, oops.Code("SESSION_SCAN_FAILED").Wrap(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, oops.Code("SESSION_ROWS_ERROR").Wrap(err)
	}

	return sessions, total, nil
}

// CountLive returns the number of unexpired sessions.
func (r *SessionTokenRepository) CountLive(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM session_tokens WHERE expires_at > $1
	`, now).Scan(&count)
	if err != nil {
		return 0, oops.Code("SESSION_COUNT_LIVE_FAILED").Wrap(err)
	}
	return count, nil
}

// DeleteExpired removes sessions expired at the given instant.
func (r *SessionTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM session_tokens WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans a single row into a SessionToken. Callers are
// responsible for handling pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.SessionToken, error) {
	var (
		idStr        string
		accountIDStr string
		handle       string
		token        string
		clientIP     string
		expiresAt    time.Time
		createdAt    time.Time
	)

	err := row.Scan(&idStr, &accountIDStr, &handle, &token, &clientIP, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	accountID, err := ulid.Parse(accountIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT_ID").
			With("account_id", accountIDStr).
			Wrap(err)
	}

	return &auth.SessionToken{
		ID:        id,
		AccountID: accountID,
		Handle:    handle,
		Token:     token,
		ClientIP:  clientIP,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.SessionTokenRepository = (*SessionTokenRepository)(nil)

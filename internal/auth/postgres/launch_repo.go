// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/Maggotxy/cube-recall/internal/auth"
)

// LaunchTokenRepository implements auth.LaunchTokenRepository using
// PostgreSQL.
type LaunchTokenRepository struct {
	db Querier
}

// NewLaunchTokenRepository creates a new LaunchTokenRepository.
func NewLaunchTokenRepository(db Querier) *LaunchTokenRepository {
	return &LaunchTokenRepository{db: db}
}

// Replace deletes any unused launch tokens for the owning handle and
// inserts the new one, in one transaction.
func (r *LaunchTokenRepository) Replace(ctx context.Context, token *auth.LaunchToken) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return oops.Code("LAUNCH_REPLACE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }() //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		DELETE FROM launch_tokens WHERE handle = $1 AND NOT used
	`, token.Handle)
	if err != nil {
		return oops.Code("LAUNCH_REPLACE_FAILED").
			With("operation", "delete prior tokens").
			With("handle", token.Handle).
			Wrap(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO launch_tokens (id, handle, token, used, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		token.ID.String(),
		token.Handle,
		token.Token,
		token.Used,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return oops.Code("LAUNCH_REPLACE_FAILED").
			With("operation", "insert launch token").
			With("handle", token.Handle).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("LAUNCH_REPLACE_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return nil
}

// Redeem atomically marks the matching token used. The validity check and
// the mark-used write are one UPDATE, so of two concurrent redemptions of
// the same token exactly one observes an unused row and wins; the other
// matches nothing.
func (r *LaunchTokenRepository) Redeem(ctx context.Context, handle, token string, now time.Time) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE launch_tokens
		SET used = TRUE
		WHERE handle = $1 AND token = $2 AND NOT used AND expires_at > $3
	`, handle, token, now)
	if err != nil {
		return false, oops.Code("LAUNCH_REDEEM_FAILED").
			With("handle", handle).
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

// DeleteExpired removes tokens expired at the given instant.
func (r *LaunchTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM launch_tokens WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, oops.Code("LAUNCH_DELETE_EXPIRED_FAILED").Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.LaunchTokenRepository = (*LaunchTokenRepository)(nil)

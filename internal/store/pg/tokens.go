package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"flowhq.dev/internal/auth"
)

type tokenStore struct{ db *sql.DB }

func (s *tokenStore) Create(ctx context.Context, tok *auth.RefreshToken) error {
	if s.db == nil {
		return errNoDB
	}
	return insertToken(ctx, s.db, tok)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertToken(ctx context.Context, e execer, tok *auth.RefreshToken) error {
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now().UTC()
	}
	_, err := e.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, token_hash, expires_at, is_revoked, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, tok.ID, tok.UserID, tok.TokenHash, tok.ExpiresAt, tok.Revoked, tok.CreatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return auth.ErrNotFound
	}
	return err
}

func (s *tokenStore) FindByToken(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var tok auth.RefreshToken
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, token_hash, expires_at, is_revoked, created_at
		from refresh_tokens
		where token_hash = $1
	`, tokenHash).Scan(&tok.ID, &tok.UserID, &tok.TokenHash, &tok.ExpiresAt, &tok.Revoked, &tok.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (s *tokenStore) Revoke(ctx context.Context, id string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `update refresh_tokens set is_revoked = true where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *tokenStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	res, err := s.db.ExecContext(ctx, `
		update refresh_tokens
		set is_revoked = true
		where user_id = $1 and is_revoked = false
	`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Rotate flips the old record with a conditional update and inserts the
// replacement in the same transaction. A concurrent rotation of the same
// record blocks on the row lock and then matches zero rows.
func (s *tokenStore) Rotate(ctx context.Context, oldID string, now time.Time, next *auth.RefreshToken) error {
	if s.db == nil {
		return errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update refresh_tokens
		set is_revoked = true
		where id = $1 and is_revoked = false and expires_at > $2
	`, oldID, now)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff != 1 {
		return auth.ErrTokenInactive
	}
	if err := insertToken(ctx, tx, next); err != nil {
		return err
	}
	return tx.Commit()
}

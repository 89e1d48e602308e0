package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"flowhq.dev/internal/auth"
)

type userStore struct{ db *sql.DB }

func (s *userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.find(ctx, `where email = $1`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *userStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.find(ctx, `where id = $1`, id)
}

func (s *userStore) find(ctx context.Context, where string, arg any) (*auth.User, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var u auth.User
	err := s.db.QueryRowContext(ctx, `
		select id, email, first_name, last_name, password_hash, is_active, is_email_verified, created_at, updated_at
		from users
		`+where, arg).Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.IsActive, &u.IsEmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	roles, err := queryRoles(ctx, s.db, `
		join user_roles ur on ur.role_id = r.id
		where ur.user_id = $1`, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	if s.db == nil {
		return errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		insert into users (id, email, first_name, last_name, password_hash, is_active, is_email_verified)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at, updated_at
	`, u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.IsActive, u.IsEmailVerified).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrDuplicateEmail
		}
		return err
	}
	for _, role := range u.Roles {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role_id)
			values ($1, $2)
			on conflict do nothing
		`, u.ID, role.ID); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return auth.ErrNotFound
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *userStore) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `
		update users
		set password_hash = $2, updated_at = now()
		where id = $1
	`, userID, hash)
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

// Delete relies on the cascading foreign keys of user_roles and refresh_tokens.
func (s *userStore) Delete(ctx context.Context, userID string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, userID)
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

package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"flowhq.dev/internal/auth"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return New(db), mock
}

var roleColumns = []string{
	"id", "name", "description", "is_active", "created_at", "updated_at",
	"p_id", "p_name", "p_description", "p_resource", "p_action", "p_is_active", "p_created_at",
}

func TestFindByEmailLoadsRolesAndPermissions(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("select id, email, first_name.*from users\\s+where email = \\$1").
		WithArgs("bob@x.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "first_name", "last_name", "password_hash", "is_active", "is_email_verified", "created_at", "updated_at",
		}).AddRow("u1", "bob@x.com", "Bob", "Builder", "hash", true, false, now, now))
	mock.ExpectQuery("from roles r.*join user_roles ur on ur.role_id = r.id\\s+where ur.user_id = \\$1").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(roleColumns).
			AddRow("r1", "editor", "Editors", true, now, now, "p1", "read:article", "View", "article", "read", true, now).
			AddRow("r1", "editor", "Editors", true, now, now, "p2", "update:article", "Edit", "article", "update", true, now).
			AddRow("r2", "empty", "", true, now, now, nil, nil, nil, nil, nil, nil, nil))

	user, err := store.Users(context.Background()).FindByEmail(context.Background(), "  Bob@X.com ")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if user.ID != "u1" || user.FirstName != "Bob" || !user.IsActive {
		t.Fatalf("unexpected user: %+v", user)
	}
	if len(user.Roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(user.Roles))
	}
	if len(user.Roles[0].Permissions) != 2 || user.Roles[0].Permissions[1].Name != "update:article" {
		t.Fatalf("unexpected editor permissions: %+v", user.Roles[0].Permissions)
	}
	if len(user.Roles[1].Permissions) != 0 {
		t.Fatalf("role without permissions should have none: %+v", user.Roles[1].Permissions)
	}
}

func TestFindByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("from users\\s+where id = \\$1").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Users(context.Background()).FindByID(context.Background(), "missing")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectRollback()

	err := store.Users(context.Background()).Create(context.Background(), &auth.User{ID: "u1", Email: "bob@x.com"})
	if !errors.Is(err, auth.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestCreateUserAssignsRoles(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").
		WithArgs("u1", "bob@x.com", "Bob", "B", "hash", true, false).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("insert into user_roles").WithArgs("u1", "r-user").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	u := &auth.User{
		ID: "u1", Email: "bob@x.com", FirstName: "Bob", LastName: "B", PasswordHash: "hash",
		IsActive: true, Roles: []auth.Role{{ID: "r-user", Name: "user"}},
	}
	if err := store.Users(context.Background()).Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !u.CreatedAt.Equal(now) {
		t.Fatalf("created_at not populated: %v", u.CreatedAt)
	}
}

func TestUpdatePasswordHashNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("update users").WithArgs("ghost", "h").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Users(context.Background()).UpdatePasswordHash(context.Background(), "ghost", "h")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("delete from users where id = \\$1").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from users where id = \\$1").WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))

	users := store.Users(context.Background())
	if err := users.Delete(context.Background(), "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := users.Delete(context.Background(), "ghost"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotateCommitsWhenCASWins(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	next := &auth.RefreshToken{ID: "t2", UserID: "u1", TokenHash: "h2", ExpiresAt: now.Add(time.Hour), CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("update refresh_tokens\\s+set is_revoked = true\\s+where id = \\$1 and is_revoked = false and expires_at > \\$2").
		WithArgs("t1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into refresh_tokens").
		WithArgs("t2", "u1", "h2", next.ExpiresAt, false, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := store.RefreshTokens(context.Background()).Rotate(context.Background(), "t1", now, next); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
}

func TestRotateRollsBackWhenCASLoses(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("update refresh_tokens").WithArgs("t1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.RefreshTokens(context.Background()).Rotate(context.Background(), "t1", now, &auth.RefreshToken{ID: "t2"})
	if !errors.Is(err, auth.ErrTokenInactive) {
		t.Fatalf("expected ErrTokenInactive, got %v", err)
	}
}

func TestRevokeAllForUserReturnsCount(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("update refresh_tokens\\s+set is_revoked = true\\s+where user_id = \\$1 and is_revoked = false").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.RefreshTokens(context.Background()).RevokeAllForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 revoked, got %d", n)
	}
}

func TestFindByTokenNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("from refresh_tokens\\s+where token_hash = \\$1").WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.RefreshTokens(context.Background()).FindByToken(context.Background(), "nope")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureRoleReplacesPermissions(t *testing.T) {
	store, mock := newMockStore(t)
	role := auth.BuiltinRoles[2] // user: read:article

	mock.ExpectBegin()
	mock.ExpectQuery("insert into permissions").
		WithArgs(sqlmock.AnyArg(), "read:article", sqlmock.AnyArg(), "article", "read", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p-read"))
	mock.ExpectQuery("insert into roles").
		WithArgs(sqlmock.AnyArg(), "user", sqlmock.AnyArg(), true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r-user"))
	mock.ExpectExec("delete from role_permissions where role_id = \\$1").WithArgs("r-user").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("insert into role_permissions").WithArgs("r-user", "p-read").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := store.Roles(context.Background()).Ensure(context.Background(), role); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
}

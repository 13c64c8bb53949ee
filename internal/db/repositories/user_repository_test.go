package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/wandertale/wandertale/internal/db/models"
)

var errDB = errors.New("db error")

var userCols = []string{"id", "email", "password_hash", "encrypted_credential", "encryption_iv", "oidc_sub", "created_at", "updated_at"}

func strPtr(s string) *string { return &s }

func sampleUserRow() *sqlmock.Rows {
	return sqlmock.NewRows(userCols).
		AddRow("user-1", "alice@example.com", strPtr("$2a$12$hash"), nil, nil, nil, time.Now(), time.Now())
}

func emptyUserRow() *sqlmock.Rows {
	return sqlmock.NewRows(userCols)
}

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

// ---------------------------------------------------------------------------
// CreateUser
// ---------------------------------------------------------------------------

func TestCreateUser(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "alice@example.com", strPtr("$2a$12$hash"), nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &models.User{Email: "alice@example.com", PasswordHash: strPtr("$2a$12$hash")}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID == "" {
		t.Error("expected generated ID")
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	user := &models.User{Email: "alice@example.com"}
	err := repo.CreateUser(context.Background(), user)
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("error = %v, want ErrDuplicateEmail", err)
	}
}

func TestCreateUser_DBError(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errDB)

	err := repo.CreateUser(context.Background(), &models.User{Email: "alice@example.com"})
	if err == nil || errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("error = %v, want plain db error", err)
	}
}

// ---------------------------------------------------------------------------
// GetUserByID / GetUserByEmail
// ---------------------------------------------------------------------------

func TestGetUserByID_Found(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users.*WHERE id").
		WithArgs("user-1").
		WillReturnRows(sampleUserRow())

	user, err := repo.GetUserByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.ID != "user-1" {
		t.Errorf("ID = %s, want user-1", user.ID)
	}
	if !user.HasPassword() {
		t.Error("expected HasPassword true")
	}
	if user.HasCredential() {
		t.Error("expected HasCredential false")
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users.*WHERE id").
		WithArgs("missing").
		WillReturnRows(emptyUserRow())

	user, err := repo.GetUserByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user for not found, got %v", user)
	}
}

func TestGetUserByEmail_Found(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users.*WHERE email").
		WithArgs("alice@example.com").
		WillReturnRows(sampleUserRow())

	user, err := repo.GetUserByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
}

func TestGetUserByEmail_DBError(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users.*WHERE email").
		WithArgs("alice@example.com").
		WillReturnError(errDB)

	_, err := repo.GetUserByEmail(context.Background(), "alice@example.com")
	if err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// UpdateCredential
// ---------------------------------------------------------------------------

func TestUpdateCredential(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("UPDATE users.*SET encrypted_credential").
		WithArgs("user-1", "deadbeef", "cafebabe", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateCredential(context.Background(), "user-1", "deadbeef", "cafebabe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateCredential_NoSuchUser(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("UPDATE users.*SET encrypted_credential").
		WithArgs("missing", "deadbeef", "cafebabe", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateCredential(context.Background(), "missing", "deadbeef", "cafebabe")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("error = %v, want sql.ErrNoRows", err)
	}
}

// ---------------------------------------------------------------------------
// GetOrCreateUserFromOIDC
// ---------------------------------------------------------------------------

func TestGetOrCreateUserFromOIDC_ExistingBySub(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users.*WHERE oidc_sub").
		WithArgs("sub-123").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("user-1", "alice@example.com", nil, nil, nil, strPtr("sub-123"), time.Now(), time.Now()))

	user, err := repo.GetOrCreateUserFromOIDC(context.Background(), "sub-123", "alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("ID = %s, want user-1", user.ID)
	}
}

func TestGetOrCreateUserFromOIDC_LinksExistingEmail(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users.*WHERE oidc_sub").
		WithArgs("sub-123").
		WillReturnRows(emptyUserRow())
	mock.ExpectQuery("SELECT.*FROM users.*WHERE email").
		WithArgs("alice@example.com").
		WillReturnRows(sampleUserRow())
	mock.ExpectExec("UPDATE users.*SET oidc_sub").
		WithArgs("user-1", "sub-123", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := repo.GetOrCreateUserFromOIDC(context.Background(), "sub-123", "alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.OIDCSub == nil || *user.OIDCSub != "sub-123" {
		t.Errorf("OIDCSub = %v, want sub-123", user.OIDCSub)
	}
}

func TestGetOrCreateUserFromOIDC_CreatesNew(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users.*WHERE oidc_sub").
		WithArgs("sub-456").
		WillReturnRows(emptyUserRow())
	mock.ExpectQuery("SELECT.*FROM users.*WHERE email").
		WithArgs("bob@example.com").
		WillReturnRows(emptyUserRow())
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "bob@example.com", nil, strPtr("sub-456"), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := repo.GetOrCreateUserFromOIDC(context.Background(), "sub-456", "bob@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "bob@example.com" {
		t.Errorf("Email = %s, want bob@example.com", user.Email)
	}
	if user.PasswordHash != nil {
		t.Error("expected nil password hash for federated account")
	}
}

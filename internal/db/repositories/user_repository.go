// Package repositories implements the data access layer (repository pattern).
// Each repository type encapsulates all database queries for a domain entity.
// Handlers never issue SQL directly — all database access goes through this layer,
// which makes query logic testable in isolation.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wandertale/wandertale/internal/db/models"
)

// ErrDuplicateEmail is returned when creating a user with an email that already exists.
var ErrDuplicateEmail = errors.New("email already registered")

// pqUniqueViolation is the PostgreSQL error code for unique constraint violations
const pqUniqueViolation = "23505"

// UserRepository handles user database operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser creates a new user. Returns ErrDuplicateEmail when the email
// (compared exactly, case-sensitively) is already taken.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	query := `
		INSERT INTO users (id, email, password_hash, oidc_sub, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.OIDCSub,
		user.CreatedAt,
		user.UpdatedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrDuplicateEmail
	}

	return err
}

// GetUserByID retrieves a user by ID. Returns (nil, nil) when no row matches.
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, encrypted_credential, encryption_iv, oidc_sub, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	return r.scanUser(r.db.QueryRowContext(ctx, query, userID))
}

// GetUserByEmail retrieves a user by exact email match. Returns (nil, nil) when no row matches.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, encrypted_credential, encryption_iv, oidc_sub, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetUserByOIDCSub retrieves a user by OIDC subject identifier
func (r *UserRepository) GetUserByOIDCSub(ctx context.Context, oidcSub string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, encrypted_credential, encryption_iv, oidc_sub, created_at, updated_at
		FROM users
		WHERE oidc_sub = $1
	`

	return r.scanUser(r.db.QueryRowContext(ctx, query, oidcSub))
}

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.EncryptedCredential,
		&user.EncryptionIV,
		&user.OIDCSub,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return user, nil
}

// UpdateCredential stores the encrypted provider credential for a user.
// Ciphertext and IV are written in a single statement so the pair can never
// end up mixed across two seal operations.
func (r *UserRepository) UpdateCredential(ctx context.Context, userID, encryptedCredential, encryptionIV string) error {
	query := `
		UPDATE users
		SET encrypted_credential = $2, encryption_iv = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, userID, encryptedCredential, encryptionIV, time.Now())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// GetOrCreateUserFromOIDC gets or creates a user from OIDC authentication.
// An existing account with the same email is linked to the subject rather
// than duplicated, so a traveler who registered with a password can later
// sign in through the identity provider.
func (r *UserRepository) GetOrCreateUserFromOIDC(ctx context.Context, oidcSub, email string) (*models.User, error) {
	user, err := r.GetUserByOIDCSub(ctx, oidcSub)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user, err = r.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		query := `UPDATE users SET oidc_sub = $2, updated_at = $3 WHERE id = $1`
		if _, err := r.db.ExecContext(ctx, query, user.ID, oidcSub, time.Now()); err != nil {
			return nil, err
		}
		user.OIDCSub = &oidcSub
		return user, nil
	}

	newUser := &models.User{
		Email:   email,
		OIDCSub: &oidcSub,
	}

	if err := r.CreateUser(ctx, newUser); err != nil {
		return nil, err
	}

	return newUser, nil
}

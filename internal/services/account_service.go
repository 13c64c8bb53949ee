// Package services implements higher-level business logic that coordinates across
// repositories and external systems. The account service, for example, combines
// password hashing, session token issuance, and credential sealing — operations
// that individually live in auth, crypto, and the repository layer.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/wandertale/wandertale/internal/auth"
	"github.com/wandertale/wandertale/internal/crypto"
	"github.com/wandertale/wandertale/internal/db/models"
	"github.com/wandertale/wandertale/internal/db/repositories"
)

var (
	// ErrDuplicateEmail means the registration email is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUserNotFound means no account matches the given email or ID.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidPassword means the password check failed. Also returned for
	// federated-only accounts that have no password at all.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrCredentialUnavailable means the stored provider credential is absent
	// or can no longer be decrypted. The user must re-enter their API key.
	ErrCredentialUnavailable = errors.New("provider credential unavailable")
	// ErrInvalidInput means a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
)

// minPasswordLength matches the signup form's client-side rule.
const minPasswordLength = 8

// AccountService handles registration, login, and the user's encrypted
// provider credential.
type AccountService struct {
	userRepo *repositories.UserRepository
	cipher   *crypto.CredentialCipher
	tokens   *auth.TokenAuthenticator
}

// NewAccountService creates a new AccountService
func NewAccountService(userRepo *repositories.UserRepository, cipher *crypto.CredentialCipher, tokens *auth.TokenAuthenticator) *AccountService {
	return &AccountService{
		userRepo: userRepo,
		cipher:   cipher,
		tokens:   tokens,
	}
}

// Register creates a password account and signs the new user in.
// Email comparison is exact; no case folding is applied.
func (s *AccountService) Register(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: &hash,
	}

	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			return nil, "", ErrDuplicateEmail
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return user, token, nil
}

// Login verifies a password and issues a session token.
func (s *AccountService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, "", ErrUserNotFound
	}

	// Accounts created through federated login have no password.
	if !user.HasPassword() {
		return nil, "", ErrInvalidPassword
	}
	if !auth.CheckPassword(password, *user.PasswordHash) {
		return nil, "", ErrInvalidPassword
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return user, token, nil
}

// LoginFederated resolves an OIDC identity to an account and issues a session
// token. The account is created, or linked by email, as needed.
func (s *AccountService) LoginFederated(ctx context.Context, oidcSub, email string) (*models.User, string, error) {
	user, err := s.userRepo.GetOrCreateUserFromOIDC(ctx, oidcSub, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve federated user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return user, token, nil
}

// SetCredential seals and stores the user's provider API key. A fresh IV is
// used on every call; re-saving the same key produces different ciphertext.
func (s *AccountService) SetCredential(ctx context.Context, userID, credential string) error {
	if strings.TrimSpace(credential) == "" {
		return fmt.Errorf("%w: credential", ErrInvalidInput)
	}

	ciphertext, iv, err := s.cipher.Seal(credential)
	if err != nil {
		return fmt.Errorf("failed to seal credential: %w", err)
	}

	if err := s.userRepo.UpdateCredential(ctx, userID, ciphertext, iv); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to store credential: %w", err)
	}

	return nil
}

// Profile returns the account for the given user ID.
func (s *AccountService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// DecryptedCredential opens the user's stored provider API key. Both a missing
// credential and a failed decryption surface as ErrCredentialUnavailable: in
// either case the only remedy is for the user to re-enter the key.
func (s *AccountService) DecryptedCredential(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	if !user.HasCredential() {
		return "", ErrCredentialUnavailable
	}

	plaintext, err := s.cipher.Open(*user.EncryptedCredential, *user.EncryptionIV)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCredentialUnavailable, err)
	}

	return plaintext, nil
}

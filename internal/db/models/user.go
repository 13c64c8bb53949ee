// Package models - user.go defines the User model for traveler accounts with email,
// optional password hash, the encrypted provider credential pair, and OIDC subject.
package models

import "time"

// User represents an account in the system.
//
// PasswordHash is nil for accounts created through federated login only.
// EncryptedCredential and EncryptionIV hold the hex-encoded ciphertext and IV
// of the user's provider API key; they are always both set or both nil.
type User struct {
	ID                  string
	Email               string
	PasswordHash        *string
	EncryptedCredential *string
	EncryptionIV        *string
	OIDCSub             *string // OIDC subject identifier (unique per provider)
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasCredential reports whether the user has stored an encrypted provider credential
func (u *User) HasCredential() bool {
	return u.EncryptedCredential != nil && u.EncryptionIV != nil
}

// HasPassword reports whether the account supports password login
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil
}

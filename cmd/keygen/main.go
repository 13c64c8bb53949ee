// Package main is a utility for generating the secret material a deployment
// needs: the 32-byte credential encryption key, a JWT signing secret, and
// optionally a bcrypt password hash for seeding a dev user. Secrets are
// printed once and never stored, so run this locally and copy the output into
// your environment or config file.
//
// Usage:
//
//	keygen            # print a fresh encryption key and JWT secret
//	keygen password   # additionally hash the given password for a dev user row
package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	keyBytes := make([]byte, 16)
	if _, err := rand.Read(keyBytes); err != nil {
		panic(err)
	}
	// Hex-encoding 16 random bytes yields a 32-character string, which is the
	// exact key length the credential cipher requires.
	encryptionKey := hex.EncodeToString(keyBytes)

	secretBytes := make([]byte, 48)
	if _, err := rand.Read(secretBytes); err != nil {
		panic(err)
	}
	jwtSecret := base64.RawURLEncoding.EncodeToString(secretBytes)

	fmt.Printf("ENCRYPTION_KEY=%s\n", encryptionKey)
	fmt.Printf("WT_AUTH_JWT_SECRET=%s\n", jwtSecret)

	if len(os.Args) > 1 {
		hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[1]), 12)
		if err != nil {
			panic(err)
		}
		fmt.Printf("password_hash=%s\n", string(hash))
	}
}

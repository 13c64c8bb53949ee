package auth

import "golang.org/x/crypto/bcrypt"

// BcryptCost is the cost factor for password hashing.
const BcryptCost = 12

// HashPassword returns the salted bcrypt hash of a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether a submitted plaintext password matches the
// stored hash. It goes through bcrypt's own comparison routine, which handles
// the embedded salt and runs in time independent of where the mismatch occurs.
func CheckPassword(password, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}

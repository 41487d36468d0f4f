package credentials

import (
	"strings"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// passwordSpecials is the set of characters that satisfy the special
// character requirement of the password policy
const passwordSpecials = `!@#$%^&*(),.?":{}|<>`

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

// ValidatePasswordPolicy enforces the minimum password strength:
// at least 8 characters and at least one special character
func ValidatePasswordPolicy(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}

	if !strings.ContainsAny(password, passwordSpecials) {
		return ErrWeakPassword
	}

	return nil
}

// NormalizeEmail lowercases and trims an email address so lookups and
// uniqueness checks are case insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted for new credentials.
const MinPasswordLength = 8

// ErrPasswordTooShort is returned by HashPassword for passwords under MinPasswordLength.
var ErrPasswordTooShort = errors.New("password must be at least 8 characters")

// HashPassword hashes a plain password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword compares plain password with hashed password. An empty hash never matches.
func CheckPassword(plain, hashed string) bool {
	if hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

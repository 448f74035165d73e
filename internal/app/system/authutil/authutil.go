// internal/app/system/authutil/authutil.go

// Package authutil is the credential store: bcrypt hashing and
// verification of member passwords, plus password acceptance rules.
// Digests are one-way; verification goes through bcrypt's own
// constant-time comparison.
package authutil

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the minimum accepted password length.
	MinPasswordLength = 6
	// MaxPasswordLength caps input length; bcrypt ignores bytes past 72,
	// so very long inputs only waste work.
	MaxPasswordLength = 128
)

var (
	ErrPasswordTooShort = errors.New("password is too short")
	ErrPasswordTooLong  = errors.New("password is too long")
	ErrPasswordCommon   = errors.New("password is too common")
)

// commonPasswords are rejected outright, case-insensitively.
var commonPasswords = map[string]struct{}{
	"123456":   {},
	"password": {},
	"qwerty":   {},
	"abc123":   {},
	"iloveyou": {},
	"letmein":  {},
	"football": {},
	"welcome":  {},
}

// ValidatePassword checks a candidate password against the acceptance
// rules. It does not hash.
func ValidatePassword(plain string) error {
	if len(plain) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(plain) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	if _, bad := commonPasswords[strings.ToLower(plain)]; bad {
		return ErrPasswordCommon
	}
	return nil
}

// HashPassword returns the bcrypt digest of plain using the default cost.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether plain matches the stored bcrypt digest.
// Any error (wrong password, malformed digest) reads as false.
func CheckPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// PasswordRules returns the human-readable acceptance rules for display
// to callers that surface validation messages.
func PasswordRules() string {
	return fmt.Sprintf("Password must be %d-%d characters and not a commonly used password.",
		MinPasswordLength, MaxPasswordLength)
}

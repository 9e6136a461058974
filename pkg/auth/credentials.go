// ABOUTME: Client-side credential validation run before any auth request
// ABOUTME: Rejects obviously malformed input without a network round trip

package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

// Password length limits accepted by the backend
const (
	minPasswordLen = 6
	maxPasswordLen = 128
	maxUsernameLen = 30
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// ValidateEmail checks the address has the shape local@domain
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email cannot be empty", ErrInvalidCredentials)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return fmt.Errorf("%w: %q is not a valid email address", ErrInvalidCredentials, email)
	}
	return nil
}

// ValidatePasswordFormat validates password meets minimum requirements
func ValidatePasswordFormat(password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidCredentials, minPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return fmt.Errorf("%w: password must be at most %d characters", ErrInvalidCredentials, maxPasswordLen)
	}
	return nil
}

// ValidateUsername allows letters, digits, '_' and '.'
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username cannot be empty", ErrInvalidCredentials)
	}
	if len(username) > maxUsernameLen {
		return fmt.Errorf("%w: username must be at most %d characters", ErrInvalidCredentials, maxUsernameLen)
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
			return fmt.Errorf("%w: username contains %q", ErrInvalidCredentials, r)
		}
	}
	return nil
}

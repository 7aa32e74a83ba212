package auth

import (
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the minimum required password length
	MinPasswordLength = 5
	// DefaultBcryptCost is the cost factor for bcrypt hashing
	DefaultBcryptCost = 10
)

// PasswordValidator handles password policy and hashing
type PasswordValidator struct {
	cost int
}

// NewPasswordValidator creates a PasswordValidator hashing with cost.
// A cost outside bcrypt's range falls back to DefaultBcryptCost.
func NewPasswordValidator(cost int) *PasswordValidator {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordValidator{cost: cost}
}

// IsStrong reports whether password is at least MinPasswordLength ASCII
// letters and digits with at least one of each.
func (v *PasswordValidator) IsStrong(password string) bool {
	if len(password) < MinPasswordLength {
		return false
	}

	var hasLetter, hasDigit bool
	for _, c := range password {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			hasLetter = true
		case c >= '0' && c <= '9':
			hasDigit = true
		default:
			return false
		}
	}
	return hasLetter && hasDigit
}

// HashPassword creates a bcrypt hash of the password
func (v *PasswordValidator) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a password with its hash
func (v *PasswordValidator) VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
	"pgregory.net/rapid"
)

// Feature: user-accounts, Property 7: Password strength
// *For any* string, IsStrong holds exactly when it has at least five
// characters, all ASCII letters or digits, with at least one of each.
func TestProperty7_PasswordStrength(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		validator := NewPasswordValidator(bcrypt.MinCost)
		password := rapid.StringN(0, 12, -1).Draw(t, "password")

		hasLetter, hasDigit, onlyAlnum := false, false, true
		for _, c := range password {
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
				hasLetter = true
			case c >= '0' && c <= '9':
				hasDigit = true
			default:
				onlyAlnum = false
			}
		}
		want := len(password) >= MinPasswordLength && hasLetter && hasDigit && onlyAlnum

		if got := validator.IsStrong(password); got != want {
			t.Fatalf("IsStrong(%q) = %v, want %v", password, got, want)
		}
	})
}

func TestPasswordValidator_Examples(t *testing.T) {
	validator := NewPasswordValidator(bcrypt.MinCost)
	tests := []struct {
		password string
		want     bool
	}{
		{"abc12", true},
		{"Receta123", true},
		{"abc1", false},
		{"abcdef", false},
		{"123456", false},
		{"abc 123", false},
		{"contraseña1", false},
	}
	for _, tt := range tests {
		if got := validator.IsStrong(tt.password); got != tt.want {
			t.Errorf("IsStrong(%q) = %v, want %v", tt.password, got, tt.want)
		}
	}
}

func TestPasswordValidator_HashAndVerify(t *testing.T) {
	validator := NewPasswordValidator(bcrypt.MinCost)

	hash, err := validator.HashPassword("Receta123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "Receta123" {
		t.Fatal("hash equals password")
	}
	if !validator.VerifyPassword("Receta123", hash) {
		t.Error("expected password to verify")
	}
	if validator.VerifyPassword("Receta124", hash) {
		t.Error("expected wrong password to fail")
	}
}

func TestPasswordValidator_CostFallback(t *testing.T) {
	validator := NewPasswordValidator(99)
	hash, err := validator.HashPassword("abc12")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != DefaultBcryptCost {
		t.Errorf("expected cost %d, got %d", DefaultBcryptCost, cost)
	}
}

package security

import (
	"fmt"
	"unicode"
)

// bcrypt ignores everything past 72 bytes and x/crypto rejects longer input.
const maxPasswordBytes = 72

type PasswordPolicy struct {
	MinLength    int
	RequireUpper bool
	RequireLower bool
	RequireDigit bool
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:    8,
		RequireUpper: true,
		RequireLower: true,
		RequireDigit: true,
	}
}

func (p PasswordPolicy) Validate() error {
	if p.MinLength < 1 {
		return fmt.Errorf("password policy: min length must be positive, got %d", p.MinLength)
	}
	if p.MinLength > maxPasswordBytes {
		return fmt.Errorf("password policy: min length %d exceeds bcrypt limit of %d bytes", p.MinLength, maxPasswordBytes)
	}
	return nil
}

// PolicyViolation names one rule a password failed.
type PolicyViolation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Check returns every rule plain violates; an empty slice means it passes.
func (p PasswordPolicy) Check(plain string) []PolicyViolation {
	var out []PolicyViolation

	if len([]rune(plain)) < p.MinLength {
		out = append(out, PolicyViolation{Rule: "min", Message: fmt.Sprintf("must be at least %d characters", p.MinLength)})
	}
	if len(plain) > maxPasswordBytes {
		out = append(out, PolicyViolation{Rule: "max", Message: fmt.Sprintf("must be at most %d bytes", maxPasswordBytes)})
	}

	var upper, lower, digit bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	if p.RequireUpper && !upper {
		out = append(out, PolicyViolation{Rule: "uppercase", Message: "must contain an uppercase letter"})
	}
	if p.RequireLower && !lower {
		out = append(out, PolicyViolation{Rule: "lowercase", Message: "must contain a lowercase letter"})
	}
	if p.RequireDigit && !digit {
		out = append(out, PolicyViolation{Rule: "digit", Message: "must contain a digit"})
	}

	return out
}

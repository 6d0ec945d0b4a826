package utils

import (
	"fmt"
	"regexp"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	ssnRegex   = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{4}$`)
	einRegex   = regexp.MustCompile(`^\d{2}-?\d{7}$`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateSSN validates a US social security number (with or without dashes)
func ValidateSSN(ssn string) error {
	if !ssnRegex.MatchString(ssn) {
		return fmt.Errorf("invalid SSN format")
	}
	return nil
}

// ValidateEIN validates a US employer identification number
func ValidateEIN(ein string) error {
	if !einRegex.MatchString(ein) {
		return fmt.Errorf("invalid EIN format")
	}
	return nil
}

// ValidateCents validates a money amount expressed in cents.
// Manual billing adjustments may be negative, so only the magnitude is bounded.
func ValidateCents(amountCents int64) error {
	const maxCents = 100_000_00
	if amountCents > maxCents || amountCents < -maxCents {
		return fmt.Errorf("amount exceeds maximum magnitude: %d", amountCents)
	}
	return nil
}

// SanitizeString removes control characters from free-form input
func SanitizeString(s string) string {
	return regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
}

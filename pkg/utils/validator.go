package utils

import (
	"fmt"
	"regexp"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlRegex = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// ValidateWorksAccount validates a messaging account address, which the
// WORKS platform keys by email.
func ValidateWorksAccount(account string) error {
	if !emailRegex.MatchString(account) {
		return fmt.Errorf("invalid works account format: %s", account)
	}
	return nil
}

// ValidateUsername enforces the login name rules: 1-64 characters, no
// control characters.
func ValidateUsername(username string) error {
	if username == "" || len(username) > 64 {
		return fmt.Errorf("username must be 1-64 characters")
	}
	if controlRegex.MatchString(username) {
		return fmt.Errorf("username contains control characters")
	}
	return nil
}

// SanitizeString strips control characters from free-text report fields.
// Newlines and tabs survive since the narrative fields are multi-line.
func SanitizeString(s string) string {
	return controlRegex.ReplaceAllString(s, "")
}

package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxNameLength bounds executor names
const MaxNameLength = 128

// ExecutorNamePattern allows alphanumeric, dots, hyphens and underscores.
// Names appear in URL paths and persistence keys.
var ExecutorNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateExecutorName validates the name of an adaptive executor
func ValidateExecutorName(name string) error {
	if err := ValidateString(name, "executor name", 1, MaxNameLength, true); err != nil {
		return err
	}

	if !ExecutorNamePattern.MatchString(name) {
		return fmt.Errorf("executor name %q contains invalid characters (only alphanumeric, dots, hyphens, and underscores allowed)", name)
	}

	return nil
}

// Package validate holds small composable string validators.
package validate

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validator is a function that validates a string and returns an error if invalid
type Validator func(value string) error

// Field creates a labeled validator with a custom name for better error messages
func Field(name string, validators ...Validator) Validator {
	return func(value string) error {
		for _, v := range validators {
			if err := v(value); err != nil {
				if !strings.Contains(err.Error(), name) {
					return fmt.Errorf("%s: %w", name, err)
				}
				return err
			}
		}
		return nil
	}
}

// Required ensures the field is not blank
func Required() Validator {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("this field is required")
		}
		return nil
	}
}

// MaxLength checks the maximum length in characters
func MaxLength(max int) Validator {
	return func(v string) error {
		if utf8.RuneCountInString(v) > max {
			return fmt.Errorf("must be no more than %d characters", max)
		}
		return nil
	}
}

// MaxBytes checks the maximum encoded length
func MaxBytes(max int) Validator {
	return func(v string) error {
		if len(v) > max {
			return fmt.Errorf("must be no more than %d bytes", max)
		}
		return nil
	}
}

// NoControlChars rejects control characters other than newline and tab
func NoControlChars() Validator {
	return func(v string) error {
		for _, r := range v {
			if r == '\n' || r == '\t' {
				continue
			}
			if unicode.IsControl(r) {
				return fmt.Errorf("must not contain control characters")
			}
		}
		return nil
	}
}

// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 30
	PasswordMinLength = 8
	PasswordMaxLength = 128
	BioMaxLength      = 500
	CourseMaxLength   = 120
	PostMaxLength     = 5000
	CommentMaxLength  = 2000
	QuestionMaxLength = 2000
	emailMaxLength    = 254
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}$`)

// ValidateUsername checks length and allowed characters. Letters from any
// script are accepted so members can register with Arabic names.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < UsernameMinLength {
		return fmt.Errorf("username must be at least %d characters long", UsernameMinLength)
	}
	if n > UsernameMaxLength {
		return fmt.Errorf("username must not exceed %d characters", UsernameMaxLength)
	}

	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' {
			return fmt.Errorf("username can only contain letters, numbers, dots, underscores, and hyphens")
		}
	}

	first, _ := utf8.DecodeRuneInString(username)
	last, _ := utf8.DecodeLastRuneInString(username)
	if strings.ContainsRune("_-.", first) || strings.ContainsRune("_-.", last) {
		return fmt.Errorf("username cannot start or end with a dot, underscore or hyphen")
	}

	return nil
}

// ValidatePassword checks that a password has a usable length and mixes letters with digits.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < PasswordMinLength {
		return fmt.Errorf("password must be at least %d characters long", PasswordMinLength)
	}
	if len(password) > PasswordMaxLength {
		return fmt.Errorf("password must not exceed %d characters", PasswordMaxLength)
	}

	hasLetter, hasDigit := false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		return fmt.Errorf("password must contain at least one letter")
	}
	if !hasDigit {
		return fmt.Errorf("password must contain at least one digit")
	}

	return nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > emailMaxLength {
		return fmt.Errorf("email must not exceed %d characters", emailMaxLength)
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateLength rejects values longer than max characters.
func ValidateLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%s must not exceed %d characters", field, max)
	}
	return nil
}

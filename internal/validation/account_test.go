package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Valid", "secret123", false},
		{"Exactly Min Length", "abcdefg1", false},
		{"Exactly Max Length", strings.Repeat("a", 127) + "1", false},
		{"Too Short", "abc12", true},
		{"Too Long", strings.Repeat("a", 128) + "1", true},
		{"No Digit", "onlyletters", true},
		{"No Letter", "1234567890", true},
		{"Arabic Letters", "كلمةسر2024", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "test_user123", false},
		{"Arabic", "محمد_علي", false},
		{"Dotted", "sara.ahmed", false},
		{"Too Short", "tu", true},
		{"Too Long", strings.Repeat("a", 31), true},
		{"Illegal Chars", "user@123", true},
		{"Space", "two words", true},
		{"Starts Dash", "-user", true},
		{"Ends Underscore", "user_", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"Valid", "test@example.com", false},
		{"Subdomain", "a.b@mail.example.org", false},
		{"Invalid Format", "not-an-email", true},
		{"Missing Domain", "user@", true},
		{"Multiple At Symbols", "user@@example.com", true},
		{"Space In Local Part", "user @example.com", true},
		{"Trailing Dot In Domain", "user@example.com.", true},
		{"Too Long", strings.Repeat("a", 250) + "@x.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateLength(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateLength("bio", strings.Repeat("ب", BioMaxLength), BioMaxLength))
	assert.Error(t, ValidateLength("bio", strings.Repeat("ب", BioMaxLength+1), BioMaxLength))
}

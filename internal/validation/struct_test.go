package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name string `validate:"required,max=5"`
	Link string `validate:"omitempty,url"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateStruct(sample{Name: "abc"}))
	assert.NoError(t, ValidateStruct(sample{Name: "abc", Link: "https://example.com"}))

	err := ValidateStruct(sample{})
	assert.EqualError(t, err, "field Name failed rule required")

	err = ValidateStruct(sample{Name: "toolong"})
	assert.EqualError(t, err, "field Name failed rule max=5")

	err = ValidateStruct(sample{Name: "ok", Link: "not a url"})
	assert.EqualError(t, err, "field Link failed rule url")
}

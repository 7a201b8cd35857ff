package validation

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct applies `validate` struct tags and reports the first failing field.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) && len(vErrs) > 0 {
		first := vErrs[0]
		if first.Param() != "" {
			return fmt.Errorf("field %s failed rule %s=%s", first.Field(), first.Tag(), first.Param())
		}
		return fmt.Errorf("field %s failed rule %s", first.Field(), first.Tag())
	}
	return err
}

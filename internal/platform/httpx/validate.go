package httpx

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/niveshya/leadops/internal/shared"
)

// Validate runs struct validation and reports the first failing field as a validation error.
func Validate(v *validator.Validate, target any) error {
	err := v.Struct(target)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return shared.NewFieldError(shared.ErrValidation, strings.ToLower(fe.Field()), fe.Tag())
	}
	return errors.Join(shared.ErrValidation, err)
}

package mtapclient

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// reasonCodePattern matches revocation reason codes: upper snake case
// identifiers such as USER_REQUEST or GDPR_ERASURE.
var reasonCodePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,63}$`)

// Validator wraps go-playground/validator with the SDK's custom rules.
// Violations surface as configuration errors so invalid inputs fail before
// any network I/O.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the custom validation rules
// registered.
func NewValidator() *Validator {
	v := validator.New()

	err := v.RegisterValidation("reason_code", validateReasonCode)
	if err != nil {
		return nil
	}

	return &Validator{validate: v}
}

// Validate performs validation on the provided struct and maps the first
// violation to a configuration error.
func (v *Validator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			first := validationErrors[0]
			return &configurationError{
				message: getErrorMessage(first),
				field:   first.Field(),
				wrapped: err,
			}
		}
		return &configurationError{message: err.Error(), wrapped: err}
	}
	return nil
}

func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "excluded_with":
		return fmt.Sprintf("%s and %s are mutually exclusive", fe.Field(), fe.Param())
	case "reason_code":
		return fmt.Sprintf("%s must be an upper snake case reason code", fe.Field())
	default:
		return fmt.Sprintf("%s failed validation", fe.Field())
	}
}

// Custom validator for revocation reason codes
func validateReasonCode(fl validator.FieldLevel) bool {
	return reasonCodePattern.MatchString(fl.Field().String())
}

package workflow

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is the sentinel every ValidationError unwraps to.
var ErrValidation = errors.New("validation failed")

// ValidationError describes the first invalid candidate field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func candidateValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("phone", validPhone)
		validate = v
	})
	return validate
}

// validPhone accepts 7 to 15 digits once separators are stripped.
func validPhone(fl validator.FieldLevel) bool {
	digits := 0
	for _, r := range fl.Field().String() {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

// ValidateCandidate checks the candidate fields and returns a *ValidationError
// for the first offending one.
func ValidateCandidate(f CandidateFields) error {
	err := candidateValidator().Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must contain between 7 and 15 digits"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

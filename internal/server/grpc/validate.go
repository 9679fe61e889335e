package grpc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const minPasswordLength = 8

func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	}); err != nil {
		return nil, err
	}
	return v, nil
}

// strongPassword requires minPasswordLength characters including a
// lowercase letter, an uppercase letter, a digit and a special character.
func strongPassword(p string) bool {
	if len([]rune(p)) < minPasswordLength {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range p {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			special = true
		}
	}
	return lower && upper && digit && special
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "password":
		return fmt.Sprintf("%s must be at least %d characters with lowercase, uppercase, digit and special character", field, minPasswordLength)
	case "eqfield":
		return field + " does not match"
	case "alphanum":
		return field + " must be alphanumeric"
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	case "unique":
		return field + " must not contain duplicates"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

// validationStatus renders validator errors as one InvalidArgument status.
func validationStatus(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return status.Error(codes.InvalidArgument, "invalid request")
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, describe(fe))
	}
	return status.Error(codes.InvalidArgument, strings.Join(msgs, "; "))
}

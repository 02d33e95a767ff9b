package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// passwordChars is the only character set a password may use
var passwordChars = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]+$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("apptdate", func(fl validator.FieldLevel) bool {
		return ValidDate(fl.Field().String())
	})
	_ = v.RegisterValidation("appttime", func(fl validator.FieldLevel) bool {
		_, ok := NormalizeTime(fl.Field().String())
		return ok
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// IsStrongPassword requires at least 6 characters with an upper case
// letter, a lower case letter, a digit and one of @$!%*?&
func IsStrongPassword(p string) bool {
	if len(p) < 6 || !passwordChars.MatchString(p) {
		return false
	}
	return strings.ContainsAny(p, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") &&
		strings.ContainsAny(p, "abcdefghijklmnopqrstuvwxyz") &&
		strings.ContainsAny(p, "0123456789") &&
		strings.ContainsAny(p, "@$!%*?&")
}

// ValidDate accepts YYYY-MM-DD
func ValidDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// NormalizeTime accepts HH:MM or HH:MM:SS and returns HH:MM
func NormalizeTime(s string) (string, bool) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), true
		}
	}
	return "", false
}

// ValidateStruct checks v against its validate tags. The error names the
// first failing field by its json name.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return &FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()}
}

// FieldError is the first failed validation of a request
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (e *FieldError) Error() string {
	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", e.Field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", e.Field, e.Param)
	case "eqfield":
		return fmt.Sprintf("%s does not match", e.Field)
	case "strongpassword":
		return fmt.Sprintf("%s must have at least 6 characters with upper and lower case letters, a digit and one of @$!%%*?&", e.Field)
	case "apptdate":
		return fmt.Sprintf("%s must be YYYY-MM-DD", e.Field)
	case "appttime":
		return fmt.Sprintf("%s must be HH:MM", e.Field)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", e.Field, e.Param)
	default:
		return fmt.Sprintf("%s is invalid", e.Field)
	}
}

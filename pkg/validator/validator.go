// Package validator registers the request validation tags used by the API
// on a go-playground validator instance.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/medischedule-api/pkg/security"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// Register installs the custom tags on v and reports fields by their json name.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	rules := map[string]validator.Func{
		"phone":     validatePhone,
		"password":  validatePassword,
		"isodate":   validateDate,
		"clocktime": validateClock,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

func validatePhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

func validatePassword(fl validator.FieldLevel) bool {
	return security.CheckPasswordPolicy(fl.Field().String()) == nil
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01-02", fl.Field().String())
	return err == nil
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := time.Parse("15:04", fl.Field().String())
	return err == nil
}

var messages = map[string]string{
	"required":  "is required",
	"email":     "must be a valid email address",
	"phone":     "must contain 7 to 15 digits",
	"password":  "must be 6 to 72 characters and contain a letter and a digit",
	"isodate":   "must be a date in YYYY-MM-DD format",
	"clocktime": "must be a time in HH:MM format",
	"oneof":     "must be one of: ",
	"min":       "is below the allowed minimum",
	"max":       "exceeds the allowed maximum",
}

// Describe turns a binding error into a single human readable sentence.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		if fe.Tag() == "oneof" {
			msg += strings.ReplaceAll(fe.Param(), " ", ", ")
		}
		parts = append(parts, fmt.Sprintf("%s %s", fe.Field(), msg))
	}
	return strings.Join(parts, "; ")
}

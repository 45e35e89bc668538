// Package validation checks request payloads with go-playground/validator and
// reports every offending field at once as an apperr Validation error.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/apperr"
)

var (
	once     sync.Once
	validate *validator.Validate

	handlePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("password", strongPassword)
		_ = validate.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
			return handlePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// strongPassword requires at least one upper case letter, one lower case
// letter and one digit. Length is checked by a separate min tag.
func strongPassword(fl validator.FieldLevel) bool {
	var upper, lower, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.BadRequest, "Invalid request", err)
	}
	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{Field: fieldPath(fe), Message: message(fe)})
	}
	return apperr.Invalid(fields)
}

// fieldPath drops the root struct name from the namespace, so
// "ReorderRequest.links[1].id" becomes "links[1].id".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "url", "http_url":
		return "must be a valid URL including protocol"
	case "password":
		return "must contain an uppercase letter, a lowercase letter and a number"
	case "handle":
		return "may only contain letters, numbers, underscores and hyphens"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "gte":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		case reflect.Slice, reflect.Array:
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		default:
			return fmt.Sprintf("must be at least %s", fe.Param())
		}
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return "is invalid"
	}
}

// Collector accumulates field errors for payloads that cannot be expressed as
// tagged structs, such as partial updates.
type Collector struct {
	fields []apperr.FieldError
}

// Var validates a single value against tag and records failures under field.
func (c *Collector) Var(field string, value any, tag string) {
	err := instance().Var(value, tag)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.Add(field, "is invalid")
		return
	}
	for _, fe := range verrs {
		c.Add(field, message(fe))
	}
}

func (c *Collector) Add(field, msg string) {
	c.fields = append(c.fields, apperr.FieldError{Field: field, Message: msg})
}

// Err returns a Validation error if anything was collected.
func (c *Collector) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return apperr.Invalid(c.fields)
}

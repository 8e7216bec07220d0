package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator implements echo.Validator with go-playground/validator. Field
// names in errors follow the json tag.
type Validator struct {
	v *validator.Validate
}

var _ echo.Validator = (*Validator)(nil)

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("wallet", validWallet)
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

var defaultValidator = NewValidator()

// validWallet accepts up to 128 printable characters without spaces.
func validWallet(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || len(s) > 128 {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// ReadAndValidateRequest binds the body, path and query into req, applies
// `default` tags and validates it. It returns the list of problems, or nil.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}

	var err error
	if c.Echo().Validator != nil {
		err = c.Validate(req)
	} else {
		err = defaultValidator.Validate(req)
	}
	if err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make([]ValidationError, len(fieldErrs))
		for i, fe := range fieldErrs {
			out[i] = ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: fieldMessage(fe),
				Params:  fieldParams(fe),
			}
		}
		return out
	}

	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []ValidationError{{Code: "ERR_BAD_REQUEST", Message: msg}}
}

var tagMessages = map[string]string{
	"required": "%s is required",
	"wallet":   "%s must be a wallet address without spaces, at most 128 characters",
	"gt":       "%s must be greater than %s",
	"gte":      "%s must be at least %s",
	"lt":       "%s must be less than %s",
	"lte":      "%s must be at most %s",
	"oneof":    "%s must be one of: %s",
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "max":
		unit := ""
		if fe.Kind() == reflect.String {
			unit = " characters"
		}
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		return fmt.Sprintf("%s must be %s %s%s", fe.Field(), bound, fe.Param(), unit)
	case "oneof":
		return fmt.Sprintf(tagMessages["oneof"], fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	if f, ok := tagMessages[fe.Tag()]; ok {
		if strings.Count(f, "%s") == 2 {
			return fmt.Sprintf(f, fe.Field(), fe.Param())
		}
		return fmt.Sprintf(f, fe.Field())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

func fieldParams(fe validator.FieldError) map[string]interface{} {
	switch fe.Tag() {
	case "min", "gte", "gt":
		return map[string]interface{}{"min": fe.Param()}
	case "max", "lte", "lt":
		return map[string]interface{}{"max": fe.Param()}
	case "oneof":
		return map[string]interface{}{"options": strings.Fields(fe.Param())}
	}
	return nil
}

package domain

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ValidationError is returned before any mutation when an input is missing a
// required field or carries an out-of-range value.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func NewValidationError(field string, rule string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: rule}}
}

func (e *ValidationError) Add(field string, rule string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = rule
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate runs the struct tags of a draft and converts failures into a
// ValidationError keyed by JSON field name.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fe.Field()] = fe.Tag()
	}
	return out
}

// CheckNonNegative records a "gte=0" failure for every negative amount.
func CheckNonNegative(ve *ValidationError, amounts map[string]decimal.Decimal) {
	for field, amount := range amounts {
		if amount.IsNegative() {
			ve.Add(field, "gte=0")
		}
	}
}

// Merge folds the result of Validate and any extra checks into one error.
func Merge(err error, extra *ValidationError) error {
	if extra == nil || len(extra.Fields) == 0 {
		return err
	}
	if err == nil {
		return extra
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	for k, v := range extra.Fields {
		if _, exists := ve.Fields[k]; !exists {
			ve.Fields[k] = v
		}
	}
	return ve
}

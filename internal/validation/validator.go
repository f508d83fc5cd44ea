// Package validation checks decoded request bodies with struct tags and
// reports field errors by their JSON path.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Detail is one failed field
type Detail struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error collects every failed field of a request
type Error struct {
	Details []Detail
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Details))
	for i, d := range e.Details {
		msgs[i] = d.Path + ": " + d.Message
	}
	return strings.Join(msgs, "; ")
}

// GetValidator returns the shared validator, reporting json tag names as fields
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// ValidateStruct returns nil or an *Error listing every failed field
func ValidateStruct(s any) *Error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Details: []Detail{{Path: "", Message: err.Error()}}}
	}

	details := make([]Detail, len(fieldErrs))
	for i, fe := range fieldErrs {
		details[i] = Detail{Path: path(fe), Message: translateError(fe)}
	}
	return &Error{Details: details}
}

// path drops the root struct name: "Request.enemy_items[0].hero" -> "enemy_items[0].hero"
func path(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

var errorMessageTemplates = map[string]string{
	"required": "is required",
}

var errorMessageWithParam = map[string]string{
	"oneof": "must be one of: %s",
	"gte":   "must be greater than or equal to %s",
	"lte":   "must be less than or equal to %s",
	"gt":    "must be greater than %s",
	"lt":    "must be less than %s",
}

func translateError(fe validator.FieldError) string {
	tag := fe.Tag()
	param := fe.Param()

	if msg, ok := errorMessageTemplates[tag]; ok {
		return msg
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters", param)
		}
		return fmt.Sprintf("must be at least %s", param)
	case "max":
		if isString {
			return fmt.Sprintf("must be at most %s characters", param)
		}
		return fmt.Sprintf("must be at most %s", param)
	default:
		return fmt.Sprintf("failed %s validation", tag)
	}
}

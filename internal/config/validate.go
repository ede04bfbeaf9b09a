package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is one failed constraint.
type ValidationError struct {
	Bag       string // bag name, empty for top-level fields
	FieldPath string // e.g. "bags[2].size"
	Message   string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	parts := make([]string, 0, len(ve))
	for _, e := range ve {
		if e.Bag != "" {
			parts = append(parts, fmt.Sprintf("[%s] %s %s", e.Bag, e.FieldPath, e.Message))
		} else {
			parts = append(parts, fmt.Sprintf("%s %s", e.FieldPath, e.Message))
		}
	}
	return fmt.Sprintf("config validation failed: %s", strings.Join(parts, "; "))
}

var bagNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("bag_name", func(fl validator.FieldLevel) bool {
		return bagNameRe.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	// report yaml names in field paths
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "bag_name":
		return "must match [a-z0-9][a-z0-9_-]*"
	default:
		return fmt.Sprintf("failed %s", e.Tag())
	}
}

// Validate checks semantic constraints of a merged RawConfig.
func Validate(cfg RawConfig) error {
	var errs ValidationErrors

	errs = append(errs, structErrors(cfg.Defaults, "defaults", "")...)

	seen := make(map[string]int)
	for i, b := range cfg.Bags {
		prefix := fmt.Sprintf("bags[%d]", i)
		errs = append(errs, structErrors(b, prefix, b.Name)...)
		if b.Name == "" {
			continue
		}
		if j, dup := seen[b.Name]; dup {
			errs = append(errs, ValidationError{
				Bag:       b.Name,
				FieldPath: prefix + ".name",
				Message:   fmt.Sprintf("duplicates bags[%d]", j),
			})
			continue
		}
		seen[b.Name] = i
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func structErrors(v any, prefix, bag string) ValidationErrors {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Bag: bag, FieldPath: prefix, Message: err.Error()}}
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		out = append(out, ValidationError{
			Bag:       bag,
			FieldPath: prefix + "." + e.Field(),
			Message:   validationMessage(e),
		})
	}
	return out
}

package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	"github.com/go-playground/validator/v10"
)

type ValidationRule struct {
	Rule func(v *validator.Validate)
}

// Validator is a wrapper around the actual validator
// It sets up the validator and turns the underlying error into a message a client can act on.
type Validator struct {
	validator *validator.Validate
	rules     []ValidationRule
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return &Validator{validator: v}
}

func (v *Validator) Register(rules ...ValidationRule) {
	for _, validationRule := range rules {
		validationRule.Rule(v.validator)
	}
	v.rules = rules
}

// Struct validates s. A failed destination check returns *model.ErrUnknownDestination,
// missing fields return *ErrMissingFields.
func (v *Validator) Struct(s any) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	missing := false
	for _, fieldErr := range validationErrs {
		switch fieldErr.Tag() {
		case "required":
			missing = true
		case "destination":
			return model.NewErrUnknownDestination(strings.ToUpper(fieldErr.Value().(string)))
		default:
			return NewErrInvalidField(fieldErr.Field(), fieldErr.Value())
		}
	}

	if missing {
		return NewErrMissingFields(requiredFields(s))
	}
	return err
}

func requiredFields(s any) []string {
	t := reflect.TypeOf(s)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	fields := []string{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		for _, tag := range strings.Split(f.Tag.Get("validate"), ",") {
			if tag == "required" {
				fields = append(fields, jsonName(f))
				break
			}
		}
	}
	return fields
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

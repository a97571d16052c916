package validator

import (
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	"github.com/go-playground/validator/v10"
)

func destinationValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	_, err := model.ParseDestination(val)
	return err == nil
}

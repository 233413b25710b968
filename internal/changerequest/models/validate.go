package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	dErrors "crboard/pkg/domain-errors"
)

var crValidate *validator.Validate

func init() {
	crValidate = validator.New(validator.WithRequiredStructEnabled())
	crValidate.RegisterTagNameFunc(jsonFieldName)
	_ = crValidate.RegisterValidation("notblank", validators.NotBlank)
	_ = crValidate.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return Priority(fl.Field().String()).IsValid()
	})
	_ = crValidate.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).IsValid()
	})
	crValidate.RegisterStructValidation(validateDateRange, ChangeRequest{})
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

func validateDateRange(sl validator.StructLevel) {
	cr := sl.Current().Interface().(ChangeRequest)
	if !cr.StartDate.IsZero() && !cr.EndDate.IsZero() && cr.EndDate.Before(cr.StartDate) {
		sl.ReportError(cr.EndDate, "endDate", "EndDate", "daterange", "")
	}
}

// Validate checks the CR invariants and returns a validation domain error
// naming the first offending field.
func (cr ChangeRequest) Validate() error {
	err := crValidate.Struct(cr)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid change request")
	}
	return dErrors.New(dErrors.CodeValidation, describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "notblank":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be %s characters or less", field, fe.Param())
	case "priority":
		return fmt.Sprintf("priority must be one of %s, %s, %s", PriorityHigh, PriorityMedium, PriorityLow)
	case "status":
		return fmt.Sprintf("status must be one of %q, %q, %q, %q",
			StatusNotStarted, StatusInProgress, StatusWaitingForGoLive, StatusCompleted)
	case "daterange":
		return "endDate must not be before startDate"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

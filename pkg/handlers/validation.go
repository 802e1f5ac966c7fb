package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ekaya-inc/ekaya-estimator/pkg/apperrors"
)

// requestValidate checks the size bounds declared in request struct tags.
// Validate caches struct metadata and is safe for concurrent use.
var requestValidate = newRequestValidate()

func newRequestValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names so messages match the request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateRequest returns apperrors.ErrInvalidInput describing every field
// that breaks its bounds, or nil.
func validateRequest(req any) error {
	err := requestValidate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fieldPath(fe)+" "+friendlyMessage(fe))
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, strings.Join(problems, "; "))
}

// fieldPath drops the struct name prefix: "EstimateRequest.names[2]" becomes "names[2]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func friendlyMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must not contain more than %s items", fe.Param())
		}
		return fmt.Sprintf("must not exceed %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxRequestBodyBytes = 1 << 20

var validate = validator.New()

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// On failure it writes the response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "Validation failed",
			"fields": FormatValidationError(err),
		})
		return false
	}
	return true
}

// FormatValidationError maps validator failures to one message per json field.
func FormatValidationError(err error) map[string]string {
	out := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return out
	}
	for _, fieldError := range validationErrors {
		field := jsonFieldName(fieldError.Field())
		switch fieldError.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "email":
			out[field] = "Invalid email format"
		case "min":
			out[field] = fmt.Sprintf("%s must be at least %s", field, fieldError.Param())
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s", field, fieldError.Param())
		case "len":
			out[field] = fmt.Sprintf("%s must be exactly %s characters", field, fieldError.Param())
		case "numeric":
			out[field] = fmt.Sprintf("%s must contain digits only", field)
		case "oneof":
			out[field] = fmt.Sprintf("%s must be one of: %s", field, fieldError.Param())
		case "eqfield":
			out[field] = fmt.Sprintf("%s must match %s", field, jsonFieldName(fieldError.Param()))
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return out
}

func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

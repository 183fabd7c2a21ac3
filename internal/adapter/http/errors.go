package http

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	codeBadRequest = "BAD_REQUEST"
	codeValidation = "VALIDATION_ERROR"
	codeConflict   = "CONFLICT"
	codeInternal   = "INTERNAL_SERVER_ERROR"
)

// errorResponse is the envelope for every non-2xx API response.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func abortWithError(c *gin.Context, status int, code, message string, details map[string]string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Error: errorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: getRequestID(c),
		},
	})
}

// validationDetails maps each failing JSON field to a readable message.
func validationDetails(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = formatValidationError(fe)
	}
	return details
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "gte":
		return "Must be greater than or equal to " + fe.Param()
	case "lte":
		return "Must be less than or equal to " + fe.Param()
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	default:
		return "Validation failed for tag: " + fe.Tag()
	}
}

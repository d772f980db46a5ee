package api

import (
	"errors"
	"net/http"

	"retailmetrics/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
// Compiler errors are caller mistakes and map to 400, except plan
// validation failures, which carry per-slug detail and map to 422.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var accessDenied *domain.AccessDeniedError
	var validation *domain.ValidationError
	var conflict *domain.ConflictError
	var compile *domain.CompilerError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &accessDenied):
		return http.StatusForbidden
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &compile):
		if compile.Code == domain.CompileCodePlanValidation {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorCodeFromError returns the machine-readable code for an error
// response. Compiler errors carry their own taxonomy; everything else is
// keyed by status class.
func errorCodeFromError(err error) string {
	var compile *domain.CompilerError
	if errors.As(err, &compile) {
		return compile.Code
	}

	switch httpStatusFromDomainError(err) {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusForbidden:
		return "ACCESS_DENIED"
	case http.StatusBadRequest:
		return "VALIDATION_ERROR"
	case http.StatusConflict:
		return "CONFLICT"
	default:
		return "INTERNAL_ERROR"
	}
}

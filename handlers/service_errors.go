package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cryptohelms/backend/services"
	"github.com/cryptohelms/backend/utils"
)

// HandleServiceError maps domain errors to HTTP responses.
// Taken emails and usernames answer 400, shape errors 422.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	message := clientMessage(err)
	var writeErr error

	switch {
	case services.IsValidationError(err):
		writeErr = utils.WriteValidationFailed(w, message, validationFields(err))

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, message)

	case services.IsConflictError(err):
		writeErr = utils.WriteBadRequest(w, message)

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsUnavailableError(err):
		w.Header().Set("Retry-After", "1")
		writeErr = utils.WriteServiceUnavailable(w, message)

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError answers 422 for request parsing and struct validation failures
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var writeErr error
	if utils.IsValidationError(err) {
		writeErr = utils.WriteValidationFailed(w, "Validation failed", utils.GetValidationFields(err))
	} else {
		writeErr = utils.WriteValidationFailed(w, err.Error(), nil)
	}
	if writeErr != nil {
		logger.Error("failed to write validation error response", zap.Error(writeErr))
	}
}

func clientMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

func validationFields(err error) map[string]string {
	if fields, ok := services.GetErrorDetails(err)["fields"].(map[string]string); ok && len(fields) > 0 {
		return fields
	}
	return nil
}

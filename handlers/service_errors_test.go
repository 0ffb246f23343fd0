package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cryptohelms/backend/services"
	"github.com/cryptohelms/backend/utils"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var resp utils.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
		expectedDetail string
	}{
		{
			name:           "not found error",
			err:            services.NewDomainError(services.ErrorTypeNotFound, "user not found", nil),
			expectedStatus: http.StatusNotFound,
			expectedError:  "not_found",
			expectedDetail: "user not found",
		},
		{
			name:           "validation error",
			err:            services.ErrInvalidInput,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "validation_failed",
			expectedDetail: "invalid input",
		},
		{
			name:           "bad credentials",
			err:            services.ErrInvalidCredentials,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "unauthorized",
			expectedDetail: "Incorrect email or password.",
		},
		{
			name:           "bad token",
			err:            services.ErrUnauthorized,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "unauthorized",
			expectedDetail: "Could not validate token credentials.",
		},
		{
			name:           "email taken",
			err:            services.ErrDuplicateEmail,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "bad_request",
			expectedDetail: "Email already exists in database. Login with that email or register with different one.",
		},
		{
			name:           "username taken",
			err:            services.ErrDuplicateUsername,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "bad_request",
			expectedDetail: "Username is already taken. Please try a different one.",
		},
		{
			name:           "busy",
			err:            services.ErrBusy.Wrap(errors.New("context deadline exceeded")),
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  "unavailable",
			expectedDetail: "Server is busy, please retry.",
		},
		{
			name:           "internal error hides the cause",
			err:            services.ErrInternal.Wrap(errors.New("pq: connection refused")),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
			expectedDetail: "An internal error occurred",
		},
		{
			name:           "plain error",
			err:            errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
			expectedDetail: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleServiceError(rec, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			resp := decodeError(t, rec)
			assert.Equal(t, tt.expectedError, resp.Error)
			assert.Equal(t, tt.expectedDetail, resp.Detail)
		})
	}
}

func TestHandleServiceError_Headers(t *testing.T) {
	logger := zap.NewNop()

	rec := httptest.NewRecorder()
	HandleServiceError(rec, services.ErrUnauthorized, logger)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = httptest.NewRecorder()
	HandleServiceError(rec, services.ErrBusy, logger)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestHandleServiceError_ValidationFields(t *testing.T) {
	err := services.ErrInvalidInput.Wrap(errors.New("bad")).
		WithDetail("fields", map[string]string{"username": "username must be at least 3 characters"})

	rec := httptest.NewRecorder()
	HandleServiceError(rec, err, zap.NewNop())

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "username must be at least 3 characters", resp.Fields["username"])
}

func TestHandleServiceError_Nil(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleServiceError(rec, nil, zap.NewNop())
	assert.Equal(t, 0, rec.Body.Len())
}

func TestHandleValidationError(t *testing.T) {
	type input struct {
		Email string `json:"email" validate:"required,email"`
	}

	t.Run("struct validation", func(t *testing.T) {
		err := utils.ValidateStruct(&input{Email: "nope"})
		require.Error(t, err)

		rec := httptest.NewRecorder()
		HandleValidationError(rec, err, zap.NewNop())

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "Validation failed", resp.Detail)
		assert.Contains(t, resp.Fields, "email")
	})

	t.Run("decode error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleValidationError(rec, errors.New("unexpected EOF"), zap.NewNop())

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "unexpected EOF", decodeError(t, rec).Detail)
	})
}

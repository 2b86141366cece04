package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name      string
		err       *AppError
		errType   ErrorType
		status    int
		retryable bool
	}{
		{"validation", NewValidationErrorf("limit %d", -1), ErrorTypeValidation, http.StatusBadRequest, false},
		{"not found", NewNotFoundError("coupon"), ErrorTypeNotFound, http.StatusNotFound, false},
		{"conflict", NewConflictError("taken"), ErrorTypeConflict, http.StatusConflict, false},
		{"unauthorized", NewUnauthorizedError(""), ErrorTypeUnauthorized, http.StatusUnauthorized, false},
		{"forbidden", NewForbiddenError(""), ErrorTypeForbidden, http.StatusForbidden, false},
		{"internal", NewInternalError("oops"), ErrorTypeInternal, http.StatusInternalServerError, false},
		{"transient", NewTransientStoreError("get", cause), ErrorTypeTransientStore, http.StatusServiceUnavailable, true},
		{"external", NewExternalError("eventbridge", cause), ErrorTypeExternal, http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.errType, tt.err.Type)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.NotEmpty(t, tt.err.Message)
			assert.NotEmpty(t, tt.err.StackTrace)
		})
	}

	assert.Equal(t, "coupon not found", NewNotFoundError("coupon").Message)
	assert.Equal(t, "VALIDATION: limit -1", NewValidationErrorf("limit %d", -1).Error())
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	cause := errors.New("throttled")
	err := fmt.Errorf("command handler failed: %w", NewTransientStoreError("query", cause))

	assert.True(t, IsAppError(err))
	assert.True(t, IsTransient(err))
	assert.False(t, IsNotFound(err))
	assert.ErrorIs(t, err, cause)

	appErr := GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrorTypeTransientStore, appErr.Type)

	assert.Nil(t, GetAppError(cause))
	assert.False(t, IsType(nil, ErrorTypeInternal))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsValidation(NewValidationError("x")))
	assert.True(t, IsUnauthorized(NewUnauthorizedError("x")))
	assert.True(t, IsForbidden(NewForbiddenError("x")))
	assert.True(t, IsConflict(NewConflictError("x")))
	assert.True(t, IsNotFound(NewNotFoundError("x")))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusOf(fmt.Errorf("save: %w", NewConflictError("taken"))))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("disk")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(&AppError{Type: ErrorTypeValidation}))
}

func TestBuilders(t *testing.T) {
	err := NewConflictError("taken").
		WithCode(CodeUniqueKeyTaken).
		WithDetail("code", "WELCOME").
		WithCause(errors.New("condition failed"))

	assert.True(t, HasCode(fmt.Errorf("wrapped: %w", err), CodeUniqueKeyTaken))
	assert.False(t, HasCode(errors.New("plain"), CodeUniqueKeyTaken))
	assert.Equal(t, "WELCOME", err.Details["code"])
	assert.Equal(t, "CONFLICT[UNIQUE_KEY_TAKEN]: taken (caused by: condition failed)", err.Error())

	err = err.WithDetails(map[string]interface{}{"owner": "c1"})
	assert.Equal(t, map[string]interface{}{"owner": "c1"}, err.Details)
}

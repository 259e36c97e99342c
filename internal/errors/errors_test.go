package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHTTPError(t *testing.T) {
	tests := []struct {
		status int
		code   ErrCode
	}{
		{400, ErrCodeBadRequest},
		{401, ErrCodeUnauthorized},
		{403, ErrCodeForbidden},
		{404, ErrCodeNotFound},
		{429, ErrCodeRateLimited},
		{500, ErrCodeInternal},
		{502, ErrCodeInternal},
	}

	for _, tt := range tests {
		err := NewHTTPError(tt.status, "https://gitee.com/api/v5/repos/o/r")
		assert.Equal(t, tt.code, err.Code)
		assert.Equal(t, tt.status, statusOrInternal(err, tt.status))
		assert.Contains(t, err.Error(), fmt.Sprintf("status %d", tt.status))
	}
}

func statusOrInternal(err *AppError, original int) int {
	if err.Code == ErrCodeInternal {
		return original
	}
	return err.StatusCode()
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError("user")))
	assert.True(t, IsNotFound(NewHTTPError(404, "u")))
	assert.False(t, IsNotFound(NewHTTPError(500, "u")))
	assert.False(t, IsNotFound(fmt.Errorf("plain error")))
	assert.False(t, IsNotFound(nil))
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(NewRateLimitedError("slow down")))
	assert.True(t, IsRateLimited(NewHTTPError(429, "u")))
	assert.False(t, IsRateLimited(NewHTTPError(404, "u")))
}

func TestAppErrorWrapping(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewInternalError("failed to save item", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 500, err.StatusCode())
}

package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"nil is not retryable":            {err: nil, want: false},
		"transient is retryable":          {err: NewTransientError("smtp down", errors.New("dial tcp")), want: true},
		"untyped connector error retries": {err: errors.New("connection reset"), want: true},
		"validation is terminal":          {err: NewValidationError("bad phone", nil), want: false},
		"configuration is terminal":       {err: NewConfigurationError("no contacts", nil), want: false},
		"wrapped validation is terminal":  {err: fmt.Errorf("send: %w", NewValidationError("bad", nil)), want: false},
		"not found is terminal":           {err: ErrNotFound, want: false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestToDomainError(t *testing.T) {
	t.Run("keeps domain errors", func(t *testing.T) {
		de := ToDomainError(NewConflict("dup", nil))
		assert.Equal(t, "CONFLICT", de.Code)
		assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	})

	t.Run("maps not found sentinel", func(t *testing.T) {
		de := ToDomainError(fmt.Errorf("load ticket: %w", ErrNotFound))
		assert.Equal(t, "NOT_FOUND", de.Code)
		assert.Equal(t, KindNotFound, de.Kind)
	})

	t.Run("wraps unknown errors as internal", func(t *testing.T) {
		de := ToDomainError(errors.New("boom"))
		assert.Equal(t, "INTERNAL_ERROR", de.Code)
		assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	})
}

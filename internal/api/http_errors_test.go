package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
)

func TestHTTPStatusForError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", core.ErrValidation("BAD", "bad input"), http.StatusUnprocessableEntity},
		{"budget", core.ErrBudgetExceeded(8, 16), http.StatusUnprocessableEntity},
		{"not found", core.ErrNotFound("workflow", "x"), http.StatusNotFound},
		{"state", core.ErrState(core.CodeInvalidState, "terminal"), http.StatusConflict},
		{"dependency", core.ErrDependencyUnmet(2, 1), http.StatusConflict},
		{"cancelled", core.ErrCancelled("stopped"), http.StatusConflict},
		{"auth", core.ErrAuth("bad key"), http.StatusUnauthorized},
		{"rate limit", core.ErrRateLimit("slow down"), http.StatusTooManyRequests},
		{"timeout", core.ErrTimeout("too slow"), http.StatusGatewayTimeout},
		{"network", core.ErrNetwork("refused"), http.StatusBadGateway},
		{"provider", core.ErrProvider("UPSTREAM", "boom", true), http.StatusBadGateway},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := httpStatusForError(tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestHTTPStatusForErrorHidesInternalDetail(t *testing.T) {
	_, msg := httpStatusForError(errors.New("db connection string leaked"))
	assert.Equal(t, "internal error", msg)
}

package api

import (
	"errors"
	"net/http"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
)

// httpStatusForError maps domain error categories onto HTTP statuses. The
// client-facing message is the domain message; internal errors get a
// generic one.
func httpStatusForError(err error) (int, string) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return http.StatusInternalServerError, "internal error"
	}

	switch domErr.Category {
	case core.ErrCatValidation, core.ErrCatBudget:
		return http.StatusUnprocessableEntity, domErr.Message
	case core.ErrCatNotFound:
		return http.StatusNotFound, domErr.Message
	case core.ErrCatState, core.ErrCatDependency:
		return http.StatusConflict, domErr.Message
	case core.ErrCatCancelled:
		return http.StatusConflict, domErr.Message
	case core.ErrCatAuth:
		return http.StatusUnauthorized, domErr.Message
	case core.ErrCatRateLimit:
		return http.StatusTooManyRequests, domErr.Message
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout, domErr.Message
	case core.ErrCatNetwork, core.ErrCatProvider:
		return http.StatusBadGateway, domErr.Message
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

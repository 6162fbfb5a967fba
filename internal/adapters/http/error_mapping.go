package httpadapter

import (
	"net/http"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidConfig):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrIndexState):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

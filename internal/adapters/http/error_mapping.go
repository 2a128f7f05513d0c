package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

// errorReply is what a client sees for a failed request. Only validation
// errors carry their own text.
type errorReply struct {
	status  int
	message string
}

func mapError(err error) errorReply {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return errorReply{status: http.StatusBadRequest, message: err.Error()}
	case domain.IsKind(err, domain.ErrUnauthorized):
		return errorReply{status: http.StatusUnauthorized, message: "unauthorized"}
	case domain.IsKind(err, domain.ErrArticleNotFound):
		return errorReply{status: http.StatusNotFound, message: "article not found"}
	case domain.IsKind(err, domain.ErrRetrievalUnavailable):
		return errorReply{status: http.StatusServiceUnavailable, message: "legal sources are unavailable, retry later"}
	case domain.IsKind(err, domain.ErrTemporary):
		return errorReply{status: http.StatusServiceUnavailable, message: "service temporarily unavailable, retry later"}
	case errors.Is(err, context.DeadlineExceeded):
		return errorReply{status: http.StatusGatewayTimeout, message: "request timed out"}
	default:
		return errorReply{status: http.StatusInternalServerError, message: http.StatusText(http.StatusInternalServerError)}
	}
}

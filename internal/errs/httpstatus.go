package errs

import (
	"errors"
	"net/http"
)

// HTTPStatus maps a domain error to its HTTP-equivalent status code. This
// is the thin adapter spec.md §9's design notes ask for: domain errors
// stay enumerated kinds, and only this function knows about transport.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, new(*NotFound)), errors.As(err, new(*GNS3VMNotConfigured)):
		return http.StatusNotFound
	case errors.As(err, new(*Conflict)), errors.As(err, new(*ComputeConflict)), errors.As(err, new(*CapacityError)):
		return http.StatusConflict
	case errors.As(err, new(*BadRequest)):
		return http.StatusBadRequest
	case errors.As(err, new(*ComputeAuth)):
		return http.StatusUnauthorized
	case errors.As(err, new(*ComputeUnreachable)):
		return http.StatusBadGateway
	case errors.As(err, new(*ComputeHTTP)):
		var h *ComputeHTTP
		errors.As(err, &h)
		if h.Status > 0 {
			return h.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/search"
	appstays "staybook/internal/app/handlers/stays"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/reservations"
	"staybook/internal/domain/shared/storage"
	"staybook/internal/domain/stays"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps application errors to HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, search.ErrInvalidSearchRange),
		errors.Is(err, search.ErrInvalidSearchCriteria),
		errors.Is(err, reservations.ErrInvalidRange):
		return http.StatusBadRequest, "invalid_range"
	case errors.Is(err, stays.ErrCapacity),
		errors.Is(err, stays.ErrNameRequired),
		errors.Is(err, stays.ErrAddressRequired),
		errors.Is(err, stays.ErrHostRequired),
		errors.Is(err, stays.ErrInvalidCoordinates),
		errors.Is(err, reservations.ErrGuestRequired),
		errors.Is(err, policies.ErrImageUploadEmpty):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, policies.ErrAddressNotFound):
		return http.StatusUnprocessableEntity, "address_not_found"
	case errors.Is(err, appstays.ErrGeocoderUnavailable):
		return http.StatusUnprocessableEntity, "coordinates_required"
	case errors.Is(err, middleware.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, middleware.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, reservations.ErrReservationNotFound):
		return http.StatusNotFound, "reservation_not_found"
	case errors.Is(err, stays.ErrStayNotFound):
		return http.StatusNotFound, "stay_not_found"
	case errors.Is(err, reservations.ErrReservationCollision):
		return http.StatusConflict, "reservation_collision"
	case errors.Is(err, stays.ErrStayHasActiveReservations):
		return http.StatusConflict, "stay_has_active_reservations"
	case errors.Is(err, policies.ErrLockTimeout),
		errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, availability.ErrNightConflict):
		return http.StatusInternalServerError, "ledger_conflict"
	case errors.Is(err, commands.ErrHandlerNotFound):
		return http.StatusNotImplemented, "not_implemented"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError && logger != nil {
		level := slog.LevelWarn
		if status != http.StatusServiceUnavailable {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"code", code,
			"request_id", c.GetString("request_id"),
			"error", err,
		)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: code})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg, Code: "invalid_request"})
}

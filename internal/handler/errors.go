package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/devfloor/waitline/internal/repository"
	"github.com/devfloor/waitline/internal/service"
)

// writeError maps engine sentinels to stable HTTP error codes.  Each
// business rule gets its own code so clients can present a specific
// message, and lock contention is distinguishable from exhaustion so a
// client can decide whether to retry.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidPartySize):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_party_size"})
	case errors.Is(err, service.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrSlotNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "slot_not_found"})
	case errors.Is(err, repository.ErrStoreNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "store_not_found"})
	case errors.Is(err, repository.ErrEntryNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "entry_not_found"})
	case errors.Is(err, repository.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation_not_found"})
	case errors.Is(err, service.ErrNoAvailableSlot):
		return c.JSON(http.StatusConflict, echo.Map{"error": "no_available_slot"})
	case errors.Is(err, service.ErrDuplicateEntry):
		return c.JSON(http.StatusConflict, echo.Map{"error": "duplicate_entry"})
	case errors.Is(err, service.ErrMaxQueueExceeded):
		return c.JSON(http.StatusConflict, echo.Map{"error": "max_queue_exceeded"})
	case errors.Is(err, service.ErrStoreNotOperating):
		return c.JSON(http.StatusConflict, echo.Map{"error": "store_not_operating"})
	case errors.Is(err, service.ErrCannotCancelCalled):
		return c.JSON(http.StatusConflict, echo.Map{"error": "cannot_cancel_called"})
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid_transition"})
	case errors.Is(err, service.ErrLockUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock_unavailable", "retryable": true})
	case errors.Is(err, service.ErrQueueConflict):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "queue_conflict", "retryable": true})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
}

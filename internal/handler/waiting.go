package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/devfloor/waitline/internal/middleware"
	"github.com/devfloor/waitline/internal/model"
	"github.com/devfloor/waitline/internal/service"
)

// WaitingHandler exposes the customer side of the waiting queue:
// registration, position lookup and withdrawal.
type WaitingHandler struct {
	Queue *service.WaitingQueue
}

func NewWaitingHandler(queue *service.WaitingQueue) *WaitingHandler {
	return &WaitingHandler{Queue: queue}
}

type entryResp struct {
	ID             uint64 `json:"id"`
	StoreID        uint64 `json:"store_id"`
	SequenceNumber uint64 `json:"sequence_number"`
	Status         string `json:"status"`
	PeopleAhead    int    `json:"people_ahead"`
}

func toEntryResp(e *model.QueueEntry, ahead int) entryResp {
	return entryResp{
		ID:             e.ID,
		StoreID:        e.StoreID,
		SequenceNumber: e.SequenceNumber,
		Status:         e.Status,
		PeopleAhead:    ahead,
	}
}

// Register handles POST /v1/stores/:id/waitings.
func (h *WaitingHandler) Register(c echo.Context) error {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	storeID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	entry, ahead, err := h.Queue.Register(ctx, storeID, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toEntryResp(entry, ahead))
}

// Position handles GET /v1/stores/:id/waitings/me, returning the
// caller's current entry and a freshly computed people-ahead count.
func (h *WaitingHandler) Position(c echo.Context) error {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	storeID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	entry, err := h.Queue.EntryForUser(ctx, storeID, userID)
	if err != nil {
		return writeError(c, err)
	}
	ahead, err := h.Queue.PeopleAhead(ctx, entry)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toEntryResp(entry, ahead))
}

// Cancel handles DELETE /v1/stores/:id/waitings/:entryId.
func (h *WaitingHandler) Cancel(c echo.Context) error {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	storeID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}
	entryID, ok := pathID(c, "entryId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entry id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Queue.Cancel(ctx, userID, storeID, entryID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

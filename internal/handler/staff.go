package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/devfloor/waitline/internal/middleware"
	"github.com/devfloor/waitline/internal/model"
	"github.com/devfloor/waitline/internal/repository"
	"github.com/devfloor/waitline/internal/service"
)

// StaffHandler exposes the owner-side operations: store provisioning
// with its slot horizon, and queue entry transitions.
type StaffHandler struct {
	Stores *repository.StoreRepo
	Slots  *service.SlotStore
	Queue  *service.WaitingQueue
}

func NewStaffHandler(stores *repository.StoreRepo, slots *service.SlotStore, queue *service.WaitingQueue) *StaffHandler {
	return &StaffHandler{Stores: stores, Slots: slots, Queue: queue}
}

type createStoreReq struct {
	Name           string `json:"name"`
	OperatingStart string `json:"operating_start"` // "2006-01-02"
	OperatingEnd   string `json:"operating_end"`
	OpeningTime    string `json:"opening_time"` // "15:04:05"
	ClosingTime    string `json:"closing_time"`
	MaxQueueLength int    `json:"max_queue_length"`

	// Optional booking horizon.  When SlotTimes is non-empty one slot
	// per (operating day, time) is materialized with SlotCapacity.
	SlotTimes    []string `json:"slot_times"`
	SlotCapacity int      `json:"slot_capacity"`
}

// CreateStore handles POST /v1/stores (OWNER role).
func (h *StaffHandler) CreateStore(c echo.Context) error {
	ownerID, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createStoreReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	start, err := time.Parse("2006-01-02", req.OperatingStart)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid operating_start"})
	}
	end, err := time.Parse("2006-01-02", req.OperatingEnd)
	if err != nil || end.Before(start) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid operating_end"})
	}
	if req.MaxQueueLength < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "max_queue_length required"})
	}
	if len(req.SlotTimes) > 0 && req.SlotCapacity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot_capacity required"})
	}

	store := &model.Store{
		Name:           req.Name,
		OwnerID:        ownerID,
		OperatingStart: start,
		OperatingEnd:   end,
		OpeningTime:    req.OpeningTime,
		ClosingTime:    req.ClosingTime,
		MaxQueueLength: req.MaxQueueLength,
		IsActive:       true,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	if err := h.Stores.Create(ctx, store); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create store failed"})
	}

	if len(req.SlotTimes) > 0 {
		slots := buildHorizon(store.ID, start, end, req.SlotTimes, req.SlotCapacity)
		if err := h.Slots.CreateBulk(ctx, slots); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create slots failed"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": store.ID})
}

// buildHorizon expands (date range x slot times) into slot rows.
func buildHorizon(storeID uint64, start, end time.Time, times []string, capacity int) []model.Slot {
	var out []model.Slot
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format("2006-01-02")
		for _, t := range times {
			out = append(out, model.Slot{
				StoreID:   storeID,
				Date:      date,
				Time:      t,
				Total:     capacity,
				Available: capacity,
				Status:    model.SlotAvailable,
			})
		}
	}
	return out
}

type updateStatusReq struct {
	Status string `json:"status"` // CALLED | COMPLETED | CANCELED
}

// UpdateStatus handles PATCH /v1/stores/:id/waitings/:entryId/status
// (OWNER role).  The engine enforces store ownership and the lifecycle
// rules.
func (h *StaffHandler) UpdateStatus(c echo.Context) error {
	staffID, ok := middleware.CurrentUser(c)
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
	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	to := strings.ToUpper(strings.TrimSpace(req.Status))
	switch to {
	case model.QueueCalled, model.QueueCompleted, model.QueueCanceled:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	entry, err := h.Queue.UpdateStatus(ctx, staffID, storeID, entryID, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":              entry.ID,
		"sequence_number": entry.SequenceNumber,
		"status":          entry.Status,
	})
}

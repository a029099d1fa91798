package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/devfloor/waitline/internal/middleware"
	"github.com/devfloor/waitline/internal/model"
	"github.com/devfloor/waitline/internal/service"
)

// ReservationHandler exposes slot browsing and the reserve/cancel
// operations of the reservation engine.
type ReservationHandler struct {
	Engine *service.ReservationEngine
	Slots  *service.SlotStore
}

func NewReservationHandler(engine *service.ReservationEngine, slots *service.SlotStore) *ReservationHandler {
	return &ReservationHandler{Engine: engine, Slots: slots}
}

type reserveReq struct {
	Date      string `json:"date"` // "2006-01-02"
	Time      string `json:"time"` // "15:04:05"
	PartySize int    `json:"party_size"`
}

type reservationResp struct {
	ID        uint64 `json:"id"`
	StoreID   uint64 `json:"store_id"`
	SlotID    uint64 `json:"slot_id"`
	PartySize int    `json:"party_size"`
	Status    string `json:"status"`
}

type slotResp struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
	Status    string `json:"status"`
}

func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// Reserve handles POST /v1/stores/:id/reservations.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	storeID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Date == "" || req.Time == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date/time required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	res, err := h.Engine.Reserve(ctx, userID, storeID, req.Date, req.Time, req.PartySize)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, reservationResp{
		ID:        res.ID,
		StoreID:   res.StoreID,
		SlotID:    res.SlotID,
		PartySize: res.PartySize,
		Status:    res.Status,
	})
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Engine.Cancel(ctx, userID, reservationID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListMine handles GET /v1/me/reservations.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	list, err := h.Engine.ListByUser(ctx, userID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]reservationResp, 0, len(list))
	for _, r := range list {
		out = append(out, reservationResp{
			ID:        r.ID,
			StoreID:   r.StoreID,
			SlotID:    r.SlotID,
			PartySize: r.PartySize,
			Status:    r.Status,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// ListSlots handles GET /v1/stores/:id/slots?date=2006-01-02.
func (h *ReservationHandler) ListSlots(c echo.Context) error {
	storeID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}
	date := c.QueryParam("date")
	if date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	slots, err := h.Slots.ListByStoreDate(ctx, storeID, date)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]slotResp, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResp(&s))
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "slots": out})
}

func toSlotResp(s *model.Slot) slotResp {
	return slotResp{
		Date:      s.Date,
		Time:      s.Time,
		Total:     s.Total,
		Available: s.Available,
		Status:    s.Status,
	}
}

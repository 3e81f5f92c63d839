// README: Operator trip handlers for listing and the status workflow.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tripdesk/internal/modules/trip"
	"tripdesk/internal/telegram"
)

// TripService is implemented by *trip.Service.
type TripService interface {
	List(ctx context.Context, status trip.Status, limit int) ([]trip.Trip, error)
	Accept(ctx context.Context, id int64) (*trip.Trip, error)
	SetPrice(ctx context.Context, id int64, price string) (*trip.Trip, error)
	Confirm(ctx context.Context, id int64) (*trip.Trip, error)
	Reject(ctx context.Context, id int64) (*trip.Trip, error)
}

type TripHandler struct {
	trips     TripService
	traveller telegram.TravellerMessenger
	log       *zap.Logger
}

// NewTripHandler builds the handler. traveller may be nil.
func NewTripHandler(svc TripService, traveller telegram.TravellerMessenger, log *zap.Logger) *TripHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TripHandler{trips: svc, traveller: traveller, log: log}
}

// List handles GET /api/operator/trips?status=pending.
func (h *TripHandler) List(c *gin.Context) {
	status := trip.StatusPending
	if v := c.Query("status"); v != "" {
		s, ok := trip.ParseStatus(v)
		if !ok {
			writeError(c, http.StatusBadRequest, "unknown status")
			return
		}
		status = s
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	trips, err := h.trips.List(ctx, status, trip.DefaultListLimit)
	if err != nil {
		writeTripError(c, err)
		return
	}
	if trips == nil {
		trips = []trip.Trip{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"trips": trips})
}

func (h *TripHandler) Accept(c *gin.Context) {
	h.transition(c, h.trips.Accept)
}

func (h *TripHandler) Confirm(c *gin.Context) {
	h.transition(c, h.trips.Confirm)
}

func (h *TripHandler) Reject(c *gin.Context) {
	h.transition(c, h.trips.Reject)
}

type priceReq struct {
	Price string `json:"price"`
}

// Price handles POST /api/operator/trips/:id/price.
func (h *TripHandler) Price(c *gin.Context) {
	id, ok := parseTripID(c)
	if !ok {
		return
	}
	var req priceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Price) == "" {
		writeError(c, http.StatusBadRequest, "missing price")
		return
	}
	h.respond(c, func(ctx context.Context) (*trip.Trip, error) { return h.trips.SetPrice(ctx, id, req.Price) })
}

func (h *TripHandler) transition(c *gin.Context, op func(context.Context, int64) (*trip.Trip, error)) {
	id, ok := parseTripID(c)
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*trip.Trip, error) { return op(ctx, id) })
}

func (h *TripHandler) respond(c *gin.Context, op func(context.Context) (*trip.Trip, error)) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	t, err := op(ctx)
	if err != nil {
		writeTripError(c, err)
		return
	}
	if h.traveller != nil {
		if err := h.traveller.SendTo(t.UserKey, telegram.StatusText(t)); err != nil {
			h.log.Debug("traveller not notified", zap.Int64("trip_id", t.ID), zap.Error(err))
		}
	}
	writeJSON(c, http.StatusOK, t)
}

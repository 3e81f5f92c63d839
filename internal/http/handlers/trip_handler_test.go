// README: Tests for the operator trip handlers.
package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tripdesk/internal/http/handlers"
	"tripdesk/internal/modules/trip"
)

type fakeTrips struct {
	trips      map[int64]*trip.Trip
	listStatus trip.Status
}

func newFakeTrips() *fakeTrips {
	return &fakeTrips{trips: map[int64]*trip.Trip{
		1: {ID: 1, UserKey: "tg:100", Origin: "Grodno", Destination: "Minsk", Date: "2025-08-01", Transport: "bus", Status: trip.StatusPending},
	}}
}

func (f *fakeTrips) List(_ context.Context, status trip.Status, _ int) ([]trip.Trip, error) {
	f.listStatus = status
	var out []trip.Trip
	for _, t := range f.trips {
		if t.Status == status {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTrips) move(id int64, from, to trip.Status, price *string) (*trip.Trip, error) {
	t, ok := f.trips[id]
	if !ok {
		return nil, trip.ErrNotFound
	}
	if t.Status != from {
		return nil, trip.ErrInvalidState
	}
	t.Status = to
	if price != nil {
		t.Price = price
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTrips) Accept(_ context.Context, id int64) (*trip.Trip, error) {
	return f.move(id, trip.StatusPending, trip.StatusAccepted, nil)
}

func (f *fakeTrips) SetPrice(_ context.Context, id int64, price string) (*trip.Trip, error) {
	return f.move(id, trip.StatusAccepted, trip.StatusAwaitingPayment, &price)
}

func (f *fakeTrips) Confirm(_ context.Context, id int64) (*trip.Trip, error) {
	return f.move(id, trip.StatusAwaitingPayment, trip.StatusConfirmed, nil)
}

func (f *fakeTrips) Reject(_ context.Context, id int64) (*trip.Trip, error) {
	t, ok := f.trips[id]
	if !ok {
		return nil, trip.ErrNotFound
	}
	return f.move(id, t.Status, trip.StatusRejected, nil)
}

type sentMessage struct{ user, text string }

type recordingMessenger struct{ sent []sentMessage }

func (r *recordingMessenger) SendTo(user, text string) error {
	r.sent = append(r.sent, sentMessage{user, text})
	return nil
}

func tripRouter(h *handlers.TripHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/trips", h.List)
	r.POST("/trips/:id/accept", h.Accept)
	r.POST("/trips/:id/price", h.Price)
	r.POST("/trips/:id/confirm", h.Confirm)
	r.POST("/trips/:id/reject", h.Reject)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTripHandler_Workflow(t *testing.T) {
	svc := newFakeTrips()
	msgr := &recordingMessenger{}
	r := tripRouter(handlers.NewTripHandler(svc, msgr, zap.NewNop()))

	w := serve(r, http.MethodPost, "/trips/1/accept", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"accepted"`)

	w = serve(r, http.MethodPost, "/trips/1/price", `{"price":"45 BYN"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"price":"45 BYN"`)

	w = serve(r, http.MethodPost, "/trips/1/confirm", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, trip.StatusConfirmed, svc.trips[1].Status)

	require.Len(t, msgr.sent, 3)
	for _, m := range msgr.sent {
		assert.Equal(t, "tg:100", m.user)
	}
	assert.Contains(t, msgr.sent[1].text, "45 BYN")
}

func TestTripHandler_Errors(t *testing.T) {
	r := tripRouter(handlers.NewTripHandler(newFakeTrips(), nil, nil))

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/trips/abc/accept", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/trips/0/accept", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodPost, "/trips/9/accept", "").Code)
	assert.Equal(t, http.StatusConflict, serve(r, http.MethodPost, "/trips/1/confirm", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/trips/1/price", `{"price":" "}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/trips/1/price", `{`).Code)
}

func TestTripHandler_List(t *testing.T) {
	svc := newFakeTrips()
	r := tripRouter(handlers.NewTripHandler(svc, nil, nil))

	w := serve(r, http.MethodGet, "/trips", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, trip.StatusPending, svc.listStatus)
	assert.Contains(t, w.Body.String(), `"destination":"Minsk"`)

	w = serve(r, http.MethodGet, "/trips?status=confirmed", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"trips":[]}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/trips?status=lost", "").Code)
}

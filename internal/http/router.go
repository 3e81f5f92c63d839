// README: HTTP router registration.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tripdesk/internal/http/handlers"
	"tripdesk/internal/http/middleware"
	"tripdesk/internal/infra"
	"tripdesk/internal/telegram"
)

const OperatorRole = "operator"

type RouterDeps struct {
	Engine      handlers.TurnHandler
	Quota       handlers.Quota // optional
	Trips       handlers.TripService
	Traveller   telegram.TravellerMessenger // optional
	Verifier    infra.OperatorVerifier         // operator routes are mounted only when set
	ChatTimeout time.Duration
}

func NewRouter(deps RouterDeps, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	chat := handlers.NewChatHandler(deps.Engine, deps.Quota, deps.ChatTimeout)
	r.POST("/api/chat", chat.Chat)

	if deps.Verifier == nil || deps.Trips == nil {
		log.Info("operator API disabled")
		return r
	}

	trips := handlers.NewTripHandler(deps.Trips, deps.Traveller, log)
	op := r.Group("/api/operator", middleware.Auth(deps.Verifier), middleware.RequireRole(OperatorRole))
	op.GET("/trips", trips.List)
	op.POST("/trips/:id/accept", trips.Accept)
	op.POST("/trips/:id/price", trips.Price)
	op.POST("/trips/:id/confirm", trips.Confirm)
	op.POST("/trips/:id/reject", trips.Reject)
	return r
}

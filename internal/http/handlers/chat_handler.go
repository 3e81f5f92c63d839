// README: Chat turn handler (quota-guarded dialogue turns over HTTP).
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tripdesk/internal/dialogue"
	"tripdesk/internal/modules/usage"
)

// TurnHandler is implemented by *dialogue.Engine.
type TurnHandler interface {
	Handle(ctx context.Context, turn dialogue.Turn) (dialogue.Reply, error)
}

// Quota is implemented by *usage.Service.
type Quota interface {
	Consume(ctx context.Context, userKey string) error
}

type ChatHandler struct {
	engine  TurnHandler
	quota   Quota
	timeout time.Duration
}

// NewChatHandler builds the handler. quota may be nil to disable the monthly limit.
func NewChatHandler(engine TurnHandler, quota Quota, timeout time.Duration) *ChatHandler {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &ChatHandler{engine: engine, quota: quota, timeout: timeout}
}

type chatReq struct {
	User    string `json:"user"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	req.User = strings.TrimSpace(req.User)
	req.Message = strings.TrimSpace(req.Message)
	if req.User == "" || req.Message == "" {
		writeError(c, http.StatusBadRequest, "missing user or message")
		return
	}
	if !isValidUserKey(req.User) {
		writeError(c, http.StatusBadRequest, "invalid user")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if h.quota != nil {
		if err := h.quota.Consume(ctx, req.User); err != nil {
			switch {
			case errors.Is(err, usage.ErrQuotaExceeded):
				writeError(c, http.StatusTooManyRequests, err.Error())
			default:
				writeError(c, http.StatusServiceUnavailable, dialogue.TextServiceUnavailable)
			}
			return
		}
	}

	reply, err := h.engine.Handle(ctx, dialogue.Turn{UserKey: req.User, UserName: strings.TrimSpace(req.Name), Text: req.Message})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, reply)
}

package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/converse/internal/assistant"
	"github.com/mohammad-safakhou/converse/internal/telemetry"
	"github.com/mohammad-safakhou/converse/models"
)

type handlers struct {
	assistant *assistant.Assistant
	tele      *telemetry.Telemetry
	timeout   time.Duration
}

func (h *handlers) register(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/conversations/:id/messages", h.postMessage)
	api.POST("/conversations/:id/reset", h.resetConversation)
	api.GET("/ops/metrics", h.opsMetrics)
}

type messageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	Response models.AgentResponse `json:"response"`
}

func (h *handlers) postMessage(c echo.Context) error {
	conversationID := c.Param("id")
	if strings.TrimSpace(conversationID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation id required")
	}

	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text required")
	}

	ctx := c.Request().Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp := h.assistant.HandleTurn(ctx, conversationID, req.Text)
	return c.JSON(http.StatusOK, messageResponse{Response: resp})
}

func (h *handlers) resetConversation(c echo.Context) error {
	conversationID := c.Param("id")
	if strings.TrimSpace(conversationID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation id required")
	}
	if err := h.assistant.Reset(c.Request().Context(), conversationID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "reset failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "reset"})
}

func (h *handlers) opsMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tele.Snapshot())
}

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/client/internal/audio"
	"github.com/satriahrh/arunika/client/internal/state"
	"github.com/satriahrh/arunika/client/usecase"
)

// Controller is the client surface driven by the control API
type Controller interface {
	SendText(text string)
	StartRecording(ctx context.Context) error
	StopRecording()
	RequestSessions()
	RequestTranscripts(id string)
	DeleteSession(id string) error
	CreateNewSession()
	SwitchSession(id string)
	InterruptStreamingResponse()
	SetTTS(enabled bool)
	IsRecording() bool
	IsStreamingResponse() bool
	State() *state.Store
}

// Options holds the optional endpoints of the control API
type Options struct {
	// UI streams state snapshots over a WebSocket. Not registered when nil.
	UI echo.HandlerFunc
	// Metrics serves Prometheus metrics. Not registered when nil.
	Metrics http.Handler
}

type handler struct {
	controller Controller
	logger     *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, controller Controller, opts Options, logger *zap.Logger) {
	h := &handler{controller: controller, logger: logger}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":     "ok",
			"service":    "arunika-client",
			"connection": controller.State().Snapshot().Connection,
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/state", h.getState)
	v1.POST("/messages", h.sendText)

	// Recording
	v1.POST("/recording/start", h.startRecording)
	v1.POST("/recording/stop", h.stopRecording)

	// Sessions
	v1.GET("/sessions", h.requestSessions)
	v1.POST("/sessions", h.createSession)
	v1.DELETE("/sessions/:id", h.deleteSession)
	v1.POST("/sessions/:id/view", h.viewSession)
	v1.POST("/sessions/:id/transcripts", h.requestTranscripts)

	// Spoken responses
	v1.POST("/streaming/interrupt", h.interruptStreaming)
	v1.PUT("/tts", h.setTTS)

	if opts.UI != nil {
		e.GET("/ui", opts.UI)
	}
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}
}

func (h *handler) getState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.controller.State().Snapshot())
}

func (h *handler) sendText(c echo.Context) error {
	var req SendTextRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Error("Failed to bind send text request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Text is required",
		})
	}

	h.controller.SendText(req.Text)
	return c.JSON(http.StatusAccepted, accepted)
}

func (h *handler) startRecording(c echo.Context) error {
	err := h.controller.StartRecording(c.Request().Context())

	var accessErr *audio.DeviceAccessError
	if errors.As(err, &accessErr) {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "device_unavailable",
			Message: accessErr.Error(),
		})
	}
	if err != nil {
		h.logger.Error("Failed to start recording", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to start recording",
		})
	}
	return c.JSON(http.StatusOK, RecordingResponse{Recording: h.controller.IsRecording()})
}

func (h *handler) stopRecording(c echo.Context) error {
	h.controller.StopRecording()
	return c.JSON(http.StatusOK, RecordingResponse{Recording: h.controller.IsRecording()})
}

func (h *handler) requestSessions(c echo.Context) error {
	h.controller.RequestSessions()
	return c.JSON(http.StatusAccepted, accepted)
}

func (h *handler) createSession(c echo.Context) error {
	h.controller.CreateNewSession()
	return c.JSON(http.StatusAccepted, accepted)
}

func (h *handler) deleteSession(c echo.Context) error {
	if err := h.controller.DeleteSession(c.Param("id")); err != nil {
		if errors.Is(err, usecase.ErrDeleteLiveSession) {
			return c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "live_session",
				Message: err.Error(),
			})
		}
		h.logger.Error("Failed to delete session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to delete session",
		})
	}
	return c.JSON(http.StatusAccepted, accepted)
}

func (h *handler) viewSession(c echo.Context) error {
	h.controller.SwitchSession(c.Param("id"))
	return c.JSON(http.StatusOK, h.controller.State().Snapshot())
}

func (h *handler) requestTranscripts(c echo.Context) error {
	h.controller.RequestTranscripts(c.Param("id"))
	return c.JSON(http.StatusAccepted, accepted)
}

func (h *handler) interruptStreaming(c echo.Context) error {
	h.controller.InterruptStreamingResponse()
	return c.JSON(http.StatusAccepted, StreamingResponse{Streaming: h.controller.IsStreamingResponse()})
}

func (h *handler) setTTS(c echo.Context) error {
	var req SetTTSRequest
	if err := c.Bind(&req); err != nil || req.Value == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Boolean value is required",
		})
	}

	h.controller.SetTTS(*req.Value)
	return c.JSON(http.StatusAccepted, accepted)
}

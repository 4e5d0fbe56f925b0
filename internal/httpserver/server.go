// Package httpserver exposes interview sessions over HTTP and websockets.
package httpserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"hotseat/internal/domain"
	"hotseat/internal/observability/metrics"
	"hotseat/internal/ports"
	"hotseat/internal/profile"
	"hotseat/internal/usecase"
)

// ControllerFactory builds a turn controller for one new session, wired to
// the given event sink.
type ControllerFactory func(sessionID string, prof domain.Profile, sink ports.EventSink) (*usecase.TurnController, error)

// Server routes HTTP traffic to interview sessions.
type Server struct {
	factory  ControllerFactory
	profiles ports.ProfileStore
	registry *Registry
	metrics  *metrics.Metrics
	metricsH http.Handler
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewServer(
	factory ControllerFactory,
	profiles ports.ProfileStore,
	m *metrics.Metrics,
	metricsHandler http.Handler,
	log zerolog.Logger,
) *Server {
	return &Server{
		factory:  factory,
		profiles: profiles,
		registry: NewRegistry(),
		metrics:  m,
		metricsH: metricsHandler,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the configured Echo instance.
func (s *Server) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(s.requestLogger)

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(s.metricsH))

	e.POST("/sessions", s.createSession)
	e.GET("/sessions/:id", s.getSession)
	e.DELETE("/sessions/:id", s.deleteSession)
	e.GET("/sessions/:id/events", s.streamEvents)
	e.POST("/sessions/:id/voice/start", s.startVoice)
	e.POST("/sessions/:id/voice/stop", s.stopVoice)
	e.POST("/sessions/:id/text", s.submitText)
	e.POST("/sessions/:id/audio/toggle", s.toggleAudio)
	e.POST("/sessions/:id/end", s.endInterview)

	return e
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		s.log.Info().
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Int("status", c.Response().Status).
			Msg("request")
		return err
	}
}

func (s *Server) createSession(c echo.Context) error {
	prof, err := s.profiles.Load(c.Request().Context())
	if err != nil {
		if errors.Is(err, profile.ErrProfileMissing) {
			return c.JSON(http.StatusUnprocessableEntity, errBody(err))
		}
		return c.JSON(http.StatusInternalServerError, errBody(err))
	}

	id := uuid.NewString()
	hub := NewEventHub(s.log.With().Str("session", id).Logger())
	controller, err := s.factory(id, prof, hub)
	if err != nil {
		hub.Close()
		return c.JSON(http.StatusInternalServerError, errBody(err))
	}

	s.registry.Add(&Session{ID: id, Controller: controller, Hub: hub})
	s.metrics.SessionsTotal.Inc()
	s.metrics.SessionsActive.Inc()
	s.log.Info().Str("session", id).Msg("session created")

	view, err := controller.Snapshot()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errBody(err))
	}
	return c.JSON(http.StatusCreated, view)
}

func (s *Server) getSession(c echo.Context) error {
	session, ok := s.registry.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errBody(errors.New("session not found")))
	}
	view, err := session.Controller.Snapshot()
	if err != nil {
		return s.controllerError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) deleteSession(c echo.Context) error {
	session, ok := s.registry.Remove(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errBody(errors.New("session not found")))
	}
	_ = session.Controller.EndInterview()
	session.Controller.Close()
	session.Hub.Close()
	s.metrics.SessionsActive.Dec()
	s.log.Info().Str("session", session.ID).Msg("session closed")
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) streamEvents(c echo.Context) error {
	session, ok := s.registry.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errBody(errors.New("session not found")))
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	session.Hub.Serve(conn)
	return nil
}

func (s *Server) startVoice(c echo.Context) error {
	return s.command(c, func(ctrl *usecase.TurnController) error {
		return ctrl.StartVoice()
	})
}

func (s *Server) stopVoice(c echo.Context) error {
	return s.command(c, func(ctrl *usecase.TurnController) error {
		return ctrl.StopVoice()
	})
}

type submitTextRequest struct {
	Text string `json:"text"`
}

func (s *Server) submitText(c echo.Context) error {
	var req submitTextRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody(errors.New("malformed request body")))
	}
	return s.command(c, func(ctrl *usecase.TurnController) error {
		return ctrl.SubmitText(req.Text)
	})
}

func (s *Server) toggleAudio(c echo.Context) error {
	session, ok := s.registry.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errBody(errors.New("session not found")))
	}
	enabled, err := session.Controller.ToggleAudio()
	if err != nil {
		return s.controllerError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"audioEnabled": enabled})
}

func (s *Server) endInterview(c echo.Context) error {
	return s.command(c, func(ctrl *usecase.TurnController) error {
		return ctrl.EndInterview()
	})
}

func (s *Server) command(c echo.Context, fn func(*usecase.TurnController) error) error {
	session, ok := s.registry.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errBody(errors.New("session not found")))
	}
	if err := fn(session.Controller); err != nil {
		return s.controllerError(c, err)
	}
	view, err := session.Controller.Snapshot()
	if err != nil {
		return s.controllerError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) controllerError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrEmptySubmission):
		return c.JSON(http.StatusBadRequest, errBody(err))
	case errors.Is(err, usecase.ErrInterviewCompleted),
		errors.Is(err, usecase.ErrSpeaking),
		errors.Is(err, usecase.ErrNotListening),
		errors.Is(err, usecase.ErrSubmissionInFlight):
		return c.JSON(http.StatusConflict, errBody(err))
	case errors.Is(err, usecase.ErrControllerClosed):
		return c.JSON(http.StatusGone, errBody(err))
	default:
		return c.JSON(http.StatusInternalServerError, errBody(err))
	}
}

// Shutdown ends and closes every live session.
func (s *Server) Shutdown() {
	for _, session := range s.registry.Drain() {
		_ = session.Controller.EndInterview()
		session.Controller.Close()
		session.Hub.Close()
		s.metrics.SessionsActive.Dec()
	}
}

func errBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

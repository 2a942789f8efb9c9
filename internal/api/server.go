// Package api exposes ranking and grounded questions over HTTP.
package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spigell/talent-ranker/internal/engine"
	"github.com/spigell/talent-ranker/internal/grounding"
	"github.com/spigell/talent-ranker/internal/logger"
	"github.com/spigell/talent-ranker/internal/scoring"
	"go.uber.org/zap"
)

const (
	defaultAddress     = ":8000"
	defaultMaxUploadMB = 50
	serviceName        = "talent-ranker"
)

// Config controls the HTTP listener.
type Config struct {
	Address     string `mapstructure:"address"`
	MaxUploadMB int    `mapstructure:"max-upload-mb"`
}

// Engine is the part of the ranking engine the handlers use.
type Engine interface {
	Rank(ctx context.Context, req engine.RankRequest) (*engine.RankResponse, error)
	Ask(ctx context.Context, req engine.AskRequest) (*grounding.Answer, error)
	ClearSession(ctx context.Context, candidateID string) error
	DefaultWeights() scoring.Weights
}

// Server is the HTTP front of the engine.
type Server struct {
	app    *fiber.App
	engine Engine
	cfg    Config
	logger *zap.Logger
}

// New builds the fiber application and registers every route.
func New(cfg Config, eng Engine, log *zap.Logger) *Server {
	if cfg.Address == "" {
		cfg.Address = defaultAddress
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = defaultMaxUploadMB
	}

	s := &Server{engine: eng, cfg: cfg, logger: logger.OrNop(log)}
	s.app = fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		BodyLimit:             cfg.MaxUploadMB * 1024 * 1024,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(s.logRequests)
	s.routes()
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)

	api := s.app.Group("/api")
	api.Post("/rank", s.rank)
	api.Post("/sort-resumes", s.sortResumes)
	api.Post("/semantic-search", s.semanticSearch)
	api.Post("/reweight", s.reweight)
	api.Post("/candidate-ask", s.candidateAsk)
	api.Delete("/candidates/:id/session", s.clearSession)
}

// Run listens until ctx is cancelled, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("address", s.cfg.Address))
		errCh <- s.app.Listen(s.cfg.Address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
		return s.app.Shutdown()
	}
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	err := c.Next()
	s.logger.Debug("http request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Error(err),
	)
	return err
}

type errorBody struct {
	Error     string      `json:"error"`
	Type      engine.Kind `json:"type"`
	Retryable bool        `json:"retryable"`
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		kind := engine.KindValidation
		if fiberErr.Code >= fiber.StatusInternalServerError {
			kind = engine.KindInternal
		}
		return c.Status(fiberErr.Code).JSON(errorBody{Error: fiberErr.Message, Type: kind})
	}

	var engineErr *engine.Error
	if !errors.As(err, &engineErr) {
		engineErr = &engine.Error{Kind: engine.KindInternal, Detail: "unexpected error", Err: err}
	}

	status := statusFor(engineErr.Kind)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("kind", string(engineErr.Kind)),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(errorBody{
		Error:     engineErr.Detail,
		Type:      engineErr.Kind,
		Retryable: engineErr.Retryable(),
	})
}

func statusFor(kind engine.Kind) int {
	switch kind {
	case engine.KindValidation:
		return fiber.StatusBadRequest
	case engine.KindUnavailable:
		return fiber.StatusServiceUnavailable
	case engine.KindTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

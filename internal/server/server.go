// Package server provides the HTTP edge: initialization, chat, status,
// history, and formula-helper routes over the retrieval pipeline.
package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/claracenn/finlite/internal/config"
	finerr "github.com/claracenn/finlite/internal/errors"
	"github.com/claracenn/finlite/internal/formula"
	"github.com/claracenn/finlite/internal/history"
	"github.com/claracenn/finlite/internal/pipeline"
)

// Server wires the HTTP routes to the pipeline and its satellites.
type Server struct {
	cfg      *config.Config
	pipe     *pipeline.Pipeline
	histLog  *history.Log
	formulas *formula.Registry
	engine   *gin.Engine
}

// New creates the HTTP server and registers all routes.
func New(cfg *config.Config, pipe *pipeline.Pipeline, histLog *history.Log, formulas *formula.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:      cfg,
		pipe:     pipe,
		histLog:  histLog,
		formulas: formulas,
		engine:   gin.New(),
	}

	s.engine.Use(gin.Recovery(), requestIDMiddleware())
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler for serving and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
}

// registerRoutes registers all endpoints.
func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/status", s.handleStatus)
	s.engine.POST("/initialize", s.handleInitialize)
	s.engine.POST("/chat", s.handleChat)

	s.engine.GET("/history", s.handleHistory)
	s.engine.GET("/history/grouped", s.handleHistoryGrouped)
	s.engine.GET("/history/unified", s.handleHistoryGrouped)
	s.engine.GET("/history/session/:session_id", s.handleHistorySession)
	s.engine.GET("/history/:id", s.handleHistoryItem)
	s.engine.POST("/history/open", s.handleHistoryOpen)

	s.engine.GET("/formula-templates", s.handleFormulaTemplates)
	s.engine.GET("/formula-template/:name", s.handleFormulaTemplate)
	s.engine.POST("/formula-helper", s.handleFormulaHelper)
}

// requestIDMiddleware attaches a request id for log correlation.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// writeError maps a pipeline error to an HTTP status and uniform body.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := finerr.GetCode(err)

	switch finerr.GetCategory(err) {
	case finerr.CategoryValidation, finerr.CategoryIO:
		status = http.StatusBadRequest
	case finerr.CategoryUpstream:
		status = http.StatusBadGateway
	}

	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// Package api exposes spec.md §6's HTTP surface: webhook intake,
// health, metrics, decision history, execution-proof verification, and
// the Merkle root/proof/verify trio.
//
// Grounded on the teacher's `pkg/api/server.go` echo-wiring shape
// (Server struct holding its collaborators, NewServer registering
// routes once at construction, Start/Shutdown) and
// `handler_health.go`'s minimal-response health check idiom.
package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/sealedreview/reviewpipeline/pkg/decision"
	"github.com/sealedreview/reviewpipeline/pkg/merkleindex"
	"github.com/sealedreview/reviewpipeline/pkg/metrics"
	"github.com/sealedreview/reviewpipeline/pkg/orchestrator"
)

// Server is the HTTP API server.
type Server struct {
	echo           *echo.Echo
	httpServer     *http.Server
	webhookSecret  string
	orchestrator   *orchestrator.Orchestrator
	history        decision.History
	merkleIndex    *merkleindex.Index
	metricsReg     *metrics.Registry
}

// NewServer builds a Server and registers every route.
func NewServer(webhookSecret string, o *orchestrator.Orchestrator, history decision.History, merkleIndex *merkleindex.Index, metricsReg *metrics.Registry) *Server {
	e := echo.New()
	s := &Server{
		echo:          e,
		webhookSecret: webhookSecret,
		orchestrator:  o,
		history:       history,
		merkleIndex:   merkleIndex,
		metricsReg:    metricsReg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.POST("/webhook", s.webhookHandler)
	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/metrics", s.metricsHandler)
	s.echo.GET("/decisions", s.listDecisionsHandler)
	s.echo.GET("/decisions/:id", s.getDecisionHandler)
	s.echo.GET("/verify/:review_id", s.verifyHandler)
	s.echo.GET("/merkle/root", s.merkleRootHandler)
	s.echo.GET("/merkle/proof/:review_id", s.merkleProofHandler)
	s.echo.POST("/merkle/verify", s.merkleVerifyHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"bingx-market-analyzer/internal/domain"
	"bingx-market-analyzer/internal/usecase"
)

type Server struct {
	router       *http.ServeMux
	server       *http.Server
	orchestrator *usecase.AnalysisOrchestrator
	signalRepo   domain.SignalRepository
	hub          *Hub
	logger       *zap.Logger
}

func NewServer(
	port int,
	orchestrator *usecase.AnalysisOrchestrator,
	signalRepo domain.SignalRepository,
	hub *Hub,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:       http.NewServeMux(),
		orchestrator: orchestrator,
		signalRepo:   signalRepo,
		hub:          hub,
		logger:       logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /health", s.handleHealth)

	// Status & signals
	s.router.HandleFunc("GET /api/status", s.handleStatus)
	s.router.HandleFunc("GET /api/signals", s.handleSignals)

	// On-demand analysis; symbol in wire form, e.g. BTC-USDT
	s.router.HandleFunc("POST /api/analyze/{symbol}", s.handleAnalyze)

	// Live signal feed
	s.router.HandleFunc("GET /ws", s.hub.HandleWS)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

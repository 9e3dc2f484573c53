package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/tgparkk/AutoSwingTrade/internal/domain"
	"github.com/tgparkk/AutoSwingTrade/internal/usecase"
)

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	bot       *usecase.TradingBot
	tradeRepo domain.TradeRepository
	alerts    *alertHub
	logger    *zap.Logger
}

func NewServer(
	port int,
	bot *usecase.TradingBot,
	tradeRepo domain.TradeRepository,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		bot:       bot,
		tradeRepo: tradeRepo,
		alerts:    newAlertHub(),
		logger:    logger,
	}
	go s.alerts.pump(bot.Alerts().C())
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Status
	s.router.HandleFunc("GET /api/status", s.handleStatus)

	// Positions
	s.router.HandleFunc("GET /api/positions", s.handlePositions)

	// Trades
	s.router.HandleFunc("GET /api/trades", s.handleTrades)

	// Order stats
	s.router.HandleFunc("GET /api/orders/stats", s.handleOrderStats)

	// Control commands
	s.router.HandleFunc("POST /api/command", s.handleCommand)

	// External signals
	s.router.HandleFunc("POST /api/signals", s.handleSubmitSignal)

	// Alert stream
	s.router.HandleFunc("GET /ws/alerts", s.handleAlertStream)
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

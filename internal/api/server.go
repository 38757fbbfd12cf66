package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DimaJoyti/auction-driver/internal/domain"
	"github.com/DimaJoyti/auction-driver/internal/solver"
	"github.com/DimaJoyti/auction-driver/internal/storage"
	"github.com/DimaJoyti/auction-driver/pkg/config"
	"github.com/DimaJoyti/auction-driver/pkg/kafka"
	"github.com/DimaJoyti/auction-driver/pkg/logger"
	"github.com/DimaJoyti/auction-driver/pkg/redis"
)

// DriverService is the driver surface the API exposes
type DriverService interface {
	OnAuctionStarted(ctx context.Context, auction domain.AuctionWithID) (*solver.SettlementSummary, error)
	OnAuctionWon(ctx context.Context, summary *solver.SettlementSummary) (common.Hash, error)
}

// CompetitionStore persists and serves solver competition records
type CompetitionStore interface {
	SaveCompetition(ctx context.Context, record *domain.SolverCompetition) error
	LoadCompetition(ctx context.Context, id storage.Identifier) (*domain.SolverCompetition, error)
}

// Server is the HTTP surface consumed by the autopilot: solve/execute plus
// competition-record reads and writes.
type Server struct {
	driver     DriverService
	store      CompetitionStore
	cache      redis.Client
	cacheTTL   time.Duration
	producer   kafka.Producer
	solverName string
	logger     *logger.Logger
	httpServer *http.Server
}

// NewServer creates the API server
func NewServer(
	cfg config.ServerConfig,
	drv DriverService,
	store CompetitionStore,
	cache redis.Client,
	cacheTTL time.Duration,
	producer kafka.Producer,
	solverName string,
	log *logger.Logger,
) *Server {
	s := &Server{
		driver:     drv,
		store:      store,
		cache:      cache,
		cacheTTL:   cacheTTL,
		producer:   producer,
		solverName: solverName,
		logger:     log.Named("api"),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestIDMiddleware(), loggingMiddleware(s.logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/solve", s.solve)
		v1.POST("/execute", s.execute)
		v1.GET("/solver_competition/:id", s.competitionByID)
		v1.GET("/solver_competition/by_tx_hash/:hash", s.competitionByTxHash)

		protected := v1.Group("")
		protected.Use(authMiddleware(cfg.CompetitionAuthToken))
		{
			protected.POST("/solver_competition", s.saveCompetition)
		}
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Run serves until the listener fails or Shutdown is called
func (s *Server) Run() error {
	s.logger.Info("Serving driver API")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DimaJoyti/auction-driver/pkg/config"
	"github.com/DimaJoyti/auction-driver/pkg/logger"
)

var dbQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "driver_database_query_duration_seconds",
	Help: "Duration of database queries by name",
}, []string{"query"})

// observe returns a stop function recording the query duration
func observe(query string) func() {
	timer := prometheus.NewTimer(dbQueryDuration.WithLabelValues(query))
	return func() { timer.ObserveDuration() }
}

// Postgres provides the driver's persistence: the single-slot current
// auction, solver competition records and solvable orders.
type Postgres struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewPostgres wraps an open connection pool
func NewPostgres(db *sqlx.DB, log *logger.Logger) *Postgres {
	return &Postgres{
		db:     db,
		logger: log.Named("storage"),
	}
}

// Connect opens a PostgreSQL connection pool from configuration
func Connect(cfg config.DatabaseConfig, log *logger.Logger) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return NewPostgres(db, log), nil
}

// Close closes the underlying pool
func (p *Postgres) Close() error {
	return p.db.Close()
}

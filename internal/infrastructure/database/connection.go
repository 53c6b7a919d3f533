package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/config"
)

// ConnectionPool wraps the pgx pool with a background health check.
type ConnectionPool struct {
	pool            *pgxpool.Pool
	logger          *zap.Logger
	healthCheckStop chan struct{}
	stopOnce        sync.Once

	mu      sync.RWMutex
	metrics ConnectionMetrics
}

// ConnectionMetrics records the outcome of the last background health check
type ConnectionMetrics struct {
	LastHealthCheck time.Time
	LastHealthError string
}

// NewConnectionPool connects to cfg.URL and verifies the connection
func NewConnectionPool(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*ConnectionPool, error) {
	pgCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	configurePgxPool(pgCfg, cfg)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &ConnectionPool{
		pool:            pool,
		logger:          logger.Named("database"),
		healthCheckStop: make(chan struct{}),
	}
	go p.healthCheckRoutine()

	p.logger.Info("database connection pool initialized",
		zap.Int32("max_connections", pgCfg.MaxConns),
		zap.Int32("min_connections", pgCfg.MinConns))
	return p, nil
}

func configurePgxPool(pc *pgxpool.Config, cfg config.DatabaseConfig) {
	pc.MaxConns = 25
	if cfg.MaxOpenConns > 0 {
		pc.MaxConns = int32(cfg.MaxOpenConns)
	}
	pc.MinConns = 2
	if cfg.MaxIdleConns > 0 {
		pc.MinConns = min(int32(cfg.MaxIdleConns), pc.MaxConns)
	}
	pc.MaxConnLifetime = 30 * time.Minute
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	pc.MaxConnIdleTime = 10 * time.Minute
	pc.HealthCheckPeriod = time.Minute
	pc.ConnConfig.ConnectTimeout = 5 * time.Second

	pc.ConnConfig.RuntimeParams["application_name"] = "vintage_vault"
	pc.ConnConfig.RuntimeParams["timezone"] = "UTC"
	pc.ConnConfig.RuntimeParams["lock_timeout"] = "10s"
	pc.ConnConfig.RuntimeParams["statement_timeout"] = "30s"
	pc.ConnConfig.RuntimeParams["idle_in_transaction_session_timeout"] = "60s"
}

// Pool returns the underlying pgx pool for repositories
func (p *ConnectionPool) Pool() *pgxpool.Pool {
	return p.pool
}

// Ping checks the database is reachable
func (p *ConnectionPool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Metrics returns a snapshot of the connection metrics
func (p *ConnectionPool) Metrics() ConnectionMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metrics
}

func (p *ConnectionPool) healthCheckRoutine() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.performHealthCheck()
		case <-p.healthCheckStop:
			return
		}
	}
}

func (p *ConnectionPool) performHealthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := p.pool.Ping(ctx)

	p.mu.Lock()
	p.metrics.LastHealthCheck = time.Now()
	p.metrics.LastHealthError = ""
	if err != nil {
		p.metrics.LastHealthError = err.Error()
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("database health check failed", zap.Error(err))
	}
}

// Close stops the health check and closes every connection
func (p *ConnectionPool) Close() {
	p.stopOnce.Do(func() {
		close(p.healthCheckStop)
		p.pool.Close()
		p.logger.Info("database connection pool closed")
	})
}

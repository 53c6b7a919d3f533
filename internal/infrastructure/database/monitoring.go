package database

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Monitor reports database health for the readiness endpoint
type Monitor struct {
	pool   *ConnectionPool
	logger *zap.Logger
	config *MonitorConfig
}

// MonitorConfig holds monitoring thresholds
type MonitorConfig struct {
	// ConnectionThreshold is the server connection saturation, in percent,
	// above which the database is reported degraded
	ConnectionThreshold float64
	// LongRunningAfter marks a non-idle backend as long running
	LongRunningAfter time.Duration
}

// ConnectionStats summarises server side connections
type ConnectionStats struct {
	TotalConnections  int `json:"total"`
	ActiveConnections int `json:"active"`
	IdleInTransaction int `json:"idle_in_transaction"`
	MaxConnections    int `json:"max"`
}

// HealthReport is the outcome of one health check
type HealthReport struct {
	Healthy            bool             `json:"healthy"`
	Ping               bool             `json:"ping"`
	Connections        *ConnectionStats `json:"connections,omitempty"`
	Saturation         float64          `json:"connection_saturation"`
	LongRunningQueries int              `json:"long_running_queries"`
	LastBackground     time.Time        `json:"last_background_check,omitempty"`
	LastError          string           `json:"last_error,omitempty"`
}

// NewMonitor creates a new database monitor
func NewMonitor(pool *ConnectionPool, logger *zap.Logger, config *MonitorConfig) *Monitor {
	if config == nil {
		config = &MonitorConfig{
			ConnectionThreshold: 80,
			LongRunningAfter:    5 * time.Minute,
		}
	}
	return &Monitor{pool: pool, logger: logger.Named("db_monitor"), config: config}
}

// GetConnectionStats reads pg_stat_activity for the current database
func (m *Monitor) GetConnectionStats(ctx context.Context) (*ConnectionStats, error) {
	stats := &ConnectionStats{}
	err := m.pool.Pool().QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE state = 'active'),
			count(*) FILTER (WHERE state = 'idle in transaction'),
			current_setting('max_connections')::int
		FROM pg_stat_activity
		WHERE datname = current_database() AND pid != pg_backend_pid()`).
		Scan(&stats.TotalConnections, &stats.ActiveConnections, &stats.IdleInTransaction, &stats.MaxConnections)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection stats: %w", err)
	}
	return stats, nil
}

// RunHealthCheck pings the database and inspects connection pressure.
// Only a failed ping is returned as an error; the other checks degrade the
// report.
func (m *Monitor) RunHealthCheck(ctx context.Context) (*HealthReport, error) {
	bg := m.pool.Metrics()
	report := &HealthReport{
		LastBackground: bg.LastHealthCheck,
		LastError:      bg.LastHealthError,
	}

	if err := m.pool.Ping(ctx); err != nil {
		report.LastError = err.Error()
		return report, fmt.Errorf("database ping failed: %w", err)
	}
	report.Ping = true
	report.Healthy = true

	if stats, err := m.GetConnectionStats(ctx); err != nil {
		m.logger.Warn("connection stats unavailable", zap.Error(err))
	} else if stats.MaxConnections > 0 {
		report.Connections = stats
		report.Saturation = float64(stats.TotalConnections) / float64(stats.MaxConnections) * 100
		if report.Saturation >= m.config.ConnectionThreshold {
			report.Healthy = false
		}
	}

	err := m.pool.Pool().QueryRow(ctx, `
		SELECT count(*) FROM pg_stat_activity
		WHERE state != 'idle' AND query_start < now() - $1::interval AND pid != pg_backend_pid()`,
		m.config.LongRunningAfter.String()).Scan(&report.LongRunningQueries)
	if err != nil {
		m.logger.Warn("long running query check failed", zap.Error(err))
	} else if report.LongRunningQueries > 0 {
		report.Healthy = false
	}

	return report, nil
}

// PoolCollector exports pgxpool statistics as Prometheus metrics
type PoolCollector struct {
	pool *ConnectionPool

	acquired  *prometheus.Desc
	idle      *prometheus.Desc
	total     *prometheus.Desc
	max       *prometheus.Desc
	acquires  *prometheus.Desc
	waitTotal *prometheus.Desc
}

func NewPoolCollector(pool *ConnectionPool) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("vintage_vault_db_pool_"+name, help, nil, nil)
	}
	return &PoolCollector{
		pool:      pool,
		acquired:  desc("acquired_connections", "Connections currently checked out of the pool"),
		idle:      desc("idle_connections", "Idle connections in the pool"),
		total:     desc("total_connections", "Connections currently open"),
		max:       desc("max_connections", "Configured pool size"),
		acquires:  desc("acquires_total", "Successful connection acquisitions"),
		waitTotal: desc("acquire_wait_seconds_total", "Time spent waiting for a connection"),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
	ch <- c.acquires
	ch <- c.waitTotal
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Pool().Stat()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.waitTotal, prometheus.CounterValue, s.AcquireDuration().Seconds())
}

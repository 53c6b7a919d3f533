package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davidleathers/vintage-vault-backend/internal/api/rest"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/config"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/database"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/events"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/telemetry"
	"github.com/davidleathers/vintage-vault-backend/internal/service/bidding"
	"github.com/davidleathers/vintage-vault-backend/internal/service/expertise"
	"github.com/davidleathers/vintage-vault-backend/internal/service/notification"
)

func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	tc.ServiceName = cfg.Telemetry.ServiceName
	tc.ServiceVersion = cfg.Version
	tc.Environment = cfg.Environment
	tc.InstanceID = config.Hostname()
	tc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	tc.SamplingRate = cfg.Telemetry.SamplingRate
	return tc
}

func biddingConfig(c config.AuctionConfig) (bidding.Config, error) {
	out := bidding.DefaultConfig()
	base, err := decimal.NewFromString(c.BaseFeePercent)
	if err != nil {
		return out, fmt.Errorf("auction.base_fee_percent: %w", err)
	}
	authenticated, err := decimal.NewFromString(c.AuthenticatedFeePercent)
	if err != nil {
		return out, fmt.Errorf("auction.authenticated_fee_percent: %w", err)
	}
	out.Fees = auction.FeeSchedule{BasePercent: base, AuthenticatedPercent: authenticated}
	if c.SweepConcurrency > 0 {
		out.SweepConcurrency = c.SweepConcurrency
	}
	if c.SweepBatchSize > 0 {
		out.SweepBatchSize = c.SweepBatchSize
	}
	return out, nil
}

func expertiseConfig(c config.ExpertiseConfig) (expertise.Config, error) {
	out := expertise.DefaultConfig()
	if c.AutoAssignPolicy != "" {
		policy, err := expertise.ParseWorkloadPolicy(c.AutoAssignPolicy)
		if err != nil {
			return out, fmt.Errorf("expertise.auto_assign_policy: %w", err)
		}
		out.AutoAssignPolicy = policy
	}
	if c.MaxWorkload > 0 {
		out.MaxWorkload = c.MaxWorkload
	}
	return out, nil
}

func notificationConfig(c config.NotificationConfig) (notification.Config, error) {
	out := notification.DefaultConfig()
	if c.Workers < 0 || c.QueueSize < 0 {
		return out, fmt.Errorf("notification workers and queue_size must not be negative")
	}
	if c.Workers > 0 {
		out.Workers = c.Workers
	}
	if c.QueueSize > 0 {
		out.QueueSize = c.QueueSize
	}
	if c.DeliveryTimeout > 0 {
		out.DeliveryTimeout = c.DeliveryTimeout
	}
	out.PushEnabled = c.PushEnabled
	out.EmailEnabled = c.EmailEnabled
	return out, nil
}

// healthCheckers reports the database as critical. Redis only degrades
// push fan-out and email, so it warns.
func healthCheckers(db *database.ConnectionPool, logger *zap.Logger, rdb *redis.Client, outbox *events.MailOutbox) []rest.HealthChecker {
	monitor := database.NewMonitor(db, logger, nil)
	checkers := []rest.HealthChecker{
		rest.CheckFunc{CheckName: "database", Critical: true, Probe: func(ctx context.Context) (map[string]any, error) {
			rep, err := monitor.RunHealthCheck(ctx)
			if err != nil {
				return nil, err
			}
			meta := map[string]any{
				"saturation":           rep.Saturation,
				"long_running_queries": rep.LongRunningQueries,
			}
			if !rep.Healthy {
				return meta, fmt.Errorf("database degraded: %s", rep.LastError)
			}
			return meta, nil
		}},
	}
	if rdb != nil {
		checkers = append(checkers, rest.CheckFunc{CheckName: "redis", Probe: func(ctx context.Context) (map[string]any, error) {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return nil, err
			}
			depth, err := outbox.Depth(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"mail_outbox_depth": depth}, nil
		}})
	}
	return checkers
}

package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PushGateway delivers a named event to one user's live connections
type PushGateway interface {
	Emit(ctx context.Context, event string, payload any, userID uuid.UUID) error
}

// pushEnvelope is what travels over the pub/sub channel
type pushEnvelope struct {
	UserID  uuid.UUID       `json:"user_id"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// RedisPublisher fans pushed events out to every API instance over Redis
// pub/sub. Each instance runs a Relay into its own Hub, so a user reaches
// their connections whichever instance holds them.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Emit(ctx context.Context, event string, payload any, userID uuid.UUID) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	data, err := json.Marshal(pushEnvelope{UserID: userID, Event: event, Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal push envelope: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Relay forwards events published on a Redis channel to a local gateway
type Relay struct {
	client  *redis.Client
	channel string
	target  PushGateway
	logger  *zap.Logger
}

func NewRelay(client *redis.Client, channel string, target PushGateway, logger *zap.Logger) *Relay {
	return &Relay{
		client:  client,
		channel: channel,
		target:  target,
		logger:  logger.Named("push_relay"),
	}
}

// Run subscribes and forwards messages until ctx is cancelled. ready, when
// non-nil, is closed once the subscription is confirmed.
func (r *Relay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	if ready != nil {
		close(ready)
	}
	r.logger.Info("push relay subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.forward(ctx, msg.Payload)
		}
	}
}

func (r *Relay) forward(ctx context.Context, payload string) {
	var env pushEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.Warn("discarding malformed push message", zap.Error(err))
		return
	}
	if err := r.target.Emit(ctx, env.Event, env.Payload, env.UserID); err != nil {
		r.logger.Warn("relayed push failed",
			zap.String("event", env.Event),
			zap.String("user_id", env.UserID.String()),
			zap.Error(err))
	}
}

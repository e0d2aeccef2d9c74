package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
	"github.com/rs/zerolog"
)

const (
	redisChannelPrefix  = "ghiblyze:gallery-update:"
	redisPublishTimeout = 2 * time.Second
)

type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	PSubscribe(ctx context.Context, channels ...string) *redis.PubSub
	Close() error
}

type redisEvent struct {
	OwnerID string `json:"owner_id"`
}

// RedisRelay publishes gallery changes on a per-owner Redis channel and feeds
// every change seen on Redis into the local Notifier, so event streams held
// by any instance refresh.
type RedisRelay struct {
	client redisClient
	local  *Notifier
	logger zerolog.Logger
}

// NewRedisRelay connects to redisURL and relays into local.
func NewRedisRelay(ctx context.Context, redisURL string, local *Notifier, logger zerolog.Logger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	// maint notifications are not supported before Redis 8
	opts.MaintNotificationsConfig = &maintnotifications.Config{
		Mode: maintnotifications.ModeDisabled,
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return newRedisRelay(client, local, logger), nil
}

func newRedisRelay(client redisClient, local *Notifier, logger zerolog.Logger) *RedisRelay {
	if local == nil {
		local = NewNotifier()
	}
	return &RedisRelay{
		client: client,
		local:  local,
		logger: logger.With().Str("component", "gallery_relay").Logger(),
	}
}

// Publish announces a change for ownerID to every instance. The returned
// Change carries no Seq; local subscribers get theirs when the message comes
// back through Run. If Redis rejects the publish the change is delivered
// locally only.
func (r *RedisRelay) Publish(ownerID string) Change {
	ownerID = strings.TrimSpace(ownerID)
	payload, err := json.Marshal(redisEvent{OwnerID: ownerID})
	if err != nil {
		return r.local.Publish(ownerID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, redisChannelPrefix+ownerID, payload).Err(); err != nil {
		r.logger.Warn().Err(err).Str("owner", ownerID).Msg("gallery: redis publish failed, delivering locally")
		return r.local.Publish(ownerID)
	}
	return Change{OwnerID: ownerID}
}

// Run relays changes from Redis into the local notifier until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, redisChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe: %w", err)
	}
	r.logger.Info().Msg("gallery: relaying changes from redis")

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.deliver(msg.Channel, msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(channel, payload string) {
	var ev redisEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || strings.TrimSpace(ev.OwnerID) == "" {
		ev.OwnerID = strings.TrimPrefix(channel, redisChannelPrefix)
	}
	ownerID := strings.TrimSpace(ev.OwnerID)
	if ownerID == "" {
		r.logger.Debug().Str("channel", channel).Msg("gallery: dropped relay message without owner")
		return
	}
	r.local.Publish(ownerID)
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}

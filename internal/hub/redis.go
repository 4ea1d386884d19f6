package hub

import (
	"context"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// channelPrefix namespaces the Redis pub/sub channels used for group fan-out.
const channelPrefix = "chat:broadcast:"

// RedisLayer is the externally shared broadcast backend. Broadcasts are
// published to a per-group Redis channel and delivered to local
// subscriptions when they arrive back on the subscription, so delivery order
// per group is Redis publish order. Membership itself stays local; Redis only
// carries payloads between processes.
type RedisLayer struct {
	client *redis.Client
	local  *Hub
	pubsub *redis.PubSub
	logger zerolog.Logger

	mu   sync.Mutex
	refs map[string]int // group -> local subscription count
}

// NewRedisLayer connects to Redis and starts the delivery loop feeding the
// local hub.
func NewRedisLayer(ctx context.Context, redisURL string, local *Hub, logger zerolog.Logger) (*RedisLayer, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	l := &RedisLayer{
		client: client,
		local:  local,
		pubsub: client.Subscribe(ctx),
		logger: logger,
		refs:   make(map[string]int),
	}

	go l.run()

	return l, nil
}

// Join registers sub locally and ensures this process is subscribed to the
// group's Redis channel.
func (l *RedisLayer) Join(group string, sub *Subscription) {
	l.local.Join(group, sub)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.refs[group]++
	if l.refs[group] == 1 {
		if err := l.pubsub.Subscribe(context.Background(), channelPrefix+group); err != nil {
			l.logger.Error().Err(err).Str("group", group).Msg("redis subscribe failed")
		}
	}
}

// Leave removes sub locally and drops the Redis channel subscription when the
// last local member leaves.
func (l *RedisLayer) Leave(group string, sub *Subscription) {
	l.local.Leave(group, sub)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refs[group] == 0 {
		return
	}
	l.refs[group]--
	if l.refs[group] == 0 {
		delete(l.refs, group)
		if err := l.pubsub.Unsubscribe(context.Background(), channelPrefix+group); err != nil {
			l.logger.Error().Err(err).Str("group", group).Msg("redis unsubscribe failed")
		}
	}
}

// Broadcast publishes payload to the group's Redis channel. Local delivery
// happens on the return path so every process, this one included, fans out
// the same sequence.
func (l *RedisLayer) Broadcast(ctx context.Context, group string, payload []byte) error {
	return l.client.Publish(ctx, channelPrefix+group, payload).Err()
}

// run feeds frames arriving from Redis into the local hub. It exits when the
// pubsub is closed.
func (l *RedisLayer) run() {
	for msg := range l.pubsub.Channel() {
		group := strings.TrimPrefix(msg.Channel, channelPrefix)
		_ = l.local.Broadcast(context.Background(), group, []byte(msg.Payload))
	}
}

// Ping checks the Redis connection.
func (l *RedisLayer) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close stops the delivery loop and closes the Redis connection.
func (l *RedisLayer) Close() error {
	if err := l.pubsub.Close(); err != nil {
		l.logger.Warn().Err(err).Msg("closing redis pubsub")
	}
	return l.client.Close()
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/volkanakbulut73/sohbetchat/internal/models"
)

// pubsubChannel carries creation events for all chat channels.
const pubsubChannel = "sohbetchat:messages"

// messageTTL bounds how long channel history is retained.
const messageTTL = 7 * 24 * time.Hour

// RedisStore stores messages in per-channel sorted sets scored by
// timestamp, and fans out creation events over Redis Pub/Sub.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed message store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, E(KindValidation, "redis.parse_url", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, E(KindNetwork, "redis.ping", err)
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return E(KindNetwork, "redis.ping", err)
	}
	return nil
}

// channelKey returns the key for a channel's message sorted set.
func channelKey(channel string) string {
	return fmt.Sprintf("channel:%s:messages", channel)
}

// Insert stores a message and publishes a creation event.
func (s *RedisStore) Insert(ctx context.Context, sender, text string, typ models.MessageType, channel string) (*models.Message, error) {
	if text == "" {
		return nil, E(KindValidation, "redis.insert", fmt.Errorf("empty message body"))
	}

	msg := &models.Message{
		ID:        ulid.Make().String(),
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		Channel:   channel,
		Type:      typ,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, E(KindValidation, "redis.insert", err)
	}

	key := channelKey(channel)

	err = s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(msg.Timestamp),
		Member: string(data),
	}).Err()
	if err != nil {
		return nil, E(KindNetwork, "redis.insert", err)
	}

	s.client.Expire(ctx, key, messageTTL)

	// Publish after the write so subscribers can always re-read the set.
	// Delivery is at-least-once together with polling; consumers dedup by id.
	if err := s.client.Publish(ctx, pubsubChannel, string(data)).Err(); err != nil {
		return nil, E(KindNetwork, "redis.publish", err)
	}

	return msg, nil
}

// ListChannel returns up to limit messages for a channel, oldest first.
func (s *RedisStore) ListChannel(ctx context.Context, channel string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	key := channelKey(channel)

	// Newest N by score, then reversed to ascending.
	results, err := s.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, E(KindNetwork, "redis.list_channel", err)
	}

	messages := make([]models.Message, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		var msg models.Message
		if err := json.Unmarshal([]byte(results[i]), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// redisSubscription wraps an active Pub/Sub subscription.
type redisSubscription struct {
	pubsub *redis.PubSub
	once   sync.Once
	done   chan struct{}
}

func (s *redisSubscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		_ = s.pubsub.Close()
	})
}

// Subscribe registers a callback for newly created messages.
func (s *RedisStore) Subscribe(ctx context.Context, onCreate func(models.Message)) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, pubsubChannel)

	// Force the subscription to be established before returning, so the
	// caller's backfill-then-subscribe ordering holds.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, E(KindNetwork, "redis.subscribe", err)
	}

	sub := &redisSubscription{pubsub: pubsub, done: make(chan struct{})}

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-sub.done:
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg models.Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					continue
				}
				onCreate(msg)
			}
		}
	}()

	return sub, nil
}

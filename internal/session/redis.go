package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix     = "authgate:session:"
	redisChannelPrefix = "authgate:session-events:"

	// persistGrace keeps the record around past access-token expiry so the
	// refresh token it carries can still be redeemed.
	persistGrace = 30 * 24 * time.Hour
)

// changeEvent is the envelope published on the origin's channel so sibling
// processes sharing the origin observe mutations. Src identifies the store
// instance that published it; a store skips its own events because it has
// already notified its listeners synchronously.
type changeEvent struct {
	Src     string   `json:"src"`
	Session *Session `json:"session"`
}

// redisStore persists the session in Redis and propagates changes between
// processes through pub/sub on a per-origin channel.
type redisStore struct {
	client    *redis.Client
	id        string
	key       string
	channel   string
	listeners *listenerSet

	mu     sync.Mutex
	closed bool
	sub    *redis.PubSub
}

// NewRedisStore creates a Redis-backed store for the given storage origin.
// The client is shared and stays open after Close.
func NewRedisStore(client *redis.Client, origin string) (Store, error) {
	if origin == "" {
		return nil, errors.New("storage origin is required")
	}

	s := &redisStore{
		client:    client,
		id:        uuid.New().String(),
		key:       redisKeyPrefix + origin,
		channel:   redisChannelPrefix + origin,
		listeners: newListenerSet(),
	}

	// Dedicated subscription connection for sibling change events
	s.sub = client.Subscribe(context.Background(), s.channel)
	if _, err := s.sub.Receive(context.Background()); err != nil {
		s.sub.Close()
		return nil, fmt.Errorf("failed to subscribe to session channel: %w", err)
	}
	go s.listen()

	return s, nil
}

func (s *redisStore) Get(ctx context.Context) (*Session, error) {
	data, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *redisStore) Set(ctx context.Context, sess *Session) error {
	if !sess.Valid() {
		return ErrIncompleteSession
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt) + persistGrace
	if err := s.client.Set(ctx, s.key, string(data), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	s.listeners.notify(sess)
	s.publish(ctx, sess)
	return nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	s.listeners.notify(nil)
	s.publish(ctx, nil)
	return nil
}

func (s *redisStore) Subscribe(fn Listener) func() {
	return s.listeners.add(fn)
}

func (s *redisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sub.Close()
}

// publish is best effort: a sibling that misses an event converges on its
// next Get, and local listeners were already notified.
func (s *redisStore) publish(ctx context.Context, sess *Session) {
	ev := changeEvent{Src: s.id, Session: sess}
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("Failed to marshal session change event", "error", err)
		return
	}
	if err := s.client.Publish(ctx, s.channel, string(payload)).Err(); err != nil {
		slog.Warn("Failed to publish session change event", "error", err)
	}
}

// listen forwards sibling change events to local listeners. It exits when
// Close shuts the subscription down.
func (s *redisStore) listen() {
	for msg := range s.sub.Channel() {
		var ev changeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			slog.Warn("Dropping malformed session change event", "error", err)
			continue
		}
		if ev.Src == s.id {
			continue
		}
		s.listeners.notify(ev.Session)
	}
}

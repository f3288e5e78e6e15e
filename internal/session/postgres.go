package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgNotifyChannel carries change events for every origin; events embed the
// origin so each store can filter to its own.
const pgNotifyChannel = "authgate_session_events"

const pgSchema = `
CREATE TABLE IF NOT EXISTS auth_sessions (
	origin     text PRIMARY KEY,
	record     jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

// pgChangeEvent is the LISTEN/NOTIFY envelope. Src identifies the publishing
// store instance so it can skip its own events.
type pgChangeEvent struct {
	Src     string   `json:"src"`
	Origin  string   `json:"origin"`
	Session *Session `json:"session"`
}

// postgresStore persists the session in Postgres, one row per origin, and
// uses the database's own LISTEN/NOTIFY stream to propagate changes between
// processes sharing the origin.
type postgresStore struct {
	pool      *pgxpool.Pool
	id        string
	origin    string
	listeners *listenerSet

	mu       sync.Mutex
	closed   bool
	cancel   context.CancelFunc
	listenWG sync.WaitGroup
}

// NewPostgresStore creates a Postgres-backed store for the given storage
// origin. The pool is shared and stays open after Close.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, origin string) (Store, error) {
	if origin == "" {
		return nil, errors.New("storage origin is required")
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure session schema: %w", err)
	}

	s := &postgresStore{
		pool:      pool,
		id:        uuid.New().String(),
		origin:    origin,
		listeners: newListenerSet(),
	}

	// Dedicated connection held for the lifetime of the store to receive
	// change notifications.
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgNotifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen on %s: %w", pgNotifyChannel, err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.listenWG.Add(1)
	go s.listen(listenCtx, conn)

	return s, nil
}

func (s *postgresStore) Get(ctx context.Context) (*Session, error) {
	var record []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM auth_sessions WHERE origin = $1`, s.origin,
	).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(record, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *postgresStore) Set(ctx context.Context, sess *Session) error {
	if !sess.Valid() {
		return ErrIncompleteSession
	}

	record, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO auth_sessions (origin, record, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (origin) DO UPDATE SET record = EXCLUDED.record, updated_at = now()
	`, s.origin, record)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	s.listeners.notify(sess)
	s.publish(ctx, sess)
	return nil
}

func (s *postgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM auth_sessions WHERE origin = $1`, s.origin,
	); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	s.listeners.notify(nil)
	s.publish(ctx, nil)
	return nil
}

func (s *postgresStore) Subscribe(fn Listener) func() {
	return s.listeners.add(fn)
}

func (s *postgresStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.listenWG.Wait()
	return nil
}

// publish is best effort, mirroring the Redis backend: local listeners were
// already notified and siblings converge on their next Get.
func (s *postgresStore) publish(ctx context.Context, sess *Session) {
	payload, err := json.Marshal(pgChangeEvent{Src: s.id, Origin: s.origin, Session: sess})
	if err != nil {
		slog.Warn("Failed to marshal session change event", "error", err)
		return
	}
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, pgNotifyChannel, string(payload)); err != nil {
		slog.Warn("Failed to publish session change event", "error", err)
	}
}

// listen forwards sibling change events for this origin to local listeners.
func (s *postgresStore) listen(ctx context.Context, conn *pgxpool.Conn) {
	defer s.listenWG.Done()
	defer conn.Release()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Session notification stream ended", "error", err)
			return
		}

		var ev pgChangeEvent
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			slog.Warn("Dropping malformed session change event", "error", err)
			continue
		}
		if ev.Origin != s.origin || ev.Src == s.id {
			continue
		}
		s.listeners.notify(ev.Session)
	}
}

// Package redis persists broker session tokens so a restarted desk can
// resume the day's live sessions instead of forcing a fresh login.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Tokens expire at the broker end early next morning; the store TTL only
// has to outlive the trading day.
const sessionTTL = 20 * time.Hour

// SessionConfig configures the session store.
type SessionConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// SessionStore keeps one access token per broker under desk:session:<broker>.
type SessionStore struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (s *SessionStore) Client() *goredis.Client { return s.client }

// New creates a session store and pings the server.
func New(cfg SessionConfig) (*SessionStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &SessionStore{client: client}, nil
}

func sessionKey(broker string) string { return "desk:session:" + broker }

// SaveToken stores the broker's access token for the rest of the day.
func (s *SessionStore) SaveToken(ctx context.Context, broker, accessToken string) error {
	if err := s.client.Set(ctx, sessionKey(broker), accessToken, sessionTTL).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", sessionKey(broker), err)
	}
	log.Printf("[redis] saved %s session token", broker)
	return nil
}

// LoadToken returns the stored token, or "" when none is present.
func (s *SessionStore) LoadToken(ctx context.Context, broker string) (string, error) {
	token, err := s.client.Get(ctx, sessionKey(broker)).Result()
	if err != nil {
		if err == goredis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("redis GET %s: %w", sessionKey(broker), err)
	}
	return token, nil
}

// DropToken removes a broker's stored session, e.g. after a 403.
func (s *SessionStore) DropToken(ctx context.Context, broker string) error {
	if err := s.client.Del(ctx, sessionKey(broker)).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", sessionKey(broker), err)
	}
	return nil
}

// Close closes the Redis client.
func (s *SessionStore) Close() error {
	return s.client.Close()
}

package redis_session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/converse/internal/session"
)

// Store persists sessions as JSON blobs in redis with a TTL so abandoned
// conversations expire on their own.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(addr, password string, db int, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{client: client, ttl: ttl}
}

func key(conversationID string) string {
	return fmt.Sprintf("converse:session:%s", conversationID)
}

func (s *Store) Get(ctx context.Context, conversationID string) (*session.SearchSession, error) {
	val, err := s.client.Get(ctx, key(conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return &session.SearchSession{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}
	var sess session.SearchSession
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		// A corrupt blob should not wedge the conversation.
		return &session.SearchSession{}, nil
	}
	return &sess, nil
}

func (s *Store) Save(ctx context.Context, conversationID string, sess *session.SearchSession) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}
	if err := s.client.Set(ctx, key(conversationID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

func (s *Store) Reset(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, key(conversationID)).Err(); err != nil {
		return fmt.Errorf("session reset: %w", err)
	}
	return nil
}

// Ping verifies connectivity at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

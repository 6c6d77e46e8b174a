package redisstore

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Store wraps the redis client and owns the pub/sub channel naming.
type Store struct {
	rdb    *redis.Client
	prefix string
}

func New(addr, password string, db int, prefix string) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, prefix)
}

func NewFromClient(rdb *redis.Client, prefix string) *Store {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "estate-chat"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// ConversationChannel is the pub/sub channel carrying events for one conversation.
func (s *Store) ConversationChannel(token string) string {
	return s.prefix + ":conv:" + token
}

func (s *Store) ConversationPattern() string {
	return s.prefix + ":conv:*"
}

// TokenFromChannel is the inverse of ConversationChannel.
func (s *Store) TokenFromChannel(channel string) (string, bool) {
	token, ok := strings.CutPrefix(channel, s.prefix+":conv:")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// Publish returns the number of instances that received the payload.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	return s.rdb.Publish(ctx, channel, payload).Result()
}

func (s *Store) PSubscribe(ctx context.Context, pattern string) *redis.PubSub {
	return s.rdb.PSubscribe(ctx, pattern)
}

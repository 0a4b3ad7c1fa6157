package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cart:"

// RedisStore はRedisにカートを保持するStore実装。
// 複数のサーバープロセスでカートを共有する場合に使用する。
// キーにはセッションの最大有効期間と同じTTLを設定し、セッションより長く残らないようにする。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Key は指定セッションのカートを保持するRedisキーを返す。
func (s *RedisStore) Key(sessionID string) string {
	return redisKeyPrefix + sessionID
}

// Get はRedisからカートを読み出す。キーが存在しない場合は空のカートを返す。
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Cart, error) {
	val, err := s.client.Get(ctx, s.Key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	c := &Cart{}
	if err := json.Unmarshal(val, c); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return c, nil
}

// Save はカートをJSONとして保存し、TTLを更新する。
func (s *RedisStore) Save(ctx context.Context, sessionID string, c *Cart) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.client.Set(ctx, s.Key(sessionID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cart: %w", err)
	}
	return nil
}

// Delete はカートのキーを削除する。
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Store = (*RedisStore)(nil)

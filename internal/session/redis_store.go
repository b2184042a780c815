package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"brokerage-mcp/internal/interfaces"
	"brokerage-mcp/internal/types"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "brokerage-mcp:session"

// RedisStore keeps the session in Redis under a single key that expires
// together with the access token.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	now    func() time.Time
}

var _ interfaces.SessionStore = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, now: time.Now}
}

func (r *RedisStore) Load(ctx context.Context) (types.Session, bool, error) {
	b, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Session{}, false, nil
	}
	if err != nil {
		return types.Session{}, false, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	var sess types.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return types.Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return sess, true, nil
}

func (r *RedisStore) Save(ctx context.Context, sess types.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !sess.ExpiresAt.IsZero() {
		ttl = sess.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return ErrSessionExpired
		}
	}
	if err := r.client.Set(ctx, r.key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key, err)
	}
	return nil
}

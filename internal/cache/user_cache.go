package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"userapi/internal/model"
)

// DefaultUserTTL is how long a cached user view lives.
const DefaultUserTTL = time.Hour

const (
	userKeyPrefix  = "user:"
	emailKeyPrefix = "user_email:"
)

// UserCache stores denormalized user views keyed by id, with an email index
// pointing back at the id. Every method is best-effort.
type UserCache struct {
	cache  *Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewUserCache creates a user view cache.
func NewUserCache(cache *Client, ttl time.Duration, logger *zap.Logger) *UserCache {
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserCache{cache: cache, ttl: ttl, logger: logger}
}

// UserKey returns the cache key of the view for id.
func UserKey(id uuid.UUID) string {
	return userKeyPrefix + id.String()
}

// EmailKey returns the email-derived index key.
func EmailKey(email string) string {
	return emailKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}

// Put writes the view and its email index, replacing whatever is cached.
// Use it after a committed write.
func (c *UserCache) Put(ctx context.Context, view model.UserView) {
	payload, ok := c.encode(view)
	if !ok {
		return
	}
	c.cache.Set(ctx, UserKey(view.ID), payload, c.ttl)
	c.cache.Set(ctx, EmailKey(view.Email), []byte(view.ID.String()), c.ttl)
}

// PutIfAbsent fills the cache from a read. It never replaces an existing
// entry, so a view loaded before a concurrent update cannot overwrite the
// view that update wrote.
func (c *UserCache) PutIfAbsent(ctx context.Context, view model.UserView) bool {
	payload, ok := c.encode(view)
	if !ok {
		return false
	}
	if !c.cache.SetNX(ctx, UserKey(view.ID), payload, c.ttl) {
		return false
	}
	c.cache.SetNX(ctx, EmailKey(view.Email), []byte(view.ID.String()), c.ttl)
	return true
}

func (c *UserCache) encode(view model.UserView) ([]byte, bool) {
	payload, err := json.Marshal(view)
	if err != nil {
		c.logger.Warn("encode cached user", zap.String("user_id", view.ID.String()), zap.Error(err))
		return nil, false
	}
	return payload, true
}

// Get returns the cached view for id. ok is false on a miss.
func (c *UserCache) Get(ctx context.Context, id uuid.UUID) (view model.UserView, ok bool) {
	data := c.cache.Get(ctx, UserKey(id))
	if data == nil {
		return model.UserView{}, false
	}
	if err := json.Unmarshal(data, &view); err != nil {
		c.logger.Warn("decode cached user", zap.String("user_id", id.String()), zap.Error(err))
		return model.UserView{}, false
	}
	return view, true
}

// Invalidate drops the view for id together with the given email index keys.
func (c *UserCache) Invalidate(ctx context.Context, id uuid.UUID, emails ...string) {
	keys := []string{UserKey(id)}
	for _, email := range emails {
		if email != "" {
			keys = append(keys, EmailKey(email))
		}
	}
	c.cache.Delete(ctx, keys...)
}

// InvalidateByEmail resolves the email index and drops both entries.
func (c *UserCache) InvalidateByEmail(ctx context.Context, email string) {
	key := EmailKey(email)
	data := c.cache.Get(ctx, key)
	keys := []string{key}
	if data != nil {
		if id, err := uuid.ParseBytes(data); err == nil {
			keys = append(keys, UserKey(id))
		} else {
			c.logger.Warn("corrupt email index", zap.String("key", key), zap.Error(fmt.Errorf("parse id: %w", err)))
		}
	}
	c.cache.Delete(ctx, keys...)
}

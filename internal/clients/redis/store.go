package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/mentorbridge/internal/data/stores"
	"github.com/yungbote/mentorbridge/internal/domain/session"
	"github.com/yungbote/mentorbridge/internal/platform/envutil"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
	"github.com/yungbote/mentorbridge/internal/wizard"
)

type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

func ConfigFromEnv() Config {
	return Config{
		Addr:      envutil.String("REDIS_ADDR", ""),
		Password:  envutil.String("REDIS_PASSWORD", ""),
		DB:        envutil.Int("REDIS_DB", 0),
		KeyPrefix: envutil.String("REDIS_KEY_PREFIX", "mb"),
	}
}

// Client owns the connection shared by the session store, wizard store and locker.
type Client struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "mb"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Client{
		log:    log.With("client", "RedisClient"),
		rdb:    rdb,
		prefix: prefix,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) key(kind, id string) string {
	return c.prefix + ":" + kind + ":" + id
}

func (c *Client) getJSON(ctx context.Context, key string, out any) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return stores.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

type sessionStore struct {
	c   *Client
	ttl time.Duration
}

func (c *Client) SessionStore(ttl time.Duration) stores.SessionStore {
	return &sessionStore{c: c, ttl: ttl}
}

func (s *sessionStore) Get(ctx context.Context, id string) (*session.State, error) {
	var st session.State
	if err := s.c.getJSON(ctx, s.c.key("session", id), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *sessionStore) Put(ctx context.Context, st *session.State) error {
	if st == nil || st.ID == "" {
		return fmt.Errorf("session id required")
	}
	return s.c.setJSON(ctx, s.c.key("session", st.ID), st, s.ttl)
}

func (s *sessionStore) Delete(ctx context.Context, id string) error {
	return s.c.rdb.Del(ctx, s.c.key("session", id)).Err()
}

type wizardStore struct {
	c   *Client
	ttl time.Duration
}

func (c *Client) WizardStore(ttl time.Duration) stores.WizardStore {
	return &wizardStore{c: c, ttl: ttl}
}

func (s *wizardStore) Get(ctx context.Context, id string) (*wizard.Wizard, error) {
	var w wizard.Wizard
	if err := s.c.getJSON(ctx, s.c.key("wizard", id), &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *wizardStore) Put(ctx context.Context, w *wizard.Wizard) error {
	if w == nil || w.ID == "" {
		return fmt.Errorf("wizard id required")
	}
	return s.c.setJSON(ctx, s.c.key("wizard", w.ID), w, s.ttl)
}

func (s *wizardStore) Delete(ctx context.Context, id string) error {
	return s.c.rdb.Del(ctx, s.c.key("wizard", id)).Err()
}

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type locker struct{ c *Client }

func (c *Client) Locker() stores.Locker {
	return &locker{c: c}
}

func (l *locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	k := l.c.key("lock", key)
	token := uuid.NewString()
	ok, err := l.c.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock %s: %w", key, err)
	}
	if !ok {
		return nil, stores.ErrBusy
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.c.rdb, []string{k}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
			l.c.log.Warn("Redis lock release failed", "key", key, "error", err)
		}
	}, nil
}

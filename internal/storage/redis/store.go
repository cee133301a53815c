package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/core/service"
)

// DefaultKeyPrefix namespaces every key written by the store.
const DefaultKeyPrefix = "filelink:"

const sweepBatchSize = 500

// Config configures the Redis backend.
type Config struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// DefaultConfig returns the defaults for addr.
func DefaultConfig(addr string) Config {
	return Config{Addr: addr, KeyPrefix: DefaultKeyPrefix}
}

var insertScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "chat", ARGV[1], "msg", ARGV[2], "created", ARGV[3], "max", ARGV[4], "uses", ARGV[5])
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[6])
return 1
`)

var consumeScript = goredis.NewScript(`
local v = redis.call("HMGET", KEYS[1], "chat", "msg", "created", "max", "uses")
if not v[1] then
  return false
end
if tonumber(v[3]) < tonumber(ARGV[1]) then
  return false
end
local max = tonumber(v[4])
if max > 0 and tonumber(v[5]) >= max then
  return false
end
redis.call("HINCRBY", KEYS[1], "uses", 1)
return {v[1], v[2]}
`)

var sweepScript = goredis.NewScript(`
local tokens = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1], "LIMIT", 0, tonumber(ARGV[3]))
for _, tok in ipairs(tokens) do
  redis.call("DEL", ARGV[2] .. tok)
  redis.call("ZREM", KEYS[1], tok)
end
return #tokens
`)

// Store is the Redis link backend.
type Store struct {
	client    goredis.UniversalClient
	keyPrefix string
	ownClient bool
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis: addr is required")
	}
	if log == nil {
		log = slog.Default()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}

	s := New(client, cfg.KeyPrefix)
	s.ownClient = true

	log.Info("redis store opened", "addr", cfg.Addr, "db", cfg.DB, "key_prefix", s.keyPrefix)
	return s, nil
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client goredis.UniversalClient, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

func (s *Store) linkKey(token string) string {
	return s.keyPrefix + "link:" + token
}

func (s *Store) createdKey() string {
	return s.keyPrefix + "created"
}

// Insert stores a new entry.
func (s *Store) Insert(ctx context.Context, entry *domain.LinkEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	created, err := insertScript.Run(ctx, s.client,
		[]string{s.linkKey(entry.Token), s.createdKey()},
		entry.Reference.ChatID,
		entry.Reference.MessageID,
		entry.CreatedAt.UnixMicro(),
		entry.MaxUses,
		entry.Uses,
		entry.Token,
	).Int()
	if err != nil {
		return fmt.Errorf("redis: insert: %w", err)
	}
	if created == 0 {
		return domain.ErrTokenConflict
	}
	return nil
}

// Consume resolves token and counts one use.
func (s *Store) Consume(ctx context.Context, token string, cutoff time.Time) (domain.Reference, error) {
	vals, err := consumeScript.Run(ctx, s.client,
		[]string{s.linkKey(token)},
		cutoff.UnixMicro(),
	).StringSlice()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.Reference{}, domain.ErrLinkNotFound
		}
		return domain.Reference{}, fmt.Errorf("redis: consume: %w", err)
	}
	if len(vals) != 2 {
		return domain.Reference{}, fmt.Errorf("redis: consume: unexpected reply %q", vals)
	}

	var ref domain.Reference
	if ref.ChatID, err = strconv.ParseInt(vals[0], 10, 64); err != nil {
		return domain.Reference{}, fmt.Errorf("redis: consume: chat id: %w", err)
	}
	if ref.MessageID, err = strconv.ParseInt(vals[1], 10, 64); err != nil {
		return domain.Reference{}, fmt.Errorf("redis: consume: message id: %w", err)
	}
	return ref, nil
}

// DeleteExpired removes entries created before cutoff in batches.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0
	for {
		n, err := sweepScript.Run(ctx, s.client,
			[]string{s.createdKey()},
			cutoff.UnixMicro(),
			s.keyPrefix+"link:",
			sweepBatchSize,
		).Int()
		if err != nil {
			return total, fmt.Errorf("redis: delete expired: %w", err)
		}
		total += n
		if n < sweepBatchSize {
			return total, nil
		}
	}
}

// Get returns the stored entry regardless of its state.
func (s *Store) Get(ctx context.Context, token string) (*domain.LinkEntry, error) {
	fields, err := s.client.HGetAll(ctx, s.linkKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrLinkNotFound
	}

	e := &domain.LinkEntry{Token: token}
	ints := map[string]*int64{
		"chat": &e.Reference.ChatID,
		"msg":  &e.Reference.MessageID,
	}
	for name, dst := range ints {
		if *dst, err = strconv.ParseInt(fields[name], 10, 64); err != nil {
			return nil, fmt.Errorf("redis: get: field %s: %w", name, err)
		}
	}
	createdUs, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis: get: field created: %w", err)
	}
	e.CreatedAt = time.UnixMicro(createdUs).UTC()
	if e.MaxUses, err = strconv.Atoi(fields["max"]); err != nil {
		return nil, fmt.Errorf("redis: get: field max: %w", err)
	}
	if e.Uses, err = strconv.Atoi(fields["uses"]); err != nil {
		return nil, fmt.Errorf("redis: get: field uses: %w", err)
	}
	return e, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client if the store opened it.
func (s *Store) Close() error {
	if !s.ownClient {
		return nil
	}
	return s.client.Close()
}

var _ service.LinkRepository = (*Store)(nil)

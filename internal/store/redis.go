package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/grantd/grantd/internal/core"
)

// DefaultRedisPrefix namespaces all keys written by the store.
const DefaultRedisPrefix = "grantd"

var _ core.AuthorizationStore = (*RedisStore)(nil)

// RedisOptions configure a Redis-backed authorization store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	CodeTTL  time.Duration
}

// RedisStore keeps authorization grants in Redis. Codes expire through key
// TTLs; consumption is made single-winner by a SET NX marker key, so two
// exchanges racing for one code cannot both mint.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	codeTTL time.Duration
}

func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisStoreWithClient(client, opts.Prefix, opts.CodeTTL)
}

// NewRedisStoreWithClient wires an existing client. Tests use it to point
// the store at a miniredis instance.
func NewRedisStoreWithClient(client *redis.Client, prefix string, codeTTL time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		codeTTL: codeTTL,
	}
}

// Ping verifies connectivity, for startup checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) grantKey(code string) string {
	return fmt.Sprintf("%s:grant:%s", s.prefix, code)
}

func (s *RedisStore) consumedKey(code string) string {
	return fmt.Sprintf("%s:consumed:%s", s.prefix, code)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":grants"
}

func (s *RedisStore) FindByCode(ctx context.Context, code string, kind core.TokenKind) (*core.AuthorizationRecord, error) {
	if kind != core.TokenKindAuthorizationCode {
		return nil, core.ErrGrantNotFound
	}

	data, err := s.client.Get(ctx, s.grantKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrGrantNotFound
		}
		return nil, fmt.Errorf("reading grant from redis: %w", err)
	}

	var record core.AuthorizationRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding stored grant: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) Save(ctx context.Context, record *core.AuthorizationRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding grant: %w", err)
	}

	if !record.Consumed() {
		ok, err := s.client.SetNX(ctx, s.grantKey(record.Code), data, s.codeTTL).Result()
		if err != nil {
			return fmt.Errorf("storing grant in redis: %w", err)
		}
		if !ok {
			return core.ErrCodeExists
		}
		if err := s.client.SAdd(ctx, s.indexKey(), record.Code).Err(); err != nil {
			return fmt.Errorf("indexing grant in redis: %w", err)
		}
		return nil
	}

	// consume-if-unconsumed: the marker SET NX is the atomic decision point
	ttl, err := s.client.PTTL(ctx, s.grantKey(record.Code)).Result()
	if err != nil {
		return fmt.Errorf("checking grant in redis: %w", err)
	}
	if ttl < 0 {
		// key gone or persisted oddly; either way not redeemable
		return core.ErrGrantNotFound
	}

	ok, err := s.client.SetNX(ctx, s.consumedKey(record.Code), "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("marking grant consumed in redis: %w", err)
	}
	if !ok {
		return core.ErrCodeConsumed
	}

	if err := s.client.Set(ctx, s.grantKey(record.Code), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("storing consumed grant in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, code string) error {
	deleted, err := s.client.Del(ctx, s.grantKey(code)).Result()
	if err != nil {
		return fmt.Errorf("deleting grant from redis: %w", err)
	}
	// best-effort cleanup of the marker and index
	_ = s.client.Del(ctx, s.consumedKey(code)).Err()
	_ = s.client.SRem(ctx, s.indexKey(), code).Err()

	if deleted == 0 {
		return core.ErrGrantNotFound
	}
	return nil
}

func (s *RedisStore) ListActive(ctx context.Context) ([]*core.AuthorizationRecord, error) {
	codes, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("listing grants from redis: %w", err)
	}

	records := make([]*core.AuthorizationRecord, 0, len(codes))
	for _, code := range codes {
		record, err := s.FindByCode(ctx, code, core.TokenKindAuthorizationCode)
		if err != nil {
			if errors.Is(err, core.ErrGrantNotFound) {
				// expired entry still in the index
				_ = s.client.SRem(ctx, s.indexKey(), code).Err()
				continue
			}
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// DeleteExpired reaps index entries whose grant keys have already been
// evicted by their TTL. Redis itself removes the expired values.
func (s *RedisStore) DeleteExpired(ctx context.Context) (int, error) {
	codes, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("listing grants from redis: %w", err)
	}

	deleted := 0
	for _, code := range codes {
		exists, err := s.client.Exists(ctx, s.grantKey(code)).Result()
		if err != nil {
			return deleted, fmt.Errorf("checking grant in redis: %w", err)
		}
		if exists == 0 {
			if err := s.client.SRem(ctx, s.indexKey(), code).Err(); err != nil {
				return deleted, fmt.Errorf("trimming grant index in redis: %w", err)
			}
			deleted++
		}
	}
	return deleted, nil
}

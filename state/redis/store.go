// Package redis provides a Redis-backed state.Store via Grove KV.
//
// Entries are stored as hashes holding the value and a monotonically
// increasing version counter; compare-and-swap runs server-side in a Lua
// script so concurrent writers from different service instances serialize on
// the backend, not in process memory.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/grove/kv"
	"github.com/xraph/grove/kv/drivers/redisdriver"

	"github.com/xraph/cadence/state"
)

// compile-time interface check.
var _ state.Store = (*Store)(nil)

// sequenceKey issues versions store-wide, so an etag captured before a
// delete/recreate cycle can never match the recreated entry.
const sequenceKey = "cadence:etag-seq"

// casScript performs a compare-and-swap write on an entry hash.
//
// KEYS[1] entry key
// KEYS[2] version sequence key
// ARGV[1] expected version ("" unconditional, "-" create-only, else number)
// ARGV[2] value bytes
// ARGV[3] TTL in milliseconds (0 = no expiry)
//
// Returns the new version on success, -1 on conflict.
var casScript = goredis.NewScript(`
local ver = redis.call('HGET', KEYS[1], 'ver')
local expected = ARGV[1]
if expected == '-' then
	if ver then return -1 end
elseif expected ~= '' then
	if not ver or ver ~= expected then return -1 end
end
local new = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'v', ARGV[2], 'ver', tostring(new))
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
else
	redis.call('PERSIST', KEYS[1])
end
return new
`)

// Store implements state.Store using Redis via Grove KV.
type Store struct {
	kv  *kv.Store
	rdb goredis.UniversalClient
}

// New creates a new Redis state store backed by Grove KV.
func New(store *kv.Store) *Store {
	return &Store{
		kv:  store,
		rdb: redisdriver.UnwrapClient(store),
	}
}

// Get returns the entry at key, or state.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (*state.Entry, error) {
	fields, err := s.rdb.HMGet(ctx, key, "v", "ver").Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, state.ErrNotFound
		}
		return nil, fmt.Errorf("cadence/redis: get %s: %w", key, err)
	}
	if fields[0] == nil || fields[1] == nil {
		return nil, state.ErrNotFound
	}

	value, ok := fields[0].(string)
	if !ok {
		return nil, fmt.Errorf("cadence/redis: get %s: unexpected value type %T", key, fields[0])
	}
	version, ok := fields[1].(string)
	if !ok {
		return nil, fmt.Errorf("cadence/redis: get %s: unexpected version type %T", key, fields[1])
	}

	return &state.Entry{
		Key:   key,
		Value: []byte(value),
		ETag:  "v" + version,
	}, nil
}

// Set writes value at key, enforcing CAS semantics server-side.
func (s *Store) Set(ctx context.Context, key string, value []byte, opts state.SetOptions) (string, error) {
	expected := opts.ExpectedETag
	if expected != "" && expected != state.ETagAbsent {
		expected = strings.TrimPrefix(expected, "v")
		if _, err := strconv.ParseUint(expected, 10, 64); err != nil {
			// A foreign etag can never match a stored version.
			return "", state.ErrConflict
		}
	}

	res, err := casScript.Run(ctx, s.rdb,
		[]string{key, sequenceKey},
		expected, string(value), opts.TTL.Milliseconds(),
	).Int64()
	if err != nil {
		return "", fmt.Errorf("cadence/redis: set %s: %w", key, err)
	}
	if res < 0 {
		return "", state.ErrConflict
	}

	return "v" + strconv.FormatInt(res, 10), nil
}

// Delete removes the entry at key. Idempotent.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil && !isRedisNil(err) {
		return fmt.Errorf("cadence/redis: delete %s: %w", key, err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// Close closes the KV store.
func (s *Store) Close() error {
	return s.kv.Close()
}

// isRedisNil checks if an error is a Redis nil (key not found).
func isRedisNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}

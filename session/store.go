package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport failure reported by Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned by Get when no record exists.
var ErrSessionNotFound = errors.New("session not found")

// DefaultNamespace is the first segment of every session key.
const DefaultNamespace = "session"

const minTTL = time.Second

// rotateScript rewrites every key in KEYS only while the jti stored at
// KEYS[1] equals ARGV[1]. Each key k takes jti, exp and ttl seconds from
// ARGV[3k-1..3k+1]; the remaining ARGV are meta pairs applied to all keys.
const rotateScript = `
local current = redis.call('HGET', KEYS[1], 'jti')
if current ~= ARGV[1] then
  return 0
end
local metaStart = 2 + 3 * #KEYS
for k = 1, #KEYS do
  local base = 2 + 3 * (k - 1)
  redis.call('DEL', KEYS[k])
  redis.call('HSET', KEYS[k], 'jti', ARGV[base], 'exp', ARGV[base + 1])
  for i = metaStart, #ARGV, 2 do
    redis.call('HSET', KEYS[k], ARGV[i], ARGV[i + 1])
  end
  redis.call('EXPIRE', KEYS[k], tonumber(ARGV[base + 2]))
end
return 1
`

var rotateLua = redis.NewScript(rotateScript)

// Store keeps at most one active token id per (username, kind) in Redis.
//
// Records are hashes at "<namespace>:<kind>:<username>" holding the token id,
// its expiry as a decimal unix timestamp, and stringified metadata. The key
// expires together with the token.
type Store struct {
	redis     redis.UniversalClient
	namespace string
	now       func() time.Time
}

// Option customises a [Store].
type Option func(*Store)

// WithNamespace replaces the "session" key prefix.
func WithNamespace(ns string) Option {
	return func(s *Store) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// WithClock overrides the time source used for TTL computation.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a session [Store] backed by the given Redis client.
func NewStore(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		redis:     rdb,
		namespace: DefaultNamespace,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the Redis key for a session.
func (s *Store) Key(kind, username string) string {
	return s.namespace + ":" + normalizeKind(kind) + ":" + username
}

// Save makes jti the only valid token id for (username, kind).
//
// The previous record is deleted, the new fields written and the TTL set in
// one MULTI/EXEC batch, so readers never see a mix of old and new fields. The
// TTL is the time remaining until expiresAt, floored at one second. Meta values
// are stored with fmt formatting and cannot overwrite the jti or exp fields.
func (s *Store) Save(ctx context.Context, username, jti string, expiresAt int64, kind string, meta map[string]any) error {
	return s.save(ctx, username, meta, Entry{Kind: kind, TokenID: jti, ExpiresAt: expiresAt})
}

// SavePair is Save for an access and a refresh record written in the same
// MULTI/EXEC batch: either both records are replaced or neither is.
//
// With Redis Cluster both keys must hash to the same slot.
func (s *Store) SavePair(ctx context.Context, username string, access, refresh Entry, meta map[string]any) error {
	return s.save(ctx, username, meta, access, refresh)
}

func (s *Store) save(ctx context.Context, username string, meta map[string]any, entries ...Entry) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, entry := range entries {
			key := s.Key(entry.Kind, username)
			fields := metaFields(meta, len(meta)+2)
			fields[fieldTokenID] = entry.TokenID
			fields[fieldExpiresAt] = strconv.FormatInt(entry.ExpiresAt, 10)

			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, fields)
			pipe.Expire(ctx, key, s.ttlUntil(entry.ExpiresAt))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Rotate is Save guarded by a compare-and-swap: the record is replaced only
// while prevJTI is still the active token id. It reports false, without
// error, when another writer rotated or revoked the session first.
func (s *Store) Rotate(ctx context.Context, username, prevJTI, jti string, expiresAt int64, kind string, meta map[string]any) (bool, error) {
	return s.rotate(ctx, username, prevJTI, meta, Entry{Kind: kind, TokenID: jti, ExpiresAt: expiresAt})
}

// RotatePair swaps the refresh record from prevRefreshJTI to refresh and
// replaces the access record in one script run. Nothing is written when the
// compare fails, and a transport error leaves both records as they were.
//
// With Redis Cluster both keys must hash to the same slot.
func (s *Store) RotatePair(ctx context.Context, username, prevRefreshJTI string, refresh, access Entry, meta map[string]any) (bool, error) {
	return s.rotate(ctx, username, prevRefreshJTI, meta, refresh, access)
}

// rotate compares prevJTI against the record of entries[0].
func (s *Store) rotate(ctx context.Context, username, prevJTI string, meta map[string]any, entries ...Entry) (bool, error) {
	keys := make([]string, 0, len(entries))
	args := make([]any, 0, 1+3*len(entries)+2*len(meta))
	args = append(args, prevJTI)
	for _, entry := range entries {
		keys = append(keys, s.Key(entry.Kind, username))
		args = append(args,
			entry.TokenID,
			strconv.FormatInt(entry.ExpiresAt, 10),
			int64(s.ttlUntil(entry.ExpiresAt)/time.Second),
		)
	}
	for k, v := range metaFields(meta, len(meta)) {
		args = append(args, k, v)
	}

	n, err := rotateLua.Run(ctx, s.redis, keys, args...).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// IsActive reports whether jti is the currently recorded token id for
// (username, kind). A missing record is not an error.
func (s *Store) IsActive(ctx context.Context, username, jti, kind string) (bool, error) {
	stored, err := s.redis.HGet(ctx, s.Key(kind, username), fieldTokenID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return stored == jti, nil
}

// Revoke deletes the record for (username, kind). Revoking a missing record
// succeeds.
func (s *Store) Revoke(ctx context.Context, username, kind string) error {
	if err := s.redis.Del(ctx, s.Key(kind, username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeAll deletes the records of every listed kind in a single DEL and
// returns how many existed. With no kinds it revokes access and refresh.
func (s *Store) RevokeAll(ctx context.Context, username string, kinds ...string) (int64, error) {
	if len(kinds) == 0 {
		kinds = []string{KindAccess, KindRefresh}
	}
	keys := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		keys = append(keys, s.Key(kind, username))
	}
	n, err := s.redis.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// Get returns the full record for (username, kind).
func (s *Store) Get(ctx context.Context, username, kind string) (*Record, error) {
	kind = normalizeKind(kind)
	fields, err := s.redis.HGetAll(ctx, s.Key(kind, username)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}

	rec := &Record{
		Username: username,
		Kind:     kind,
		TokenID:  fields[fieldTokenID],
		Meta:     make(map[string]string, len(fields)),
	}
	if raw, ok := fields[fieldExpiresAt]; ok {
		exp, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("session exp field: %w", err)
		}
		rec.ExpiresAt = exp
	}
	for k, v := range fields {
		if k == fieldTokenID || k == fieldExpiresAt {
			continue
		}
		rec.Meta[k] = v
	}
	return rec, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) ttlUntil(expiresAt int64) time.Duration {
	ttl := time.Duration(expiresAt-s.now().Unix()) * time.Second
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}

// metaFields stringifies meta, skipping the reserved jti and exp names.
func metaFields(meta map[string]any, size int) map[string]any {
	fields := make(map[string]any, size)
	for k, v := range meta {
		if k == fieldTokenID || k == fieldExpiresAt {
			continue
		}
		fields[k] = fmt.Sprint(v)
	}
	return fields
}

func normalizeKind(kind string) string {
	if kind == "" {
		return KindAccess
	}
	return kind
}

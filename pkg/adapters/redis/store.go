// Package redis implements the session store and the distributed
// session locker on Redis, for multi-replica deployments.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/chatwalk/chatwalk/pkg/domain"
	"github.com/chatwalk/chatwalk/pkg/ports"
)

const defaultPrefix = "chatwalk:session:"

// commitScript performs the compare-and-swap: the commit succeeds only
// when the stored version still equals the expected token (or the
// session does not exist yet and no token is presented). Returns the new
// version, or -1 on conflict.
var commitScript = backend.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if ARGV[1] == '' then
  if current then return -1 end
elseif current ~= ARGV[1] then
  return -1
end
local next = 1
if current then next = tonumber(current) + 1 end
redis.call('HSET', KEYS[1], 'data', ARGV[2], 'version', tostring(next))
if tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return next
`)

// Store implements ports.SessionStore on a Redis hash per session.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// StoreOption configures the Store.
type StoreOption func(*Store)

// WithTTL expires idle sessions after the given duration. Each commit
// refreshes the timer.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) StoreOption {
	return func(s *Store) { s.prefix = prefix }
}

// NewFromClient wraps an existing Redis client.
func NewFromClient(client *backend.Client, opts ...StoreOption) *Store {
	s := &Store{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(sessionID string) string { return s.prefix + sessionID }

// Load retrieves the state and its version token.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.SessionState, ports.Version, error) {
	vals, err := s.client.HMGet(ctx, s.key(sessionID), "data", "version").Result()
	if err != nil {
		return nil, ports.NoVersion, fmt.Errorf("redis load: %w", err)
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, ports.NoVersion, domain.ErrSessionNotFound
	}
	version, _ := vals[1].(string)

	var state domain.SessionState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, ports.NoVersion, fmt.Errorf("corrupt session %s: %w", sessionID, err)
	}
	return &state, ports.Version(version), nil
}

// Commit persists the state if the version token still matches.
func (s *Store) Commit(ctx context.Context, sessionID string, state *domain.SessionState, expected ports.Version) (ports.Version, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return ports.NoVersion, fmt.Errorf("failed to encode session: %w", err)
	}

	res, err := commitScript.Run(ctx, s.client,
		[]string{s.key(sessionID)},
		string(expected), string(data), s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return ports.NoVersion, fmt.Errorf("redis commit: %w", err)
	}
	if res < 0 {
		return ports.NoVersion, domain.ErrVersionConflict
	}
	return ports.Version(strconv.FormatInt(res, 10)), nil
}

// Delete removes the session. Absent sessions are a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

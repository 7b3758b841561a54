package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chatwalk/chatwalk/internal/logging"
	"github.com/chatwalk/chatwalk/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Guard serializes work on one session. It uses reference counting to
// garbage collect unused locks.
type Guard struct {
	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker // optional, for multi-replica setups
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Guard.
type Option func(*Guard)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(g *Guard) { g.locker = locker }
}

// WithLockTTL overrides the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(g *Guard) {
		if ttl > 0 {
			g.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for deferred errors.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

// NewGuard creates a session guard.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// acquire gets or creates a lock entry and increments its reference
// count. The caller must lock entry.mu and later call release.
func (g *Guard) acquire(sessionID string) *lockEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		g.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry when it
// reaches zero.
func (g *Guard) release(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(g.locks, sessionID)
	}
}

// WithLock executes fn while holding the session's lock.
func (g *Guard) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := g.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		g.release(sessionID)
	}()

	if g.locker != nil {
		unlock, err := g.locker.Lock(ctx, sessionID, g.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				g.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

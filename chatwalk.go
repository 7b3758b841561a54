package chatwalk

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/chatwalk/chatwalk/internal/runtime"
	"github.com/chatwalk/chatwalk/pkg/adapters/memory"
	"github.com/chatwalk/chatwalk/pkg/adapters/webhook"
	"github.com/chatwalk/chatwalk/pkg/domain"
	"github.com/chatwalk/chatwalk/pkg/ports"
	"github.com/chatwalk/chatwalk/pkg/session"
)

// Engine is the high-level entry point for the chatwalk library. It
// wraps the internal runtime and provides a simplified API for
// consumers.
type Engine struct {
	runtime *runtime.Engine
	store   ports.SessionStore

	bots      ports.BotLoader
	caps      runtime.Capabilities
	stream    runtime.StreamSink
	logger    *slog.Logger
	locker    ports.DistributedLocker
	guard     *session.Guard
	extraOpts []runtime.EngineOption
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithSessionStore injects the session persistence backend. Defaults to
// the in-memory store.
func WithSessionStore(store ports.SessionStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithBotLoader lets start requests reference registered bots by ID.
func WithBotLoader(l ports.BotLoader) Option {
	return func(e *Engine) { e.bots = l }
}

// WithWebhookCaller sets the outbound HTTP capability.
func WithWebhookCaller(c ports.WebhookCaller) Option {
	return func(e *Engine) { e.caps.Webhooks = c }
}

// WithScriptRunner sets the script execution capability.
func WithScriptRunner(r ports.ScriptRunner) Option {
	return func(e *Engine) { e.caps.Scripts = r }
}

// WithPaymentConfirmer sets the payment confirmation capability.
func WithPaymentConfirmer(p ports.PaymentConfirmer) Option {
	return func(e *Engine) { e.caps.Payments = p }
}

// WithStreamSink attaches the partial-output side channel used by
// stream-enabled sessions.
func WithStreamSink(s runtime.StreamSink) Option {
	return func(e *Engine) { e.stream = s }
}

// WithDistributedLocker serializes turns on a session across replicas.
// Single-replica deployments get local serialization regardless.
func WithDistributedLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches execution counters (see pkg/observability).
func WithMetrics(m runtime.Metrics) Option {
	return func(e *Engine) {
		e.extraOpts = append(e.extraOpts, runtime.WithMetrics(m))
	}
}

// WithClock overrides the session clock. Mostly for tests and for
// deterministic relative-date parsing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.extraOpts = append(e.extraOpts, runtime.WithClock(now))
	}
}

// WithMaxSteps overrides the per-turn block-step ceiling.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.extraOpts = append(e.extraOpts, runtime.WithMaxSteps(n))
	}
}

// WithCallTimeout overrides the per-capability-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.extraOpts = append(e.extraOpts, runtime.WithCallTimeout(d))
	}
}

// New initializes a chatwalk Engine. Without options it runs fully
// in-process: in-memory sessions and a default webhook client.
func New(opts ...Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.caps.Webhooks == nil {
		eng.caps.Webhooks = webhook.NewCaller()
	}
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithCapabilities(eng.caps),
		runtime.WithLogger(eng.logger),
	}
	if eng.bots != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithBotLoader(eng.bots))
	}
	if eng.stream != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithStreamSink(eng.stream))
	}
	runtimeOpts = append(runtimeOpts, eng.extraOpts...)

	guardOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		guardOpts = append(guardOpts, session.WithLocker(eng.locker))
	}
	eng.guard = session.NewGuard(guardOpts...)

	eng.runtime = runtime.NewEngine(eng.store, runtimeOpts...)
	return eng
}

// StartChat creates a session and executes the first turn.
func (e *Engine) StartChat(ctx context.Context, input *domain.StartChatInput) (*domain.StartChatResponse, error) {
	return e.runtime.StartChat(ctx, input)
}

// ContinueChat resumes a session with the visitor's reply. Turns on the
// same session are serialized; a concurrent turn waits rather than
// racing into a version conflict.
func (e *Engine) ContinueChat(ctx context.Context, sessionID string, msg *domain.Message) (*domain.Reply, error) {
	var reply *domain.Reply
	err := e.guard.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		reply, err = e.runtime.ContinueChat(ctx, sessionID, msg)
		return err
	})
	return reply, err
}

// Store returns the underlying session store.
func (e *Engine) Store() ports.SessionStore {
	return e.store
}

// Version is the library version, set at build time via ldflags.
var Version = "dev"

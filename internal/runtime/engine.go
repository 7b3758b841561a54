package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chatwalk/chatwalk/internal/compiler"
	"github.com/chatwalk/chatwalk/internal/logging"
	"github.com/chatwalk/chatwalk/pkg/domain"
	"github.com/chatwalk/chatwalk/pkg/ports"
)

// DefaultMaxStepsPerTurn bounds block execution within one turn so
// cyclic jumps with no suspension cannot spin forever.
const DefaultMaxStepsPerTurn = 500

// DefaultCallTimeout bounds each external capability call.
const DefaultCallTimeout = 10 * time.Second

// Metrics receives execution counters. Implemented by
// pkg/observability; a nil-safe no-op is used when absent.
type Metrics interface {
	TurnStarted()
	TurnFinished(outcome string, d time.Duration)
	BlockExecuted(blockType string)
}

type nopMetrics struct{}

func (nopMetrics) TurnStarted()                       {}
func (nopMetrics) TurnFinished(string, time.Duration) {}
func (nopMetrics) BlockExecuted(string)               {}

// Engine is the session state machine: it owns the cursor and the turn
// counter, drives block executors, and persists through the session
// store with optimistic concurrency. One Engine serves many sessions
// concurrently; each turn is logically single-threaded.
type Engine struct {
	store ports.SessionStore
	bots  ports.BotLoader

	caps   Capabilities
	stream StreamSink

	logger      *slog.Logger
	now         func() time.Time
	maxSteps    int
	callTimeout time.Duration

	registry map[domain.BlockType]Executor
	progress *progressCache
	metrics  Metrics
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithBotLoader lets start requests reference registered bots by ID.
func WithBotLoader(l ports.BotLoader) EngineOption {
	return func(e *Engine) { e.bots = l }
}

// WithCapabilities injects the outbound capability implementations.
func WithCapabilities(c Capabilities) EngineOption {
	return func(e *Engine) { e.caps = c }
}

// WithStreamSink attaches the partial-output side channel.
func WithStreamSink(s StreamSink) EngineOption {
	return func(e *Engine) { e.stream = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the session clock (tests, relative date parsing).
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithMaxSteps overrides the per-turn block-step ceiling.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithCallTimeout overrides the per-capability-call timeout.
func WithCallTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

// WithMetrics attaches execution counters.
func WithMetrics(m Metrics) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// NewEngine creates the interpreter around a session store.
func NewEngine(store ports.SessionStore, opts ...EngineOption) *Engine {
	e := &Engine{
		store:       store,
		logger:      logging.NewNop(),
		now:         time.Now,
		maxSteps:    DefaultMaxStepsPerTurn,
		callTimeout: DefaultCallTimeout,
		registry:    newRegistry(),
		progress:    newProgressCache(),
		metrics:     nopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartChat creates a session and executes its first turn.
func (e *Engine) StartChat(ctx context.Context, input *domain.StartChatInput) (*domain.StartChatResponse, error) {
	started := e.now()
	e.metrics.TurnStarted()

	graph, err := e.resolveGraph(ctx, input)
	if err != nil {
		e.metrics.TurnFinished("error", e.now().Sub(started))
		return nil, err
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	resultID := input.ResultID
	if resultID == "" {
		resultID = uuid.NewString()
	}

	state := domain.NewSessionState(sessionID, graph, e.now().UTC())
	state.ResultID = resultID
	state.StreamEnabled = input.IsStreamEnabled || graph.Settings.StreamingEnabled
	state.TextFormat = input.TextFormat
	if state.TextFormat == "" {
		state.TextFormat = "richText"
	}

	for _, v := range graph.Variables {
		if v.Default != nil {
			state.Variables[v.Name] = v.Default
		}
	}
	for name, val := range input.PrefilledVariables {
		state.Variables[name] = val
	}

	idx := NewIndex(graph)
	entry, err := idx.EntryCursor(input.StartFrom)
	if err != nil {
		e.metrics.TurnFinished("error", e.now().Sub(started))
		return nil, err
	}
	state.Cursor = entry

	resp := &domain.StartChatResponse{SessionID: sessionID, ResultID: resultID}
	resp.Bot.ID = graph.ID
	resp.Bot.Version = graph.Version
	resp.Bot.Theme = graph.Theme

	if input.IsOnlyRegistering {
		if _, err := e.store.Commit(ctx, sessionID, state, ports.NoVersion); err != nil {
			e.metrics.TurnFinished("error", e.now().Sub(started))
			return nil, fmt.Errorf("failed to register session: %w", err)
		}
		resp.Reply = domain.Reply{Messages: []domain.ChatMessage{}}
		e.metrics.TurnFinished("registered", e.now().Sub(started))
		return resp, nil
	}

	t, acc := e.newTurn(state, idx)
	if err := e.run(ctx, t, acc); err != nil {
		e.metrics.TurnFinished(outcomeOf(err), e.now().Sub(started))
		return nil, err
	}

	// An initial answer may be provided when the flow opens on an input.
	if state.Status == domain.StatusAwaitingInput && input.Message != nil {
		if err := e.feed(ctx, t, acc, input.Message); err != nil {
			e.metrics.TurnFinished(outcomeOf(err), e.now().Sub(started))
			return nil, err
		}
	}

	reply := e.finalize(t, acc)
	if _, err := e.store.Commit(ctx, sessionID, state, ports.NoVersion); err != nil {
		e.metrics.TurnFinished("conflict", e.now().Sub(started))
		return nil, err
	}

	resp.Reply = reply
	e.logger.Info("session started",
		"session", sessionID,
		"bot", graph.ID,
		"status", state.Status,
	)
	e.metrics.TurnFinished("ok", e.now().Sub(started))
	return resp, nil
}

// ContinueChat resumes a session with the visitor's reply and executes
// one turn. The failed turn is never committed: on any fatal error the
// previously persisted cursor stays in place.
func (e *Engine) ContinueChat(ctx context.Context, sessionID string, msg *domain.Message) (*domain.Reply, error) {
	started := e.now()
	e.metrics.TurnStarted()

	state, version, err := e.store.Load(ctx, sessionID)
	if err != nil {
		e.metrics.TurnFinished("not_found", e.now().Sub(started))
		return nil, err
	}
	if state.Status == domain.StatusTerminated {
		e.metrics.TurnFinished("terminated", e.now().Sub(started))
		return nil, domain.ErrSessionTerminated
	}

	idx := NewIndex(state.Graph)
	t, acc := e.newTurn(state, idx)

	if err := e.feed(ctx, t, acc, msg); err != nil {
		e.metrics.TurnFinished(outcomeOf(err), e.now().Sub(started))
		return nil, err
	}

	reply := e.finalize(t, acc)
	if _, err := e.store.Commit(ctx, sessionID, state, version); err != nil {
		e.metrics.TurnFinished("conflict", e.now().Sub(started))
		return nil, err
	}

	e.logger.Info("turn completed",
		"session", sessionID,
		"turn", state.TurnCount,
		"status", state.Status,
	)
	e.metrics.TurnFinished("ok", e.now().Sub(started))
	return &reply, nil
}

func (e *Engine) resolveGraph(ctx context.Context, input *domain.StartChatInput) (*domain.Graph, error) {
	if input.Graph != nil {
		if err := compiler.Validate(input.Graph); err != nil {
			return nil, err
		}
		return input.Graph, nil
	}
	if input.BotID == "" {
		return nil, fmt.Errorf("start request needs a bot id or an inline graph")
	}
	if e.bots == nil {
		return nil, fmt.Errorf("no bot loader configured")
	}
	graph, err := e.bots.LoadBot(ctx, input.BotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bot %s: %w", input.BotID, err)
	}
	if err := compiler.Validate(graph); err != nil {
		return nil, err
	}
	return graph, nil
}

func (e *Engine) newTurn(state *domain.SessionState, idx *Index) (*Turn, *accumulator) {
	t := &Turn{
		State:       state,
		Vars:        NewVars(state.Variables),
		Index:       idx,
		Caps:        e.caps,
		Logger:      e.logger,
		Now:         e.now,
		CallTimeout: e.callTimeout,
	}
	if state.StreamEnabled {
		t.Stream = e.stream
	}
	return t, &accumulator{}
}

// feed delivers the visitor's message to the session: a command message
// re-enters the graph through its event; otherwise the suspended block's
// executor validates the reply. Execution then continues until the next
// suspension or termination.
func (e *Engine) feed(ctx context.Context, t *Turn, acc *accumulator, msg *domain.Message) error {
	state := t.State

	if msg != nil && msg.Type == "command" {
		ev := t.Index.CommandEvent(msg.Command)
		if ev == nil {
			acc.log(domain.LogWarn, "Unknown command", msg.Command)
			return nil
		}
		target, err := t.Index.CursorAt(ev.Target)
		if err != nil {
			return err
		}
		state.Cursor = target
		state.Status = domain.StatusRunning
		return e.run(ctx, t, acc)
	}

	if state.Status == domain.StatusAwaitingInput {
		block, err := t.Index.Block(state.Cursor)
		if err != nil {
			return err
		}
		exec := e.registry[block.Type]
		resumer, ok := exec.(Resumer)
		if !ok {
			return &domain.GraphIntegrityError{
				GroupID: state.Cursor.GroupID,
				BlockID: block.ID,
				Reason:  fmt.Sprintf("suspended on non-resumable block type %q", block.Type),
			}
		}

		res, err := resumer.Resume(ctx, block, t, msg)
		if err != nil {
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				return err
			}
			return e.retry(ctx, t, acc, block, vErr)
		}

		acc.absorb(res)
		e.metrics.BlockExecuted(string(block.Type))
		state.StepsCompleted++
		state.Status = domain.StatusRunning
		if err := e.apply(t, block, res); err != nil {
			return err
		}
	}

	return e.run(ctx, t, acc)
}

// retry handles a reply that failed validation: follow the declared
// retry edge if the graph has one, otherwise re-prompt the same block
// and stay suspended.
func (e *Engine) retry(ctx context.Context, t *Turn, acc *accumulator, block *domain.Block, vErr *domain.ValidationError) error {
	acc.log(domain.LogError, "Reply validation failed", vErr.Reason)
	e.logger.Debug("reply rejected", "session", t.State.ID, "block", block.ID, "reason", vErr.Reason)

	if edge := t.Index.LabeledEdge(t.State.Cursor.GroupID, block.ID, LabelRetry); edge != nil {
		target, err := t.Index.CursorAt(edge.To)
		if err != nil {
			return err
		}
		t.State.Cursor = target
		t.State.Status = domain.StatusRunning
		return e.run(ctx, t, acc)
	}

	res, err := e.registry[block.Type].Execute(ctx, block, t)
	if err != nil {
		return err
	}
	acc.absorb(res)
	// Still awaiting on the same cursor.
	t.State.Status = domain.StatusAwaitingInput
	return nil
}

// run executes blocks from the cursor until the session suspends,
// terminates, or the step ceiling trips.
func (e *Engine) run(ctx context.Context, t *Turn, acc *accumulator) error {
	state := t.State
	steps := 0

	for state.Status == domain.StatusRunning {
		if err := ctx.Err(); err != nil {
			return err
		}
		if steps >= e.maxSteps {
			block, _ := t.Index.Block(state.Cursor)
			loopErr := &domain.InfiniteLoopError{GroupID: state.Cursor.GroupID, Steps: e.maxSteps}
			if block != nil {
				loopErr.BlockID = block.ID
			}
			return loopErr
		}

		block, err := t.Index.Block(state.Cursor)
		if err != nil {
			return err
		}
		exec, ok := e.registry[block.Type]
		if !ok {
			return &domain.GraphIntegrityError{
				GroupID: state.Cursor.GroupID,
				BlockID: block.ID,
				Reason:  fmt.Sprintf("no executor for block type %q", block.Type),
			}
		}

		res, err := exec.Execute(ctx, block, t)
		if err != nil {
			return err
		}

		steps++
		state.StepsCompleted++
		e.metrics.BlockExecuted(string(block.Type))
		acc.absorb(res)

		if err := e.apply(t, block, res); err != nil {
			return err
		}
	}
	return nil
}

// apply performs the cursor transition an executor asked for. Executors
// never touch the cursor themselves.
func (e *Engine) apply(t *Turn, block *domain.Block, res Result) error {
	state := t.State

	switch res.Transition.Kind {
	case Await:
		state.Status = domain.StatusAwaitingInput
		return nil

	case Goto:
		state.Cursor = *res.Transition.Target
		return nil

	case Branch:
		// An error outcome recovers only through a declared error edge;
		// otherwise the capability failure surfaces and fails the turn.
		if res.CapErr != nil && res.Transition.Label == LabelError {
			edge := t.Index.LabeledEdge(state.Cursor.GroupID, block.ID, LabelError)
			if edge == nil {
				return res.CapErr
			}
			target, err := t.Index.CursorAt(edge.To)
			if err != nil {
				return err
			}
			state.Cursor = target
			return nil
		}
		return e.advance(t, block, res.Transition.Label)

	default:
		return e.advance(t, block, "")
	}
}

// advance follows the block's outgoing edge for a branch label (default
// edge as fallback), falling through to the next block of the group,
// then the group exit, then termination.
func (e *Engine) advance(t *Turn, block *domain.Block, label string) error {
	state := t.State

	if edge := t.Index.OutgoingEdge(state.Cursor.GroupID, block.ID, label); edge != nil {
		target, err := t.Index.CursorAt(edge.To)
		if err != nil {
			return err
		}
		state.Cursor = target
		return nil
	}

	group, err := t.Index.Group(state.Cursor.GroupID)
	if err != nil {
		return err
	}
	if state.Cursor.BlockIndex+1 < len(group.Blocks) {
		state.Cursor.BlockIndex++
		return nil
	}

	if exit := t.Index.GroupExit(group.ID); exit != nil {
		target, err := t.Index.CursorAt(exit.To)
		if err != nil {
			return err
		}
		state.Cursor = target
		return nil
	}

	state.Cursor = domain.Cursor{}
	state.Status = domain.StatusTerminated
	return nil
}

// finalize folds the turn's variable overlay into the state, computes
// progress and theme deltas, and assembles the immutable reply. Called
// only on successful turns; aborted turns drop the overlay with the
// working copy.
func (e *Engine) finalize(t *Turn, acc *accumulator) domain.Reply {
	state := t.State

	var progress *float64
	if state.Graph.Settings.ProgressBarEnabled {
		awaiting := state.Status == domain.StatusAwaitingInput
		if p, ok := e.progress.Progress(t.Index, state.Cursor, state.StepsCompleted, awaiting); ok {
			progress = &p
		}
	}

	theme := themeDelta(state, t.Vars)

	state.Variables = t.Vars.Snapshot()
	state.TurnCount++
	state.UpdatedAt = e.now().UTC()

	return acc.assemble(progress, theme)
}

func outcomeOf(err error) string {
	var loopErr *domain.InfiniteLoopError
	var integrityErr *domain.GraphIntegrityError
	var capErr *domain.CapabilityError
	switch {
	case errors.As(err, &loopErr):
		return "loop"
	case errors.As(err, &integrityErr):
		return "integrity"
	case errors.As(err, &capErr):
		return "capability"
	case errors.Is(err, domain.ErrVersionConflict):
		return "conflict"
	default:
		return "error"
	}
}

package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/chatwalk/chatwalk/pkg/domain"
	"github.com/chatwalk/chatwalk/pkg/ports"
)

// Capabilities bundles the narrow interfaces through which executors
// perform side effects. Executors never reach the network directly.
type Capabilities struct {
	Webhooks ports.WebhookCaller
	Scripts  ports.ScriptRunner
	Payments ports.PaymentConfirmer
}

// Turn is the per-invocation working set handed to executors: the
// session's working state, its copy-on-write variables, the compiled
// graph index, and the injected capabilities. Executors read and write
// variables through Vars; the cursor is owned by the engine and moved
// only by applying the returned transition.
type Turn struct {
	State *domain.SessionState
	Vars  *Vars
	Index *Index

	Caps        Capabilities
	Stream      StreamSink
	Logger      *slog.Logger
	Now         func() time.Time
	CallTimeout time.Duration
}

// TransitionKind discriminates what an executor asks the engine to do next.
type TransitionKind int

const (
	// Advance follows the block's default edge, falling through to the
	// next block of the group when no edge exists.
	Advance TransitionKind = iota
	// Branch follows the edge matching Label, with the default edge as
	// fallback.
	Branch
	// Goto moves to an explicit cursor (jump blocks).
	Goto
	// Await suspends the turn at the current block until the visitor
	// replies (or a wait timer elapses).
	Await
)

// Transition is the next-step signal returned by an executor.
type Transition struct {
	Kind   TransitionKind
	Label  string
	Target *domain.Cursor
	Prompt *domain.InputPrompt
}

// Result is what one block execution produced.
type Result struct {
	Messages []domain.ChatMessage
	Actions  []domain.ClientSideAction
	Logs     []domain.SessionLog

	// NormalizedReply echoes an input reply after validation reshaped it
	// (e.g. "tomorrow" normalized to a date string).
	NormalizedReply string

	Transition Transition

	// CapErr records a failed external call. The engine recovers through
	// a declared error edge; without one the turn fails with this error.
	CapErr *domain.CapabilityError
}

// Executor runs one block kind. Implementations are stateless; all
// session state flows through the Turn.
type Executor interface {
	Execute(ctx context.Context, b *domain.Block, t *Turn) (Result, error)
}

// Resumer is implemented by executors whose blocks suspend the session
// (inputs, wait). The engine calls Resume on the following turn with the
// visitor's reply.
type Resumer interface {
	Resume(ctx context.Context, b *domain.Block, t *Turn, msg *domain.Message) (Result, error)
}

// newRegistry wires one executor per block kind.
func newRegistry() map[domain.BlockType]Executor {
	bubble := &bubbleExecutor{}
	input := &inputExecutor{}

	return map[domain.BlockType]Executor{
		domain.BlockText:  bubble,
		domain.BlockImage: bubble,
		domain.BlockVideo: bubble,
		domain.BlockAudio: bubble,
		domain.BlockEmbed: bubble,

		domain.BlockTextInput:          input,
		domain.BlockEmailInput:         input,
		domain.BlockNumberInput:        input,
		domain.BlockURLInput:           input,
		domain.BlockPhoneInput:         input,
		domain.BlockDateInput:          input,
		domain.BlockTimeInput:          input,
		domain.BlockRatingInput:        input,
		domain.BlockChoiceInput:        input,
		domain.BlockPictureChoiceInput: input,
		domain.BlockFileInput:          input,
		domain.BlockPaymentInput:       input,
		domain.BlockCardsInput:         input,

		domain.BlockCondition:   &conditionExecutor{},
		domain.BlockSetVariable: &setVariableExecutor{},
		domain.BlockScript:      &scriptExecutor{},
		domain.BlockWebhook:     &webhookExecutor{},
		domain.BlockJump:        &jumpExecutor{},
		domain.BlockWait:        &waitExecutor{},
		domain.BlockRedirect:    &redirectExecutor{},
	}
}

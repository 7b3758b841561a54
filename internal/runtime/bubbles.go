package runtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/chatwalk/chatwalk/pkg/domain"
)

// bubbleExecutor renders content blocks. One block emits exactly one
// message; templates in the payload are resolved against the current
// variable bindings before emission.
type bubbleExecutor struct{}

func (e *bubbleExecutor) Execute(ctx context.Context, b *domain.Block, t *Turn) (Result, error) {
	content, _ := t.Vars.ResolveAny(b.Content).(map[string]any)
	if content == nil {
		content = map[string]any{}
	}

	msg := domain.ChatMessage{
		ID:      uuid.NewString(),
		Type:    b.Type,
		Content: content,
	}

	res := Result{
		Messages:   []domain.ChatMessage{msg},
		Transition: Transition{Kind: Advance},
	}

	// Streaming-enabled sessions flush text bubbles through the side
	// channel as soon as they are resolved; the final reply still carries
	// the full message.
	if b.Type == domain.BlockText && t.State.StreamEnabled && t.Stream != nil {
		if text, ok := content["markdown"].(string); ok && text != "" {
			t.Stream.Write(t.State.ID, text)
			res.Actions = append(res.Actions, domain.ClientSideAction{
				Type:     domain.ActionStream,
				StreamID: msg.ID,
			})
		}
	}

	return res, nil
}

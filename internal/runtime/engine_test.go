package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwalk/chatwalk/internal/runtime"
	"github.com/chatwalk/chatwalk/pkg/adapters/memory"
	"github.com/chatwalk/chatwalk/pkg/domain"
	"github.com/chatwalk/chatwalk/pkg/ports"
)

func textBlock(id, text string) domain.Block {
	return domain.Block{
		ID:      id,
		Type:    domain.BlockText,
		Content: map[string]any{"type": "markdown", "markdown": text},
	}
}

func markdownOf(t *testing.T, msg domain.ChatMessage) string {
	t.Helper()
	text, ok := msg.Content["markdown"].(string)
	require.True(t, ok, "message has no markdown content: %v", msg.Content)
	return text
}

// greetingGraph is a two-group flow: a greeting bubble, an email input
// bound to {{email}}, then a goodbye bubble that terminates.
func greetingGraph() *domain.Graph {
	return &domain.Graph{
		ID: "greeting-bot",
		Groups: []domain.Group{
			{
				ID: "welcome",
				Blocks: []domain.Block{
					textBlock("hi", "Hi there!"),
					{
						ID:      "ask-email",
						Type:    domain.BlockEmailInput,
						Options: map[string]any{"variable": "email"},
					},
				},
			},
			{
				ID: "goodbye",
				Blocks: []domain.Block{
					textBlock("bye", "Bye {{email}}"),
				},
			},
		},
		Edges: []domain.Edge{
			{ID: "e1", From: domain.EdgeSource{GroupID: "welcome", BlockID: "ask-email"}, To: domain.EdgeTarget{GroupID: "goodbye"}},
		},
	}
}

func TestEngine_LinearFlow(t *testing.T) {
	store := memory.NewStore()
	engine := runtime.NewEngine(store)
	ctx := context.Background()

	resp, err := engine.StartChat(ctx, &domain.StartChatInput{Graph: greetingGraph()})
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "greeting-bot", resp.Bot.ID)

	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Hi there!", markdownOf(t, resp.Messages[0]))
	require.NotNil(t, resp.Input)
	assert.Equal(t, domain.BlockEmailInput, resp.Input.Type)

	t.Run("Invalid Reply Re-Prompts", func(t *testing.T) {
		reply, err := engine.ContinueChat(ctx, resp.SessionID, domain.TextMessage("not-an-email"))
		require.NoError(t, err)
		require.NotNil(t, reply.Input, "session should stay suspended on the same input")
		assert.Equal(t, "ask-email", reply.Input.ID)
		require.NotEmpty(t, reply.Logs)
		assert.Equal(t, domain.LogError, reply.Logs[0].Status)
	})

	t.Run("Valid Reply Completes The Flow", func(t *testing.T) {
		reply, err := engine.ContinueChat(ctx, resp.SessionID, domain.TextMessage("John@EXAMPLE.com"))
		require.NoError(t, err)
		assert.Nil(t, reply.Input)
		require.Len(t, reply.Messages, 1)
		assert.Equal(t, "Bye john@example.com", markdownOf(t, reply.Messages[0]))

		state, _, err := store.Load(ctx, resp.SessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusTerminated, state.Status)
		assert.True(t, state.Cursor.Zero())
		assert.Equal(t, "john@example.com", state.Variables["email"])
	})

	t.Run("Terminated Session Rejects Further Turns", func(t *testing.T) {
		_, err := engine.ContinueChat(ctx, resp.SessionID, domain.TextMessage("hello?"))
		assert.ErrorIs(t, err, domain.ErrSessionTerminated)
	})
}

func TestEngine_UnknownSession(t *testing.T) {
	engine := runtime.NewEngine(memory.NewStore())
	_, err := engine.ContinueChat(context.Background(), "nope", domain.TextMessage("hi"))
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_ConditionBranching(t *testing.T) {
	graph := &domain.Graph{
		ID: "age-gate",
		Groups: []domain.Group{
			{ID: "gate", Blocks: []domain.Block{
				{ID: "check", Type: domain.BlockCondition, Options: map[string]any{"expression": "age >= 18"}},
			}},
			{ID: "adult", Blocks: []domain.Block{textBlock("a", "Welcome in")}},
			{ID: "minor", Blocks: []domain.Block{textBlock("m", "Come back later")}},
		},
		Edges: []domain.Edge{
			{ID: "t", From: domain.EdgeSource{GroupID: "gate", BlockID: "check", Label: "true"}, To: domain.EdgeTarget{GroupID: "adult"}},
			{ID: "f", From: domain.EdgeSource{GroupID: "gate", BlockID: "check", Label: "false"}, To: domain.EdgeTarget{GroupID: "minor"}},
		},
	}

	cases := []struct {
		age  int
		want string
	}{
		{17, "Come back later"},
		{21, "Welcome in"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("Age %d", tc.age), func(t *testing.T) {
			engine := runtime.NewEngine(memory.NewStore())
			resp, err := engine.StartChat(context.Background(), &domain.StartChatInput{
				Graph:              graph,
				PrefilledVariables: map[string]any{"age": tc.age},
			})
			require.NoError(t, err)
			require.Len(t, resp.Messages, 1)
			assert.Equal(t, tc.want, markdownOf(t, resp.Messages[0]))
		})
	}
}

func TestEngine_InfiniteLoopCeiling(t *testing.T) {
	graph := &domain.Graph{
		ID: "spinner",
		Groups: []domain.Group{
			{ID: "loop", Blocks: []domain.Block{
				{ID: "again", Type: domain.BlockJump, Options: map[string]any{"groupId": "loop"}},
			}},
		},
	}

	store := memory.NewStore()
	engine := runtime.NewEngine(store, runtime.WithMaxSteps(50))

	resp, err := engine.StartChat(context.Background(), &domain.StartChatInput{Graph: graph})
	require.Error(t, err)
	assert.Nil(t, resp)

	var loopErr *domain.InfiniteLoopError
	require.ErrorAs(t, err, &loopErr)
	assert.Equal(t, 50, loopErr.Steps)
	assert.Equal(t, "loop", loopErr.GroupID)
}

func TestEngine_FailedTurnIsNotCommitted(t *testing.T) {
	// The second group spins forever, so the continue turn must fail and
	// leave the previously committed cursor untouched.
	graph := &domain.Graph{
		ID: "half-broken",
		Groups: []domain.Group{
			{ID: "ask", Blocks: []domain.Block{
				{ID: "name", Type: domain.BlockTextInput, Options: map[string]any{"variable": "name"}},
			}},
			{ID: "loop", Blocks: []domain.Block{
				{ID: "again", Type: domain.BlockJump, Options: map[string]any{"groupId": "loop"}},
			}},
		},
		Edges: []domain.Edge{
			{ID: "e1", From: domain.EdgeSource{GroupID: "ask", BlockID: "name"}, To: domain.EdgeTarget{GroupID: "loop"}},
		},
	}

	store := memory.NewStore()
	engine := runtime.NewEngine(store, runtime.WithMaxSteps(20))
	ctx := context.Background()

	resp, err := engine.StartChat(ctx, &domain.StartChatInput{Graph: graph})
	require.NoError(t, err)

	_, err = engine.ContinueChat(ctx, resp.SessionID, domain.TextMessage("Ada"))
	var loopErr *domain.InfiniteLoopError
	require.ErrorAs(t, err, &loopErr)

	state, _, err := store.Load(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingInput, state.Status)
	assert.Equal(t, "ask", state.Cursor.GroupID)
	assert.NotContains(t, state.Variables, "name", "aborted turn must not leak variable writes")
}

func TestEngine_CommandEventReenters(t *testing.T) {
	graph := greetingGraph()
	graph.Events = []domain.Event{
		{ID: "ev-restart", Type: domain.EventCommand, Command: "restart", Target: domain.EdgeTarget{GroupID: "welcome"}},
	}

	engine := runtime.NewEngine(memory.NewStore())
	ctx := context.Background()

	resp, err := engine.StartChat(ctx, &domain.StartChatInput{Graph: graph})
	require.NoError(t, err)
	require.NotNil(t, resp.Input)

	reply, err := engine.ContinueChat(ctx, resp.SessionID, &domain.Message{Type: "command", Command: "restart"})
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, "Hi there!", markdownOf(t, reply.Messages[0]))
	require.NotNil(t, reply.Input)

	t.Run("Unknown Command Is Logged, Not Fatal", func(t *testing.T) {
		reply, err := engine.ContinueChat(ctx, resp.SessionID, &domain.Message{Type: "command", Command: "warp"})
		require.NoError(t, err)
		require.NotEmpty(t, reply.Logs)
		assert.Equal(t, domain.LogWarn, reply.Logs[0].Status)
	})
}

func TestEngine_StartFromGroup(t *testing.T) {
	engine := runtime.NewEngine(memory.NewStore())
	resp, err := engine.StartChat(context.Background(), &domain.StartChatInput{
		Graph:     greetingGraph(),
		StartFrom: &domain.StartFrom{Type: "group", GroupID: "goodbye"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Bye ", markdownOf(t, resp.Messages[0]))
}

func TestEngine_IsOnlyRegistering(t *testing.T) {
	store := memory.NewStore()
	engine := runtime.NewEngine(store)
	ctx := context.Background()

	resp, err := engine.StartChat(ctx, &domain.StartChatInput{
		Graph:             greetingGraph(),
		IsOnlyRegistering: true,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Messages)
	assert.Nil(t, resp.Input)

	// The first continue executes the deferred first turn.
	reply, err := engine.ContinueChat(ctx, resp.SessionID, nil)
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, "Hi there!", markdownOf(t, reply.Messages[0]))
	require.NotNil(t, reply.Input)
}

func TestEngine_ChoiceRoutesPerItem(t *testing.T) {
	graph := &domain.Graph{
		ID: "colors",
		Groups: []domain.Group{
			{ID: "pick", Blocks: []domain.Block{
				{
					ID:      "color",
					Type:    domain.BlockChoiceInput,
					Options: map[string]any{"variable": "color"},
					Items: []domain.BlockItem{
						{ID: "i1", Content: "Red", EdgeLabel: "red"},
						{ID: "i2", Content: "Blue"},
					},
				},
			}},
			{ID: "red-path", Blocks: []domain.Block{textBlock("r", "Fire!")}},
			{ID: "default-path", Blocks: []domain.Block{textBlock("d", "Water")}},
		},
		Edges: []domain.Edge{
			{ID: "er", From: domain.EdgeSource{GroupID: "pick", BlockID: "color", Label: "red"}, To: domain.EdgeTarget{GroupID: "red-path"}},
			{ID: "ed", From: domain.EdgeSource{GroupID: "pick", BlockID: "color"}, To: domain.EdgeTarget{GroupID: "default-path"}},
		},
	}

	t.Run("Labeled Item", func(t *testing.T) {
		engine := runtime.NewEngine(memory.NewStore())
		resp, err := engine.StartChat(context.Background(), &domain.StartChatInput{Graph: graph})
		require.NoError(t, err)

		reply, err := engine.ContinueChat(context.Background(), resp.SessionID, domain.TextMessage("red"))
		require.NoError(t, err)
		require.Len(t, reply.Messages, 1)
		assert.Equal(t, "Fire!", markdownOf(t, reply.Messages[0]))
	})

	t.Run("Unlabeled Item Follows Default Edge", func(t *testing.T) {
		engine := runtime.NewEngine(memory.NewStore())
		resp, err := engine.StartChat(context.Background(), &domain.StartChatInput{Graph: graph})
		require.NoError(t, err)

		reply, err := engine.ContinueChat(context.Background(), resp.SessionID, domain.TextMessage("Blue"))
		require.NoError(t, err)
		require.Len(t, reply.Messages, 1)
		assert.Equal(t, "Water", markdownOf(t, reply.Messages[0]))
	})
}

func TestEngine_RetryEdge(t *testing.T) {
	graph := &domain.Graph{
		ID: "strict",
		Groups: []domain.Group{
			{ID: "ask", Blocks: []domain.Block{
				{ID: "email", Type: domain.BlockEmailInput, Options: map[string]any{"variable": "email"}},
			}},
			{ID: "scold", Blocks: []domain.Block{textBlock("s", "That was not an email.")}},
		},
		Edges: []domain.Edge{
			{ID: "er", From: domain.EdgeSource{GroupID: "ask", BlockID: "email", Label: "retry"}, To: domain.EdgeTarget{GroupID: "scold"}},
		},
	}

	engine := runtime.NewEngine(memory.NewStore())
	ctx := context.Background()

	resp, err := engine.StartChat(ctx, &domain.StartChatInput{Graph: graph})
	require.NoError(t, err)

	reply, err := engine.ContinueChat(ctx, resp.SessionID, domain.TextMessage("garbage"))
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, "That was not an email.", markdownOf(t, reply.Messages[0]))
}

type stubCaller struct {
	resp *ports.WebhookResponse
	err  error
}

func (s *stubCaller) Call(ctx context.Context, req ports.WebhookRequest) (*ports.WebhookResponse, error) {
	return s.resp, s.err
}

func TestEngine_WebhookErrorBranch(t *testing.T) {
	graph := &domain.Graph{
		ID: "caller",
		Groups: []domain.Group{
			{ID: "call", Blocks: []domain.Block{
				{ID: "hook", Type: domain.BlockWebhook, Options: map[string]any{"url": "https://api.example.com/x"}},
			}},
			{ID: "ok", Blocks: []domain.Block{textBlock("o", "Done")}},
			{ID: "fallback", Blocks: []domain.Block{textBlock("f", "Something broke")}},
		},
		Edges: []domain.Edge{
			{ID: "es", From: domain.EdgeSource{GroupID: "call", BlockID: "hook", Label: "success"}, To: domain.EdgeTarget{GroupID: "ok"}},
			{ID: "ee", From: domain.EdgeSource{GroupID: "call", BlockID: "hook", Label: "error"}, To: domain.EdgeTarget{GroupID: "fallback"}},
		},
	}

	t.Run("Failure Recovers Through Error Edge", func(t *testing.T) {
		caps := runtime.Capabilities{Webhooks: &stubCaller{err: errors.New("connection refused")}}
		engine := runtime.NewEngine(memory.NewStore(), runtime.WithCapabilities(caps))

		resp, err := engine.StartChat(context.Background(), &domain.StartChatInput{Graph: graph})
		require.NoError(t, err)
		require.Len(t, resp.Messages, 1)
		assert.Equal(t, "Something broke", markdownOf(t, resp.Messages[0]))
	})

	t.Run("Success Takes Success Edge", func(t *testing.T) {
		caps := runtime.Capabilities{Webhooks: &stubCaller{resp: &ports.WebhookResponse{StatusCode: 200, Body: map[string]any{"ok": true}}}}
		engine := runtime.NewEngine(memory.NewStore(), runtime.WithCapabilities(caps))

		resp, err := engine.StartChat(context.Background(), &domain.StartChatInput{Graph: graph})
		require.NoError(t, err)
		require.Len(t, resp.Messages, 1)
		assert.Equal(t, "Done", markdownOf(t, resp.Messages[0]))
	})

	t.Run("Failure Without Error Edge Is Fatal", func(t *testing.T) {
		bare := &domain.Graph{
			ID: "caller-bare",
			Groups: []domain.Group{
				{ID: "call", Blocks: []domain.Block{
					{ID: "hook", Type: domain.BlockWebhook, Options: map[string]any{"url": "https://api.example.com/x"}},
				}},
			},
		}
		caps := runtime.Capabilities{Webhooks: &stubCaller{err: errors.New("connection refused")}}
		engine := runtime.NewEngine(memory.NewStore(), runtime.WithCapabilities(caps))

		_, err := engine.StartChat(context.Background(), &domain.StartChatInput{Graph: bare})
		var capErr *domain.CapabilityError
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, "webhook", capErr.Capability)
	})
}

func TestEngine_SetVariableAndTemplates(t *testing.T) {
	graph := &domain.Graph{
		ID: "calc",
		Groups: []domain.Group{
			{ID: "work", Blocks: []domain.Block{
				{ID: "set", Type: domain.BlockSetVariable, Options: map[string]any{"variable": "total", "expression": "price * 2"}},
				textBlock("show", "Total: {{total}}"),
			}},
		},
	}

	engine := runtime.NewEngine(memory.NewStore())
	resp, err := engine.StartChat(context.Background(), &domain.StartChatInput{
		Graph:              graph,
		PrefilledVariables: map[string]any{"price": 21},
	})
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Total: 42", markdownOf(t, resp.Messages[0]))
}

func TestEngine_ProgressReporting(t *testing.T) {
	graph := greetingGraph()
	graph.Settings.ProgressBarEnabled = true

	engine := runtime.NewEngine(memory.NewStore())
	ctx := context.Background()

	resp, err := engine.StartChat(ctx, &domain.StartChatInput{Graph: graph})
	require.NoError(t, err)
	require.NotNil(t, resp.Progress)
	first := *resp.Progress
	assert.Greater(t, first, 0.0)
	assert.Less(t, first, 100.0)

	// Two of three blocks have run (greeting bubble + the suspended email
	// prompt); the suspended block must not also count as remaining.
	assert.InDelta(t, 100.0*2.0/3.0, first, 1e-9)

	reply, err := engine.ContinueChat(ctx, resp.SessionID, domain.TextMessage("a@b.co"))
	require.NoError(t, err)
	require.NotNil(t, reply.Progress)
	assert.Equal(t, 100.0, *reply.Progress)
	assert.GreaterOrEqual(t, *reply.Progress, first, "progress never goes backwards")
}

func TestEngine_ProgressOmittedWithoutTerminalPath(t *testing.T) {
	// The group's exit loops back onto itself, so no terminal group is
	// reachable and the metric is undefined rather than zero.
	graph := &domain.Graph{
		ID: "endless",
		Groups: []domain.Group{
			{ID: "ask", Blocks: []domain.Block{
				{ID: "q", Type: domain.BlockTextInput, Options: map[string]any{"variable": "x"}},
			}},
		},
		Edges: []domain.Edge{
			{ID: "cycle", From: domain.EdgeSource{GroupID: "ask"}, To: domain.EdgeTarget{GroupID: "ask"}},
		},
		Settings: domain.Settings{ProgressBarEnabled: true},
	}

	engine := runtime.NewEngine(memory.NewStore())
	resp, err := engine.StartChat(context.Background(), &domain.StartChatInput{Graph: graph})
	require.NoError(t, err)
	assert.Nil(t, resp.Progress)
}

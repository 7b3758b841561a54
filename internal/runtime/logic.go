package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/expr-lang/expr"

	"github.com/chatwalk/chatwalk/pkg/domain"
	"github.com/chatwalk/chatwalk/pkg/ports"
)

// Branch labels used by logic blocks. Condition blocks route on
// true/false; capability-backed blocks route on success/error.
const (
	LabelTrue    = "true"
	LabelFalse   = "false"
	LabelSuccess = "success"
	LabelError   = "error"
	LabelRetry   = "retry"
)

// evalExpr compiles and runs a condition/assignment expression over the
// session's variables. Undefined variables evaluate to nil rather than
// failing the turn (sflowg-style permissive environments).
func evalExpr(expression string, env map[string]any) (any, error) {
	program, err := expr.Compile(expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", expression, err)
	}
	return out, nil
}

// conditionExecutor evaluates a boolean expression and branches.
type conditionExecutor struct{}

type conditionOptions struct {
	Expression string `mapstructure:"expression"`
}

func (e *conditionExecutor) Execute(ctx context.Context, b *domain.Block, t *Turn) (Result, error) {
	var opts conditionOptions
	if err := decodeOptions(b, &opts); err != nil {
		return Result{}, err
	}
	if opts.Expression == "" {
		return Result{}, &domain.GraphIntegrityError{BlockID: b.ID, Reason: "condition block missing expression"}
	}

	out, err := evalExpr(opts.Expression, t.Vars.Env())
	if err != nil {
		return Result{
			Logs: []domain.SessionLog{{
				Status:      domain.LogError,
				Description: "Condition expression failed",
				Details:     err.Error(),
			}},
			Transition: Transition{Kind: Branch, Label: LabelFalse},
		}, nil
	}

	label := LabelFalse
	if truthy(out) {
		label = LabelTrue
	}
	return Result{Transition: Transition{Kind: Branch, Label: label}}, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return true
}

// setVariableExecutor assigns a variable from an expression or a
// template-resolved literal.
type setVariableExecutor struct{}

type setVariableOptions struct {
	Variable   string `mapstructure:"variable"`
	Expression string `mapstructure:"expression"`
	Value      any    `mapstructure:"value"`
}

func (e *setVariableExecutor) Execute(ctx context.Context, b *domain.Block, t *Turn) (Result, error) {
	var opts setVariableOptions
	if err := decodeOptions(b, &opts); err != nil {
		return Result{}, err
	}
	if opts.Variable == "" {
		return Result{}, &domain.GraphIntegrityError{BlockID: b.ID, Reason: "set-variable block missing variable name"}
	}

	var value any
	switch {
	case opts.Expression != "":
		out, err := evalExpr(opts.Expression, t.Vars.Env())
		if err != nil {
			return Result{
				Logs: []domain.SessionLog{{
					Status:      domain.LogError,
					Description: fmt.Sprintf("Failed to compute %q", opts.Variable),
					Details:     err.Error(),
				}},
				Transition: Transition{Kind: Advance},
			}, nil
		}
		value = out
	default:
		value = t.Vars.ResolveAny(opts.Value)
	}

	t.Vars.Set(opts.Variable, value)
	return Result{Transition: Transition{Kind: Advance}}, nil
}

// scriptExecutor runs a code snippet through the injected ScriptRunner
// capability and routes on the outcome. Timeouts become the error
// branch, never an unbounded wait.
type scriptExecutor struct{}

type scriptOptions struct {
	Code               string `mapstructure:"code"`
	Variable           string `mapstructure:"variable"`
	IsExecutedOnClient bool   `mapstructure:"isExecutedOnClient"`
}

func (e *scriptExecutor) Execute(ctx context.Context, b *domain.Block, t *Turn) (Result, error) {
	var opts scriptOptions
	if err := decodeOptions(b, &opts); err != nil {
		return Result{}, err
	}
	code := t.Vars.Resolve(opts.Code)

	// Client-executed scripts are shipped as a client-side action and the
	// flow continues immediately.
	if opts.IsExecutedOnClient || t.Caps.Scripts == nil {
		return Result{
			Actions: []domain.ClientSideAction{{
				Type:   domain.ActionScript,
				Script: &domain.ScriptAction{Content: code, IsExecutedOnView: true},
			}},
			Transition: Transition{Kind: Advance},
		}, nil
	}

	cctx, cancel := context.WithTimeout(ctx, t.CallTimeout)
	defer cancel()

	out, err := t.Caps.Scripts.Run(cctx, code, t.Vars.Snapshot())
	if err != nil {
		capErr := &domain.CapabilityError{
			Capability: "script",
			BlockID:    b.ID,
			Timeout:    cctx.Err() == context.DeadlineExceeded,
			Err:        err,
		}
		return Result{
			Logs: []domain.SessionLog{{
				Status:      domain.LogError,
				Description: "Script execution failed",
				Details:     err.Error(),
			}},
			CapErr:     capErr,
			Transition: Transition{Kind: Branch, Label: LabelError},
		}, nil
	}

	if opts.Variable != "" {
		t.Vars.Set(opts.Variable, out)
	}
	return Result{Transition: Transition{Kind: Branch, Label: LabelSuccess}}, nil
}

// webhookExecutor performs an outbound HTTP call through the injected
// WebhookCaller and routes on success/error.
type webhookExecutor struct{}

type webhookOptions struct {
	Method         string            `mapstructure:"method"`
	URL            string            `mapstructure:"url"`
	Headers        map[string]string `mapstructure:"headers"`
	Body           any               `mapstructure:"body"`
	TimeoutSeconds int               `mapstructure:"timeoutSeconds"`
	Variable       string            `mapstructure:"variable"`
	// IsExecutedOnClient ships the call to the client instead (e.g. to
	// carry browser credentials); the flow continues immediately.
	IsExecutedOnClient bool `mapstructure:"isExecutedOnClient"`
}

func (e *webhookExecutor) Execute(ctx context.Context, b *domain.Block, t *Turn) (Result, error) {
	var opts webhookOptions
	if err := decodeOptions(b, &opts); err != nil {
		return Result{}, err
	}
	if opts.URL == "" {
		return Result{}, &domain.GraphIntegrityError{BlockID: b.ID, Reason: "webhook block missing url"}
	}
	if opts.Method == "" {
		opts.Method = "POST"
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = t.Vars.Resolve(v)
	}
	req := ports.WebhookRequest{
		Method:  opts.Method,
		URL:     t.Vars.Resolve(opts.URL),
		Headers: headers,
		Body:    t.Vars.ResolveAny(opts.Body),
		Timeout: t.CallTimeout,
	}
	if opts.TimeoutSeconds > 0 {
		req.Timeout = time.Duration(opts.TimeoutSeconds) * time.Second
	}

	if opts.IsExecutedOnClient {
		payload := map[string]any{"method": req.Method, "url": req.URL}
		if req.Body != nil {
			payload["body"] = req.Body
		}
		return Result{
			Actions: []domain.ClientSideAction{{
				Type:                  domain.ActionWebhook,
				Webhook:               payload,
				ExpectsDedicatedReply: true,
			}},
			Transition: Transition{Kind: Advance},
		}, nil
	}

	if t.Caps.Webhooks == nil {
		return Result{}, &domain.CapabilityError{Capability: "webhook", BlockID: b.ID, Err: fmt.Errorf("no webhook caller configured")}
	}

	cctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	resp, err := t.Caps.Webhooks.Call(cctx, req)
	if err != nil {
		capErr := &domain.CapabilityError{
			Capability: "webhook",
			BlockID:    b.ID,
			Timeout:    cctx.Err() == context.DeadlineExceeded,
			Err:        err,
		}
		return Result{
			Logs: []domain.SessionLog{{
				Status:      domain.LogError,
				Description: "Webhook call failed",
				Details:     err.Error(),
			}},
			CapErr:     capErr,
			Transition: Transition{Kind: Branch, Label: LabelError},
		}, nil
	}

	if opts.Variable != "" {
		t.Vars.Set(opts.Variable, resp.Body)
	}
	// statusCode is reserved; the validator rejects graphs that declare
	// or bind it themselves.
	t.Vars.Set("statusCode", resp.StatusCode)

	if resp.StatusCode >= 400 {
		return Result{
			Logs: []domain.SessionLog{{
				Status:      domain.LogError,
				Description: fmt.Sprintf("Webhook returned status %d", resp.StatusCode),
			}},
			CapErr: &domain.CapabilityError{
				Capability: "webhook",
				BlockID:    b.ID,
				Err:        fmt.Errorf("status %d", resp.StatusCode),
			},
			Transition: Transition{Kind: Branch, Label: LabelError},
		}, nil
	}

	return Result{
		Logs: []domain.SessionLog{{
			Status:      domain.LogSuccess,
			Description: "Webhook successfully executed",
		}},
		Transition: Transition{Kind: Branch, Label: LabelSuccess},
	}, nil
}

// jumpExecutor moves the cursor to an arbitrary group, enabling loops.
type jumpExecutor struct{}

type jumpOptions struct {
	GroupID string `mapstructure:"groupId"`
	BlockID string `mapstructure:"blockId"`
}

func (e *jumpExecutor) Execute(ctx context.Context, b *domain.Block, t *Turn) (Result, error) {
	var opts jumpOptions
	if err := decodeOptions(b, &opts); err != nil {
		return Result{}, err
	}
	if opts.GroupID == "" {
		return Result{}, &domain.GraphIntegrityError{BlockID: b.ID, Reason: "jump block missing groupId"}
	}
	target, err := t.Index.CursorAt(domain.EdgeTarget{GroupID: opts.GroupID, BlockID: opts.BlockID})
	if err != nil {
		return Result{}, err
	}
	return Result{Transition: Transition{Kind: Goto, Target: &target}}, nil
}

// waitExecutor suspends the session on a timer descriptor. Resumption is
// either a visitor message or a time-elapsed signal from an external
// scheduler; the engine treats both as a plain continue.
type waitExecutor struct{}

type waitOptions struct {
	SecondsToWaitFor int `mapstructure:"secondsToWaitFor"`
	// ShouldPause suspends the turn; otherwise the wait is delegated to
	// the client and the flow continues.
	ShouldPause bool `mapstructure:"shouldPause"`
}

func (e *waitExecutor) Execute(ctx context.Context, b *domain.Block, t *Turn) (Result, error) {
	opts := waitOptions{ShouldPause: true}
	if err := decodeOptions(b, &opts); err != nil {
		return Result{}, err
	}

	action := domain.ClientSideAction{
		Type: domain.ActionWait,
		Wait: &domain.WaitAction{Seconds: opts.SecondsToWaitFor},
	}

	if !opts.ShouldPause {
		return Result{
			Actions:    []domain.ClientSideAction{action},
			Transition: Transition{Kind: Advance},
		}, nil
	}

	return Result{
		Actions: []domain.ClientSideAction{action},
		Transition: Transition{
			Kind: Await,
			Prompt: &domain.InputPrompt{
				ID:   b.ID,
				Type: domain.BlockWait,
				Options: map[string]any{
					"secondsToWaitFor": opts.SecondsToWaitFor,
				},
			},
		},
	}, nil
}

// Resume lets a wait block accept the time-elapsed signal (or any
// message) and move on.
func (e *waitExecutor) Resume(ctx context.Context, b *domain.Block, t *Turn, msg *domain.Message) (Result, error) {
	return Result{Transition: Transition{Kind: Advance}}, nil
}

// redirectExecutor emits a client-side redirect and continues.
type redirectExecutor struct{}

type redirectOptions struct {
	URL      string `mapstructure:"url"`
	IsNewTab bool   `mapstructure:"isNewTab"`
}

func (e *redirectExecutor) Execute(ctx context.Context, b *domain.Block, t *Turn) (Result, error) {
	var opts redirectOptions
	if err := decodeOptions(b, &opts); err != nil {
		return Result{}, err
	}
	if opts.URL == "" {
		return Result{}, &domain.GraphIntegrityError{BlockID: b.ID, Reason: "redirect block missing url"}
	}
	return Result{
		Actions: []domain.ClientSideAction{{
			Type:     domain.ActionRedirect,
			Redirect: &domain.RedirectAction{URL: t.Vars.Resolve(opts.URL), IsNewTab: opts.IsNewTab},
		}},
		Transition: Transition{Kind: Advance},
	}, nil
}

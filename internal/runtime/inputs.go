package runtime

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/chatwalk/chatwalk/pkg/domain"
	"github.com/chatwalk/chatwalk/pkg/ports"
)

// inputExecutor drives every input block kind. On first visit it builds
// the pending-input descriptor and suspends; when the reply arrives the
// engine calls Resume on the same block to validate and normalize it.
type inputExecutor struct{}

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 ().-]{4,18}[0-9]$`)
)

type numberOptions struct {
	Min  *float64 `mapstructure:"min"`
	Max  *float64 `mapstructure:"max"`
	Step *float64 `mapstructure:"step"`
}

type ratingOptions struct {
	Length int `mapstructure:"length"`
}

type choiceOptions struct {
	IsMultipleChoice bool `mapstructure:"isMultipleChoice"`
}

type fileOptions struct {
	IsMultipleAllowed bool     `mapstructure:"isMultipleAllowed"`
	AllowedFileTypes  []string `mapstructure:"allowedFileTypes"`
	MaxFiles          int      `mapstructure:"maxFiles"`
}

type paymentOptions struct {
	Provider  string `mapstructure:"provider"`
	Amount    string `mapstructure:"amount"`
	Currency  string `mapstructure:"currency"`
	PublicKey string `mapstructure:"publicKey"`
}

type textOptions struct {
	AttachmentsEnabled bool `mapstructure:"attachmentsEnabled"`
	AudioClipEnabled   bool `mapstructure:"audioClipEnabled"`
}

func decodeOptions(b *domain.Block, out any) error {
	if b.Options == nil {
		return nil
	}
	if err := mapstructure.WeakDecode(b.Options, out); err != nil {
		return &domain.GraphIntegrityError{BlockID: b.ID, Reason: fmt.Sprintf("bad %s options: %v", b.Type, err)}
	}
	return nil
}

// Execute renders the prompt and suspends.
func (e *inputExecutor) Execute(ctx context.Context, b *domain.Block, t *Turn) (Result, error) {
	res := Result{}

	prompt := &domain.InputPrompt{
		ID:    b.ID,
		Type:  b.Type,
		Items: resolveItems(b.Items, t.Vars),
	}
	if b.Options != nil {
		prompt.Options, _ = t.Vars.ResolveAny(b.Options).(map[string]any)
	}

	// Optional prompt bubble declared on the block itself.
	if text, ok := b.Content["markdown"].(string); ok && text != "" {
		res.Messages = append(res.Messages, domain.ChatMessage{
			ID:      uuid.NewString(),
			Type:    domain.BlockText,
			Content: map[string]any{"type": "markdown", "markdown": t.Vars.Resolve(text)},
		})
	}

	// Prefill from the bound variable when it already has a value.
	if name := b.VariableName(); name != "" {
		if val, ok := t.Vars.Get(name); ok {
			prompt.Prefilled = Stringify(val)
		}
	}

	if b.Type == domain.BlockPaymentInput {
		var opts paymentOptions
		if err := decodeOptions(b, &opts); err != nil {
			return Result{}, err
		}
		req := &domain.PaymentRequest{
			Provider:  opts.Provider,
			Amount:    t.Vars.Resolve(opts.Amount),
			Currency:  opts.Currency,
			PublicKey: opts.PublicKey,
		}
		prompt.RuntimeOptions = map[string]any{
			"amountLabel": req.Amount + " " + req.Currency,
		}
		res.Actions = append(res.Actions, domain.ClientSideAction{
			Type:                  domain.ActionPaymentRequest,
			Payment:               req,
			ExpectsDedicatedReply: true,
		})
	}

	res.Transition = Transition{Kind: Await, Prompt: prompt}
	return res, nil
}

// Resume validates the visitor's reply against the block's declared
// shape. On success the bound variable is written and the accept edge is
// followed; on failure the engine re-prompts or follows a declared
// retry edge.
func (e *inputExecutor) Resume(ctx context.Context, b *domain.Block, t *Turn, msg *domain.Message) (Result, error) {
	value, normalized, err := e.validate(ctx, b, t, msg)
	if err != nil {
		return Result{}, err
	}

	if name := b.VariableName(); name != "" {
		t.Vars.Set(name, value)
	}

	res := Result{
		NormalizedReply: normalized,
		Transition:      Transition{Kind: Advance},
	}

	// Choice-like blocks may route per selected item.
	if label := itemEdgeLabel(b, normalized); label != "" {
		res.Transition = Transition{Kind: Branch, Label: label}
	}
	return res, nil
}

func (e *inputExecutor) validate(ctx context.Context, b *domain.Block, t *Turn, msg *domain.Message) (value any, normalized string, err error) {
	if msg == nil {
		return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: "a reply is required"}
	}
	raw := strings.TrimSpace(msg.Text)

	switch b.Type {
	case domain.BlockTextInput:
		var opts textOptions
		if err := decodeOptions(b, &opts); err != nil {
			return nil, "", err
		}
		if msg.Type == "audio" {
			if !opts.AudioClipEnabled {
				return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: "audio replies are not enabled"}
			}
			return msg.URL, msg.URL, nil
		}
		if len(msg.AttachedFileURLs) > 0 && !opts.AttachmentsEnabled {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: "attachments are not enabled"}
		}
		if raw == "" {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: "a text reply is required"}
		}
		return raw, raw, nil

	case domain.BlockEmailInput:
		addr := strings.ToLower(raw)
		if !emailRe.MatchString(addr) {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: "not a valid email address"}
		}
		return addr, addr, nil

	case domain.BlockURLInput:
		u, parseErr := url.Parse(raw)
		if parseErr != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: "not a valid http(s) URL"}
		}
		return u.String(), u.String(), nil

	case domain.BlockPhoneInput:
		if !phoneRe.MatchString(raw) {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: "not a valid phone number"}
		}
		return raw, raw, nil

	case domain.BlockNumberInput:
		var opts numberOptions
		if err := decodeOptions(b, &opts); err != nil {
			return nil, "", err
		}
		n, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: "not a finite number"}
		}
		if opts.Min != nil && n < *opts.Min {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: fmt.Sprintf("must be at least %v", *opts.Min)}
		}
		if opts.Max != nil && n > *opts.Max {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: fmt.Sprintf("must be at most %v", *opts.Max)}
		}
		return n, Stringify(n), nil

	case domain.BlockDateInput:
		day, parseErr := parseDateReply(raw, t.Now().UTC())
		if parseErr != nil {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: parseErr.Error()}
		}
		norm := day.Format("2006-01-02")
		return norm, norm, nil

	case domain.BlockTimeInput:
		tm, parseErr := parseTimeReply(raw, t.Now().UTC())
		if parseErr != nil {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: parseErr.Error()}
		}
		norm := tm.Format("15:04")
		return norm, norm, nil

	case domain.BlockRatingInput:
		opts := ratingOptions{Length: 10}
		if err := decodeOptions(b, &opts); err != nil {
			return nil, "", err
		}
		n, parseErr := strconv.Atoi(raw)
		if parseErr != nil || n < 1 || n > opts.Length {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: fmt.Sprintf("rating must be between 1 and %d", opts.Length)}
		}
		return n, strconv.Itoa(n), nil

	case domain.BlockChoiceInput, domain.BlockPictureChoiceInput, domain.BlockCardsInput:
		var opts choiceOptions
		if err := decodeOptions(b, &opts); err != nil {
			return nil, "", err
		}
		if opts.IsMultipleChoice {
			parts := strings.Split(raw, ",")
			picked := make([]string, 0, len(parts))
			for _, p := range parts {
				item := matchItem(b, t.Vars, strings.TrimSpace(p))
				if item == nil {
					return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: fmt.Sprintf("%q is not one of the options", strings.TrimSpace(p))}
				}
				picked = append(picked, itemValue(item, t.Vars))
			}
			if len(picked) == 0 {
				return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: "pick at least one option"}
			}
			return picked, strings.Join(picked, ", "), nil
		}
		item := matchItem(b, t.Vars, raw)
		if item == nil {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: fmt.Sprintf("%q is not one of the options", raw)}
		}
		val := itemValue(item, t.Vars)
		return val, val, nil

	case domain.BlockFileInput:
		var opts fileOptions
		if err := decodeOptions(b, &opts); err != nil {
			return nil, "", err
		}
		urls := msg.AttachedFileURLs
		if len(urls) == 0 && raw != "" {
			urls = []string{raw}
		}
		if len(urls) == 0 {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: "a file is required"}
		}
		if !opts.IsMultipleAllowed && len(urls) > 1 {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: "only one file is allowed"}
		}
		if opts.MaxFiles > 0 && len(urls) > opts.MaxFiles {
			return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: fmt.Sprintf("at most %d files are allowed", opts.MaxFiles)}
		}
		for _, u := range urls {
			if !allowedFileType(u, opts.AllowedFileTypes) {
				return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: fmt.Sprintf("file type of %q is not allowed", u)}
			}
		}
		if opts.IsMultipleAllowed {
			return urls, strings.Join(urls, ", "), nil
		}
		return urls[0], urls[0], nil

	case domain.BlockPaymentInput:
		return e.confirmPayment(ctx, b, t, raw)
	}

	return nil, "", &domain.GraphIntegrityError{BlockID: b.ID, Reason: fmt.Sprintf("block type %q cannot receive a reply", b.Type)}
}

// confirmPayment checks the token shape and asks the injected confirmer
// whether the client-side capture went through. The engine never calls
// the payment provider to capture.
func (e *inputExecutor) confirmPayment(ctx context.Context, b *domain.Block, t *Turn, token string) (any, string, error) {
	if token == "" || len(token) < 8 {
		return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: "missing or malformed payment confirmation token"}
	}
	if t.Caps.Payments == nil {
		return nil, "", &domain.CapabilityError{Capability: "payment", BlockID: b.ID, Err: fmt.Errorf("no payment confirmer configured")}
	}

	cctx, cancel := context.WithTimeout(ctx, t.CallTimeout)
	defer cancel()

	status, err := t.Caps.Payments.Confirm(cctx, token)
	if err != nil {
		return nil, "", &domain.CapabilityError{Capability: "payment", BlockID: b.ID, Timeout: cctx.Err() == context.DeadlineExceeded, Err: err}
	}
	switch status {
	case ports.PaymentConfirmed:
		return "Success", "Success", nil
	case ports.PaymentPending:
		return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: "payment is still pending"}
	default:
		return nil, "", &domain.ValidationError{BlockID: b.ID, Reason: "payment failed"}
	}
}

func resolveItems(items []domain.BlockItem, vars *Vars) []domain.BlockItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]domain.BlockItem, len(items))
	for i, it := range items {
		it.Content = vars.Resolve(it.Content)
		it.Value = vars.Resolve(it.Value)
		out[i] = it
	}
	return out
}

func matchItem(b *domain.Block, vars *Vars, reply string) *domain.BlockItem {
	for i := range b.Items {
		it := &b.Items[i]
		content := vars.Resolve(it.Content)
		value := vars.Resolve(it.Value)
		if strings.EqualFold(reply, content) || (value != "" && strings.EqualFold(reply, value)) || reply == it.ID {
			return it
		}
	}
	return nil
}

func itemValue(it *domain.BlockItem, vars *Vars) string {
	if it.Value != "" {
		return vars.Resolve(it.Value)
	}
	return vars.Resolve(it.Content)
}

func itemEdgeLabel(b *domain.Block, picked string) string {
	for i := range b.Items {
		it := &b.Items[i]
		if it.EdgeLabel != "" && (strings.EqualFold(picked, it.Content) || strings.EqualFold(picked, it.Value)) {
			return it.EdgeLabel
		}
	}
	return ""
}

func allowedFileType(fileURL string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileURL)), ".")
	for _, a := range allowed {
		if strings.TrimPrefix(strings.ToLower(a), ".") == ext {
			return true
		}
	}
	return false
}

// parseDateReply accepts ISO dates plus the relative expressions
// visitors actually type, evaluated against the session clock in UTC.
func parseDateReply(raw string, now time.Time) (time.Time, error) {
	switch strings.ToLower(raw) {
	case "today":
		return now, nil
	case "tomorrow":
		return now.AddDate(0, 0, 1), nil
	case "yesterday":
		return now.AddDate(0, 0, -1), nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "02/01/2006", "01/02/2006"} {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a recognizable date", raw)
}

func parseTimeReply(raw string, now time.Time) (time.Time, error) {
	if strings.EqualFold(raw, "now") {
		return now, nil
	}
	for _, layout := range []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"} {
		if tm, err := time.Parse(layout, raw); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a recognizable time", raw)
}

package runtime

import (
	"github.com/chatwalk/chatwalk/pkg/domain"
)

// accumulator collects everything the transitions of one turn emitted.
// Order is traversal order; nothing is deduplicated or reordered.
type accumulator struct {
	messages   []domain.ChatMessage
	actions    []domain.ClientSideAction
	logs       []domain.SessionLog
	prompt     *domain.InputPrompt
	lastFormat string
}

func (a *accumulator) absorb(res Result) {
	a.messages = append(a.messages, res.Messages...)
	a.actions = append(a.actions, res.Actions...)
	a.logs = append(a.logs, res.Logs...)
	if res.Transition.Kind == Await {
		a.prompt = res.Transition.Prompt
	}
	if res.NormalizedReply != "" {
		a.lastFormat = res.NormalizedReply
	}
}

func (a *accumulator) log(status, description, details string) {
	a.logs = append(a.logs, domain.SessionLog{Status: status, Description: description, Details: details})
}

// assemble builds the immutable Reply for the turn. progress and theme
// are optional and attached only when computed.
func (a *accumulator) assemble(progress *float64, theme *domain.ThemeDelta) domain.Reply {
	msgs := a.messages
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return domain.Reply{
		Messages:         msgs,
		Input:            a.prompt,
		ClientActions:    a.actions,
		Logs:             a.logs,
		Progress:         progress,
		DynamicTheme:     theme,
		LastMessageNewFt: a.lastFormat,
	}
}

// themeDelta re-resolves the dynamic theme values against the current
// variables and reports what changed since the stored resolution. The
// new resolution is written back into the state for the next turn.
func themeDelta(state *domain.SessionState, vars *Vars) *domain.ThemeDelta {
	theme := state.Graph.Theme
	resolved := map[string]string{
		"hostAvatarUrl":  vars.Resolve(theme.HostAvatarURL),
		"guestAvatarUrl": vars.Resolve(theme.GuestAvatarURL),
		"backgroundUrl":  vars.Resolve(theme.BackgroundURL),
	}

	prev := state.ResolvedTheme
	var d domain.ThemeDelta
	changed := false
	apply := func(dst **string, key string) {
		val := resolved[key]
		if prev[key] == val {
			return
		}
		v := val
		*dst = &v
		changed = true
	}
	apply(&d.HostAvatarURL, "hostAvatarUrl")
	apply(&d.GuestAvatarURL, "guestAvatarUrl")
	apply(&d.BackgroundURL, "backgroundUrl")

	state.ResolvedTheme = resolved
	if !changed {
		return nil
	}
	return &d
}

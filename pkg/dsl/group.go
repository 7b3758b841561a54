package dsl

import "github.com/chatwalk/chatwalk/pkg/domain"

// GroupBuilder appends blocks to one group and wires its outgoing edges.
type GroupBuilder struct {
	group   domain.Group
	builder *Builder
}

// ID returns the group identifier.
func (g *GroupBuilder) ID() string {
	return g.group.ID
}

// Title sets the display title of the group.
func (g *GroupBuilder) Title(title string) *GroupBuilder {
	g.group.Title = title
	return g
}

func (g *GroupBuilder) append(block domain.Block) *GroupBuilder {
	if block.ID == "" {
		block.ID = g.builder.nextID(g.group.ID)
	}
	g.group.Blocks = append(g.group.Blocks, block)
	return g
}

// Text appends a text bubble. The text may contain {{variable}} templates.
func (g *GroupBuilder) Text(markdown string) *GroupBuilder {
	return g.append(domain.Block{
		Type:    domain.BlockText,
		Content: map[string]any{"type": "markdown", "markdown": markdown},
	})
}

// Image appends an image bubble.
func (g *GroupBuilder) Image(url string) *GroupBuilder {
	return g.append(domain.Block{
		Type:    domain.BlockImage,
		Content: map[string]any{"url": url},
	})
}

// Video appends a video bubble.
func (g *GroupBuilder) Video(url string) *GroupBuilder {
	return g.append(domain.Block{
		Type:    domain.BlockVideo,
		Content: map[string]any{"url": url},
	})
}

// Audio appends an audio bubble.
func (g *GroupBuilder) Audio(url string) *GroupBuilder {
	return g.append(domain.Block{
		Type:    domain.BlockAudio,
		Content: map[string]any{"url": url},
	})
}

// Input appends an input block of the given type, binding the reply to
// the named variable. Extra options merge into the block options map.
func (g *GroupBuilder) Input(t domain.BlockType, variable string, opts ...map[string]any) *GroupBuilder {
	options := map[string]any{"variable": variable}
	for _, o := range opts {
		for k, v := range o {
			options[k] = v
		}
	}
	return g.append(domain.Block{Type: t, Options: options})
}

// Ask appends a free-text input bound to the named variable.
func (g *GroupBuilder) Ask(variable string) *GroupBuilder {
	return g.Input(domain.BlockTextInput, variable)
}

// Email appends an email input bound to the named variable.
func (g *GroupBuilder) Email(variable string) *GroupBuilder {
	return g.Input(domain.BlockEmailInput, variable)
}

// Number appends a number input bound to the named variable.
func (g *GroupBuilder) Number(variable string) *GroupBuilder {
	return g.Input(domain.BlockNumberInput, variable)
}

// Rating appends a rating input with the given scale length.
func (g *GroupBuilder) Rating(variable string, length int) *GroupBuilder {
	return g.Input(domain.BlockRatingInput, variable, map[string]any{"length": length})
}

// Choice appends a single-choice input. Each choice becomes one item;
// the visitor's pick is stored in the named variable.
func (g *GroupBuilder) Choice(variable string, choices ...string) *GroupBuilder {
	items := make([]domain.BlockItem, 0, len(choices))
	for _, c := range choices {
		items = append(items, domain.BlockItem{
			ID:      g.builder.nextID("item"),
			Content: c,
		})
	}
	return g.append(domain.Block{
		Type:    domain.BlockChoiceInput,
		Options: map[string]any{"variable": variable},
		Items:   items,
	})
}

// Condition appends a condition block evaluating the expression against
// the session variables. Wire outcomes with Branch("true", ...) and
// Branch("false", ...).
func (g *GroupBuilder) Condition(expression string) *GroupBuilder {
	return g.append(domain.Block{
		Type:    domain.BlockCondition,
		Options: map[string]any{"expression": expression},
	})
}

// Set appends a set-variable block assigning the expression result to
// the named variable.
func (g *GroupBuilder) Set(variable, expression string) *GroupBuilder {
	return g.append(domain.Block{
		Type:    domain.BlockSetVariable,
		Options: map[string]any{"variable": variable, "expression": expression},
	})
}

// Script appends a script block. Code is resolved by the engine's
// ScriptRunner; the result lands in the named variable when non-empty.
func (g *GroupBuilder) Script(code, variable string) *GroupBuilder {
	return g.append(domain.Block{
		Type:    domain.BlockScript,
		Options: map[string]any{"code": code, "variable": variable},
	})
}

// Webhook appends a webhook block. The response body is stored in the
// named variable when it is non-empty.
func (g *GroupBuilder) Webhook(method, url, variable string) *GroupBuilder {
	return g.append(domain.Block{
		Type: domain.BlockWebhook,
		Options: map[string]any{
			"method":   method,
			"url":      url,
			"variable": variable,
		},
	})
}

// Jump appends an unconditional jump to the given group.
func (g *GroupBuilder) Jump(groupID string) *GroupBuilder {
	return g.append(domain.Block{
		Type:    domain.BlockJump,
		Options: map[string]any{"groupId": groupID},
	})
}

// Redirect appends a redirect block sending the visitor to the URL.
func (g *GroupBuilder) Redirect(url string) *GroupBuilder {
	return g.append(domain.Block{
		Type:    domain.BlockRedirect,
		Options: map[string]any{"url": url},
	})
}

// Go connects the last appended block to the given group with a default
// edge. Called on an empty group it wires the group-level exit instead.
func (g *GroupBuilder) Go(groupID string) *GroupBuilder {
	return g.Branch("", groupID)
}

// Branch connects the last appended block to the given group with a
// labeled edge ("true", "false", "success", "error", "retry", or an
// item's edge label).
func (g *GroupBuilder) Branch(label, groupID string) *GroupBuilder {
	from := domain.EdgeSource{GroupID: g.group.ID, Label: label}
	if n := len(g.group.Blocks); n > 0 {
		from.BlockID = g.group.Blocks[n-1].ID
	}
	g.builder.addEdge(from, domain.EdgeTarget{GroupID: groupID})
	return g
}

// Exit wires the group-level fall-through edge, taken when execution
// runs past the last block of the group.
func (g *GroupBuilder) Exit(groupID string) *GroupBuilder {
	g.builder.addEdge(
		domain.EdgeSource{GroupID: g.group.ID},
		domain.EdgeTarget{GroupID: groupID},
	)
	return g
}

// Group starts (or resumes) another group on the parent builder.
func (g *GroupBuilder) Group(id string) *GroupBuilder {
	return g.builder.Group(id)
}

// Build delegates to the parent builder.
func (g *GroupBuilder) Build() (*domain.Graph, error) {
	return g.builder.Build()
}

// MustBuild delegates to the parent builder.
func (g *GroupBuilder) MustBuild() *domain.Graph {
	return g.builder.MustBuild()
}

package dsl

import (
	"fmt"

	"github.com/chatwalk/chatwalk/internal/compiler"
	"github.com/chatwalk/chatwalk/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	graph  domain.Graph
	groups map[string]*GroupBuilder
	order  []string
	serial int
}

// New creates a graph builder for a bot with the given ID.
func New(id string) *Builder {
	return &Builder{
		graph:  domain.Graph{ID: id},
		groups: make(map[string]*GroupBuilder),
	}
}

// Settings overrides the bot settings.
func (b *Builder) Settings(s domain.Settings) *Builder {
	b.graph.Settings = s
	return b
}

// Theme sets the bot theme.
func (b *Builder) Theme(t domain.Theme) *Builder {
	b.graph.Theme = t
	return b
}

// Variable declares a session variable, optionally with a default value.
func (b *Builder) Variable(name string, defaultValue any) *Builder {
	b.graph.Variables = append(b.graph.Variables, domain.Variable{
		Name:    name,
		Default: defaultValue,
	})
	return b
}

// StartAt declares the start event targeting the given group.
func (b *Builder) StartAt(groupID string) *Builder {
	b.graph.Events = append(b.graph.Events, domain.Event{
		ID:     b.nextID("ev"),
		Type:   domain.EventStart,
		Target: domain.EdgeTarget{GroupID: groupID},
	})
	return b
}

// Command declares a command event: sending the command message jumps
// the session to the given group.
func (b *Builder) Command(command, groupID string) *Builder {
	b.graph.Events = append(b.graph.Events, domain.Event{
		ID:      b.nextID("ev"),
		Type:    domain.EventCommand,
		Command: command,
		Target:  domain.EdgeTarget{GroupID: groupID},
	})
	return b
}

// Group creates (or returns) the group with the given ID. Blocks are
// appended in call order.
func (b *Builder) Group(id string) *GroupBuilder {
	if gb, ok := b.groups[id]; ok {
		return gb
	}
	gb := &GroupBuilder{
		group:   domain.Group{ID: id},
		builder: b,
	}
	b.groups[id] = gb
	b.order = append(b.order, id)
	return gb
}

// Build assembles and validates the graph.
func (b *Builder) Build() (*domain.Graph, error) {
	g := b.graph
	g.Groups = make([]domain.Group, 0, len(b.order))
	for _, id := range b.order {
		g.Groups = append(g.Groups, b.groups[id].group)
	}
	if err := compiler.Validate(&g); err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	return &g, nil
}

// MustBuild is Build for static graphs known to be well-formed.
func (b *Builder) MustBuild() *domain.Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

func (b *Builder) nextID(prefix string) string {
	b.serial++
	return fmt.Sprintf("%s-%d", prefix, b.serial)
}

func (b *Builder) addEdge(from domain.EdgeSource, to domain.EdgeTarget) {
	b.graph.Edges = append(b.graph.Edges, domain.Edge{
		ID:   b.nextID("edge"),
		From: from,
		To:   to,
	})
}

package runtime

import (
	"fmt"

	"github.com/chatwalk/chatwalk/pkg/domain"
)

// Index is the compiled, query-friendly view of one graph snapshot.
// All lookups are map-based; the interpreter never scans the raw slices
// after compilation. The underlying graph is treated as immutable.
type Index struct {
	graph  *Graph
	groups map[string]*domain.Group
	// edges keyed by source group, then source block ("" for group exits),
	// in declaration order so "first declared match wins" holds.
	edges  map[string]map[string][]*domain.Edge
	events map[string]*domain.Event // by ID
	starts []*domain.Event
}

// Graph aliases the domain type locally for brevity.
type Graph = domain.Graph

// NewIndex compiles lookup tables over a validated graph.
func NewIndex(g *Graph) *Index {
	idx := &Index{
		graph:  g,
		groups: make(map[string]*domain.Group, len(g.Groups)),
		edges:  make(map[string]map[string][]*domain.Edge),
		events: make(map[string]*domain.Event, len(g.Events)),
	}
	for i := range g.Groups {
		idx.groups[g.Groups[i].ID] = &g.Groups[i]
	}
	for i := range g.Edges {
		e := &g.Edges[i]
		byBlock := idx.edges[e.From.GroupID]
		if byBlock == nil {
			byBlock = make(map[string][]*domain.Edge)
			idx.edges[e.From.GroupID] = byBlock
		}
		byBlock[e.From.BlockID] = append(byBlock[e.From.BlockID], e)
	}
	for i := range g.Events {
		ev := &g.Events[i]
		idx.events[ev.ID] = ev
		if ev.Type == domain.EventStart {
			idx.starts = append(idx.starts, ev)
		}
	}
	return idx
}

// Graph returns the underlying snapshot.
func (x *Index) Graph() *Graph { return x.graph }

// Group resolves a group by ID. A miss is a graph integrity failure,
// never silently skipped.
func (x *Index) Group(id string) (*domain.Group, error) {
	g, ok := x.groups[id]
	if !ok {
		return nil, &domain.GraphIntegrityError{GroupID: id, Reason: "group not found"}
	}
	return g, nil
}

// Block resolves the block a cursor points at.
func (x *Index) Block(c domain.Cursor) (*domain.Block, error) {
	g, err := x.Group(c.GroupID)
	if err != nil {
		return nil, err
	}
	if c.BlockIndex < 0 || c.BlockIndex >= len(g.Blocks) {
		return nil, &domain.GraphIntegrityError{GroupID: c.GroupID, Reason: fmt.Sprintf("block index %d out of range", c.BlockIndex)}
	}
	return &g.Blocks[c.BlockIndex], nil
}

// OutgoingEdge picks the edge leaving the given block for a branch
// label: the first declared edge with the matching label wins; the
// unlabeled edge is the fallback. Returns nil when neither exists.
// Duplicate labels were rejected at compile time.
func (x *Index) OutgoingEdge(groupID, blockID, label string) *domain.Edge {
	candidates := x.edges[groupID][blockID]
	for _, e := range candidates {
		if e.From.Label == label {
			return e
		}
	}
	if label != "" {
		for _, e := range candidates {
			if e.From.Label == "" {
				return e
			}
		}
	}
	return nil
}

// LabeledEdge returns the edge with exactly the given label, with no
// default fallback. Used for error branches, which must be declared.
func (x *Index) LabeledEdge(groupID, blockID, label string) *domain.Edge {
	for _, e := range x.edges[groupID][blockID] {
		if e.From.Label == label {
			return e
		}
	}
	return nil
}

// GroupExit returns the group-level outgoing edge, if any.
func (x *Index) GroupExit(groupID string) *domain.Edge {
	for _, e := range x.edges[groupID][""] {
		if e.From.Label == "" {
			return e
		}
	}
	return nil
}

// CursorAt converts an edge target into a cursor, resolving a target
// block ID into its index within the group.
func (x *Index) CursorAt(t domain.EdgeTarget) (domain.Cursor, error) {
	g, err := x.Group(t.GroupID)
	if err != nil {
		return domain.Cursor{}, err
	}
	if t.BlockID == "" {
		return domain.Cursor{GroupID: g.ID, BlockIndex: 0}, nil
	}
	for i := range g.Blocks {
		if g.Blocks[i].ID == t.BlockID {
			return domain.Cursor{GroupID: g.ID, BlockIndex: i}, nil
		}
	}
	return domain.Cursor{}, &domain.GraphIntegrityError{GroupID: t.GroupID, BlockID: t.BlockID, Reason: "target block not found in group"}
}

// Event resolves an event by ID.
func (x *Index) Event(id string) (*domain.Event, error) {
	ev, ok := x.events[id]
	if !ok {
		return nil, &domain.GraphIntegrityError{Reason: fmt.Sprintf("event %s not found", id)}
	}
	return ev, nil
}

// CommandEvent finds the command event matching a visitor command.
func (x *Index) CommandEvent(command string) *domain.Event {
	for i := range x.graph.Events {
		ev := &x.graph.Events[i]
		if ev.Type == domain.EventCommand && ev.Command == command {
			return ev
		}
	}
	return nil
}

// EntryCursor resolves where execution starts: an explicit startFrom
// override, else the declared start event, else the first group.
func (x *Index) EntryCursor(from *domain.StartFrom) (domain.Cursor, error) {
	if from != nil {
		switch from.Type {
		case "group":
			return x.CursorAt(domain.EdgeTarget{GroupID: from.GroupID})
		case "event":
			ev, err := x.Event(from.EventID)
			if err != nil {
				return domain.Cursor{}, err
			}
			return x.CursorAt(ev.Target)
		default:
			return domain.Cursor{}, &domain.GraphIntegrityError{Reason: fmt.Sprintf("unknown startFrom type %q", from.Type)}
		}
	}
	if len(x.starts) > 0 {
		return x.CursorAt(x.starts[0].Target)
	}
	return domain.Cursor{GroupID: x.graph.Groups[0].ID, BlockIndex: 0}, nil
}

package compiler

import (
	"fmt"

	"github.com/chatwalk/chatwalk/pkg/domain"
)

// reservedVariables are names the runtime writes on its own (the webhook
// executor stores the last response status under "statusCode"). Authors
// may read them, never declare or bind them.
var reservedVariables = map[string]bool{
	"statusCode": true,
}

// Validate checks the structural invariants of a graph:
//
//   - the graph has at least one group
//   - group and block IDs are unique within the graph
//   - every edge source references an existing group/block
//   - every edge target references an existing group (and block, if set)
//   - no two edges leave the same source with the same label
//   - at most one default (unlabeled) edge per source
//   - event targets reference existing groups
//   - no declaration or block binding uses a reserved variable name
//
// Violations are reported as *domain.GraphIntegrityError so they surface
// as fatal rather than being silently skipped at interpretation time.
func Validate(g *domain.Graph) error {
	if len(g.Groups) == 0 {
		return &domain.GraphIntegrityError{Reason: "graph has no groups"}
	}

	groups := make(map[string]*domain.Group, len(g.Groups))
	blocks := make(map[string]string) // block ID -> owning group ID
	for i := range g.Groups {
		grp := &g.Groups[i]
		if grp.ID == "" {
			return &domain.GraphIntegrityError{Reason: "group missing id"}
		}
		if _, dup := groups[grp.ID]; dup {
			return &domain.GraphIntegrityError{GroupID: grp.ID, Reason: "duplicate group id"}
		}
		groups[grp.ID] = grp

		for j := range grp.Blocks {
			b := &grp.Blocks[j]
			if b.ID == "" {
				return &domain.GraphIntegrityError{GroupID: grp.ID, Reason: fmt.Sprintf("block #%d missing id", j)}
			}
			if owner, dup := blocks[b.ID]; dup {
				return &domain.GraphIntegrityError{GroupID: owner, BlockID: b.ID, Reason: "duplicate block id"}
			}
			if domain.KindOf(b.Type) == domain.KindUnknown {
				return &domain.GraphIntegrityError{GroupID: grp.ID, BlockID: b.ID, Reason: fmt.Sprintf("unknown block type %q", b.Type)}
			}
			if name := b.VariableName(); reservedVariables[name] {
				return &domain.GraphIntegrityError{GroupID: grp.ID, BlockID: b.ID, Reason: fmt.Sprintf("variable name %q is reserved", name)}
			}
			blocks[b.ID] = grp.ID
		}
	}

	// source (group/block) -> set of labels seen, to reject ambiguous
	// duplicate labels instead of guessing a precedence.
	type sourceKey struct{ groupID, blockID string }
	labels := make(map[sourceKey]map[string]bool)

	for _, e := range g.Edges {
		src, ok := groups[e.From.GroupID]
		if !ok {
			return &domain.GraphIntegrityError{GroupID: e.From.GroupID, Reason: fmt.Sprintf("edge %s leaves unknown group", e.ID)}
		}
		if e.From.BlockID != "" {
			if owner, ok := blocks[e.From.BlockID]; !ok || owner != src.ID {
				return &domain.GraphIntegrityError{GroupID: src.ID, BlockID: e.From.BlockID, Reason: fmt.Sprintf("edge %s leaves unknown block", e.ID)}
			}
		}
		if _, ok := groups[e.To.GroupID]; !ok {
			return &domain.GraphIntegrityError{GroupID: e.To.GroupID, Reason: fmt.Sprintf("edge %s targets unknown group", e.ID)}
		}
		if e.To.BlockID != "" {
			if owner, ok := blocks[e.To.BlockID]; !ok || owner != e.To.GroupID {
				return &domain.GraphIntegrityError{GroupID: e.To.GroupID, BlockID: e.To.BlockID, Reason: fmt.Sprintf("edge %s targets unknown block", e.ID)}
			}
		}

		key := sourceKey{e.From.GroupID, e.From.BlockID}
		if labels[key] == nil {
			labels[key] = make(map[string]bool)
		}
		if labels[key][e.From.Label] {
			reason := fmt.Sprintf("duplicate branch label %q", e.From.Label)
			if e.From.Label == "" {
				reason = "multiple default edges from the same source"
			}
			return &domain.GraphIntegrityError{GroupID: e.From.GroupID, BlockID: e.From.BlockID, Reason: reason}
		}
		labels[key][e.From.Label] = true
	}

	for _, ev := range g.Events {
		if ev.Type != domain.EventStart && ev.Type != domain.EventCommand {
			return &domain.GraphIntegrityError{Reason: fmt.Sprintf("event %s has unknown type %q", ev.ID, ev.Type)}
		}
		if _, ok := groups[ev.Target.GroupID]; !ok {
			return &domain.GraphIntegrityError{GroupID: ev.Target.GroupID, Reason: fmt.Sprintf("event %s targets unknown group", ev.ID)}
		}
	}

	seenVars := make(map[string]bool, len(g.Variables))
	for _, v := range g.Variables {
		if v.Name == "" {
			return &domain.GraphIntegrityError{Reason: "variable declaration missing name"}
		}
		if seenVars[v.Name] {
			return &domain.GraphIntegrityError{Reason: fmt.Sprintf("duplicate variable declaration %q", v.Name)}
		}
		if reservedVariables[v.Name] {
			return &domain.GraphIntegrityError{Reason: fmt.Sprintf("variable name %q is reserved", v.Name)}
		}
		seenVars[v.Name] = true
	}

	return nil
}

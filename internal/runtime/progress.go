package runtime

import (
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/chatwalk/chatwalk/pkg/domain"
)

// noTerminalPath marks groups from which no terminal group is reachable;
// progress is undefined there and omitted from the reply.
const noTerminalPath = -1

// progressCache memoizes the longest-remaining-path metric per graph
// version. Keyed by graph identity so independent sessions on the same
// published version share one computation.
type progressCache struct {
	mu    sync.Mutex
	paths map[string]map[string]int // graph key -> group ID -> remaining
}

func newProgressCache() *progressCache {
	return &progressCache{paths: make(map[string]map[string]int)}
}

func graphKey(g *domain.Graph) string {
	return g.ID + "@" + g.Version
}

// remaining returns the longest remaining block count starting at the
// given group (inclusive of its own blocks), or noTerminalPath.
func (pc *progressCache) remaining(idx *Index, groupID string) int {
	key := graphKey(idx.Graph())

	pc.mu.Lock()
	byGroup, ok := pc.paths[key]
	pc.mu.Unlock()
	if !ok {
		byGroup = computeRemaining(idx)
		pc.mu.Lock()
		pc.paths[key] = byGroup
		pc.mu.Unlock()
	}

	if r, ok := byGroup[groupID]; ok {
		return r
	}
	return noTerminalPath
}

// Progress computes the 0..100 advancement metric for a cursor. The
// second return is false when no terminal-reachable path exists, which
// callers must treat as "omit", not zero.
func (pc *progressCache) Progress(idx *Index, cursor domain.Cursor, stepsCompleted int, awaiting bool) (float64, bool) {
	if cursor.Zero() {
		return 100, true
	}
	remaining := pc.remaining(idx, cursor.GroupID)
	if remaining == noTerminalPath {
		return 0, false
	}
	// Discount the blocks of the current group already behind the cursor.
	// A suspended input already executed (it is in stepsCompleted), so it
	// counts as behind too.
	behind := cursor.BlockIndex
	if awaiting {
		behind++
	}
	remaining -= behind
	if remaining < 0 {
		remaining = 0
	}
	if stepsCompleted == 0 && remaining == 0 {
		return 100, true
	}
	return 100 * float64(stepsCompleted) / float64(stepsCompleted+remaining), true
}

// computeRemaining runs one depth-first search per group over the group
// graph. A path revisiting a group it already passed through is cut,
// which bounds the exploration in the presence of loops.
func computeRemaining(idx *Index) map[string]int {
	g := idx.Graph()
	out := make(map[string]int, len(g.Groups))
	for i := range g.Groups {
		visited := make(map[string]bool)
		out[g.Groups[i].ID] = longestFrom(idx, g.Groups[i].ID, visited)
	}
	return out
}

func longestFrom(idx *Index, groupID string, visited map[string]bool) int {
	if visited[groupID] {
		return noTerminalPath
	}
	visited[groupID] = true
	defer delete(visited, groupID)

	group, err := idx.Group(groupID)
	if err != nil {
		return noTerminalPath
	}

	succs := successors(idx, group)
	if len(succs) == 0 {
		return len(group.Blocks)
	}

	best := noTerminalPath
	for _, next := range succs {
		if r := longestFrom(idx, next, visited); r != noTerminalPath && r > best {
			best = r
		}
	}
	if best == noTerminalPath {
		// All paths loop back; a group that can also simply run off its
		// last block without a group exit still terminates there.
		if idx.GroupExit(groupID) == nil {
			return len(group.Blocks)
		}
		return noTerminalPath
	}
	return len(group.Blocks) + best
}

// successors lists every group reachable in one hop: block edges, the
// group exit, and jump-block targets.
func successors(idx *Index, group *domain.Group) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, e := range idx.Graph().Edges {
		if e.From.GroupID == group.ID {
			add(e.To.GroupID)
		}
	}
	for i := range group.Blocks {
		b := &group.Blocks[i]
		if b.Type != domain.BlockJump {
			continue
		}
		var opts jumpOptions
		if err := mapstructure.WeakDecode(b.Options, &opts); err == nil {
			add(opts.GroupID)
		}
	}
	return out
}

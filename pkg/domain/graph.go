package domain

// Graph is one published, immutable version of a bot flow.
// Execution always binds to exactly one Graph snapshot; the snapshot is
// embedded in the session state so a session survives republishing.
type Graph struct {
	ID      string `json:"id" yaml:"id"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`

	Groups    []Group    `json:"groups" yaml:"groups"`
	Edges     []Edge     `json:"edges,omitempty" yaml:"edges,omitempty"`
	Events    []Event    `json:"events,omitempty" yaml:"events,omitempty"`
	Variables []Variable `json:"variables,omitempty" yaml:"variables,omitempty"`

	Settings Settings `json:"settings,omitempty" yaml:"settings,omitempty"`
	Theme    Theme    `json:"theme,omitempty" yaml:"theme,omitempty"`
}

// Group is one node of the flow graph: an ordered sequence of blocks.
type Group struct {
	ID     string  `json:"id" yaml:"id"`
	Title  string  `json:"title,omitempty" yaml:"title,omitempty"`
	Blocks []Block `json:"blocks" yaml:"blocks"`
}

// EdgeSource identifies where an edge leaves the graph. BlockID is empty
// for a group-level exit. Label distinguishes multiple edges leaving the
// same block: branch outcomes ("true", "false", "success", "error") and
// the input retry edge ("retry"). An empty label is the default edge.
type EdgeSource struct {
	GroupID string `json:"groupId" yaml:"groupId"`
	BlockID string `json:"blockId,omitempty" yaml:"blockId,omitempty"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
}

// EdgeTarget identifies where an edge enters. BlockID, when set, points
// into the middle of the target group instead of its first block.
type EdgeTarget struct {
	GroupID string `json:"groupId" yaml:"groupId"`
	BlockID string `json:"blockId,omitempty" yaml:"blockId,omitempty"`
}

// Edge is a directed connection between a block (or group) and a group.
type Edge struct {
	ID   string     `json:"id" yaml:"id"`
	From EdgeSource `json:"from" yaml:"from"`
	To   EdgeTarget `json:"to" yaml:"to"`
}

// Event types.
const (
	EventStart   = "start"
	EventCommand = "command"
)

// Event is a named alternate entry point into the graph. A start event
// marks the default entry group; command events are entered when the
// visitor sends a matching command message.
type Event struct {
	ID      string     `json:"id" yaml:"id"`
	Type    string     `json:"type" yaml:"type"`
	Command string     `json:"command,omitempty" yaml:"command,omitempty"`
	Target  EdgeTarget `json:"target" yaml:"target"`
}

// Variable declares a session variable, optionally with a default value
// applied when a fresh session starts.
type Variable struct {
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
	Name    string `json:"name" yaml:"name"`
	Default any    `json:"default,omitempty" yaml:"default,omitempty"`
}

// Settings carries the execution-relevant bot settings. The full bot
// settings object is larger; only what the engine consults lives here.
type Settings struct {
	ProgressBarEnabled bool `json:"progressBarEnabled,omitempty" yaml:"progressBarEnabled,omitempty"`
	StreamingEnabled   bool `json:"streamingEnabled,omitempty" yaml:"streamingEnabled,omitempty"`
	// RememberUser keeps returning visitors on their previous session.
	RememberUser bool `json:"rememberUser,omitempty" yaml:"rememberUser,omitempty"`
}

// Theme holds the themable values the engine resolves at runtime.
// URLs may contain {{variable}} templates; the engine re-resolves them
// each turn and reports changes as a theme delta.
type Theme struct {
	HostAvatarURL   string `json:"hostAvatarUrl,omitempty" yaml:"hostAvatarUrl,omitempty"`
	GuestAvatarURL  string `json:"guestAvatarUrl,omitempty" yaml:"guestAvatarUrl,omitempty"`
	BackgroundURL   string `json:"backgroundUrl,omitempty" yaml:"backgroundUrl,omitempty"`
	ProgressBarType string `json:"progressBarType,omitempty" yaml:"progressBarType,omitempty"`
}

// StartFrom overrides the entry point of a start request.
type StartFrom struct {
	Type    string `json:"type"` // "group" or "event"
	GroupID string `json:"groupId,omitempty"`
	EventID string `json:"eventId,omitempty"`
}

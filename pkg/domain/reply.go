package domain

// Message is what the visitor (or client runtime) sends on a turn.
// Exactly one of the payload fields is meaningful for a given type.
type Message struct {
	Type string `json:"type"` // "text", "audio", "command"

	Text             string   `json:"text,omitempty"`
	AttachedFileURLs []string `json:"attachedFileUrls,omitempty"`

	URL string `json:"url,omitempty"` // audio clip

	Command string `json:"command,omitempty"`
}

// TextMessage builds the common case.
func TextMessage(text string) *Message {
	return &Message{Type: "text", Text: text}
}

// ChatMessage is one outgoing bubble. Content mirrors the block's
// payload with all variable templates resolved.
type ChatMessage struct {
	ID      string         `json:"id"`
	Type    BlockType      `json:"type"`
	Content map[string]any `json:"content"`
}

// InputPrompt describes the reply the engine is waiting for. It echoes
// the input block's declared shape plus any runtime options computed
// during the turn (e.g. a payment amount).
type InputPrompt struct {
	ID             string         `json:"id"`
	Type           BlockType      `json:"type"`
	Options        map[string]any `json:"options,omitempty"`
	Items          []BlockItem    `json:"items,omitempty"`
	Prefilled      string         `json:"prefilledValue,omitempty"`
	RuntimeOptions map[string]any `json:"runtimeOptions,omitempty"`
}

// Client-side action types.
const (
	ActionRedirect       = "redirect"
	ActionScript         = "scriptToExecute"
	ActionWebhook        = "webhookToTrigger"
	ActionPaymentRequest = "paymentRequest"
	ActionStream         = "stream"
	ActionWait           = "wait"
)

// RedirectAction asks the client to navigate.
type RedirectAction struct {
	URL      string `json:"url"`
	IsNewTab bool   `json:"isNewTab,omitempty"`
}

// ScriptAction asks the client to run a snippet.
type ScriptAction struct {
	Content          string `json:"content"`
	IsExecutedOnView bool   `json:"isExecutedOnClient,omitempty"`
}

// PaymentRequest asks the client to collect a payment and come back with
// a confirmation token.
type PaymentRequest struct {
	Provider  string `json:"provider,omitempty"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	PublicKey string `json:"publicKey,omitempty"`
}

// WaitAction asks the client (or an external scheduler) to resume the
// session after a delay.
type WaitAction struct {
	Seconds int `json:"secondsToWaitFor"`
}

// ClientSideAction is a discriminated union of things the engine cannot
// do itself and delegates to the client runtime.
type ClientSideAction struct {
	Type string `json:"type"`

	Redirect *RedirectAction `json:"redirect,omitempty"`
	Script   *ScriptAction   `json:"scriptToExecute,omitempty"`
	Webhook  map[string]any  `json:"webhookToTrigger,omitempty"`
	Payment  *PaymentRequest `json:"paymentRequest,omitempty"`
	Wait     *WaitAction     `json:"wait,omitempty"`
	StreamID string          `json:"streamId,omitempty"`

	// ExpectsDedicatedReply marks actions whose result must come back as
	// the next continue payload (payment confirmation, client webhooks).
	ExpectsDedicatedReply bool `json:"expectsDedicatedReply,omitempty"`
}

// Log severities.
const (
	LogError   = "error"
	LogWarn    = "warn"
	LogInfo    = "info"
	LogSuccess = "success"
)

// SessionLog is one execution log line surfaced to the caller.
type SessionLog struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	Details     string `json:"details,omitempty"`
}

// ThemeDelta reports dynamic theme values that changed this turn.
type ThemeDelta struct {
	HostAvatarURL  *string `json:"hostAvatarUrl,omitempty"`
	GuestAvatarURL *string `json:"guestAvatarUrl,omitempty"`
	BackgroundURL  *string `json:"backgroundUrl,omitempty"`
}

// Reply is the structured result of one turn. Assembled once, never
// mutated afterwards; message order is traversal order.
type Reply struct {
	Messages         []ChatMessage      `json:"messages"`
	Input            *InputPrompt       `json:"input,omitempty"`
	ClientActions    []ClientSideAction `json:"clientSideActions,omitempty"`
	Logs             []SessionLog       `json:"logs,omitempty"`
	Progress         *float64           `json:"progress,omitempty"`
	DynamicTheme     *ThemeDelta        `json:"dynamicTheme,omitempty"`
	LastMessageNewFt string             `json:"lastMessageNewFormat,omitempty"`
}

// StartChatInput is the start-turn request.
type StartChatInput struct {
	BotID string `json:"botId,omitempty"`
	// Graph, when set, overrides the registered bot (preview mode).
	Graph *Graph `json:"graph,omitempty"`

	SessionID string `json:"sessionId,omitempty"`
	ResultID  string `json:"resultId,omitempty"`

	Message            *Message       `json:"message,omitempty"`
	StartFrom          *StartFrom     `json:"startFrom,omitempty"`
	PrefilledVariables map[string]any `json:"prefilledVariables,omitempty"`

	IsStreamEnabled   bool   `json:"isStreamEnabled,omitempty"`
	IsOnlyRegistering bool   `json:"isOnlyRegistering,omitempty"`
	TextFormat        string `json:"textBubbleContentFormat,omitempty"`
}

// StartChatResponse is the first Reply plus the new session identity.
type StartChatResponse struct {
	SessionID string `json:"sessionId"`
	ResultID  string `json:"resultId,omitempty"`
	Bot       struct {
		ID      string `json:"id"`
		Version string `json:"version,omitempty"`
		Theme   Theme  `json:"theme,omitempty"`
	} `json:"bot"`
	Reply
}

// ContinueChatInput is the continue-turn request.
type ContinueChatInput struct {
	Message *Message `json:"message,omitempty"`
}

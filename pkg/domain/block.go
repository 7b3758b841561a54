package domain

// BlockType discriminates block behavior. The engine dispatches on this
// tag; there is no block class hierarchy.
type BlockType string

// Bubble blocks render content and continue immediately.
const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
	BlockVideo BlockType = "video"
	BlockAudio BlockType = "audio"
	BlockEmbed BlockType = "embed"
)

// Input blocks render a prompt and pause the session until the visitor
// replies.
const (
	BlockTextInput          BlockType = "text input"
	BlockEmailInput         BlockType = "email input"
	BlockNumberInput        BlockType = "number input"
	BlockURLInput           BlockType = "url input"
	BlockPhoneInput         BlockType = "phone number input"
	BlockDateInput          BlockType = "date input"
	BlockTimeInput          BlockType = "time input"
	BlockRatingInput        BlockType = "rating input"
	BlockChoiceInput        BlockType = "choice input"
	BlockPictureChoiceInput BlockType = "picture choice input"
	BlockFileInput          BlockType = "file input"
	BlockPaymentInput       BlockType = "payment input"
	BlockCardsInput         BlockType = "cards input"
)

// Logic blocks compute and resolve synchronously to a next target.
const (
	BlockCondition   BlockType = "Condition"
	BlockSetVariable BlockType = "Set variable"
	BlockScript      BlockType = "Script"
	BlockWebhook     BlockType = "Webhook"
	BlockJump        BlockType = "Jump"
	BlockWait        BlockType = "Wait"
	BlockRedirect    BlockType = "Redirect"
)

// Block is a single unit of execution inside a group.
//
// Content holds the bubble payload (text, image url, ...); Options holds
// the typed configuration of input and logic blocks as a generic map the
// executors decode with mapstructure. Both are kept generic so graph
// versions stay forward-compatible at the model layer.
type Block struct {
	ID      string         `json:"id" yaml:"id"`
	Type    BlockType      `json:"type" yaml:"type"`
	Content map[string]any `json:"content,omitempty" yaml:"content,omitempty"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
	Items   []BlockItem    `json:"items,omitempty" yaml:"items,omitempty"`
}

// BlockItem is one selectable entry of a choice, picture-choice or cards
// block, or one comparison of a condition block.
type BlockItem struct {
	ID        string         `json:"id,omitempty" yaml:"id,omitempty"`
	Content   string         `json:"content,omitempty" yaml:"content,omitempty"`
	Value     string         `json:"value,omitempty" yaml:"value,omitempty"`
	PictURL   string         `json:"pictureUrl,omitempty" yaml:"pictureUrl,omitempty"`
	Options   map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
	EdgeLabel string         `json:"edgeLabel,omitempty" yaml:"edgeLabel,omitempty"`
}

// Kind buckets block types by control-flow behavior.
type Kind int

const (
	KindBubble Kind = iota
	KindInput
	KindLogic
	KindUnknown
)

// KindOf classifies a block type.
func KindOf(t BlockType) Kind {
	switch t {
	case BlockText, BlockImage, BlockVideo, BlockAudio, BlockEmbed:
		return KindBubble
	case BlockTextInput, BlockEmailInput, BlockNumberInput, BlockURLInput,
		BlockPhoneInput, BlockDateInput, BlockTimeInput, BlockRatingInput,
		BlockChoiceInput, BlockPictureChoiceInput, BlockFileInput,
		BlockPaymentInput, BlockCardsInput:
		return KindInput
	case BlockCondition, BlockSetVariable, BlockScript, BlockWebhook,
		BlockJump, BlockWait, BlockRedirect:
		return KindLogic
	}
	return KindUnknown
}

// VariableName returns the name of the variable this block binds its
// output to, or "" when unbound.
func (b *Block) VariableName() string {
	if v, ok := b.Options["variable"].(string); ok {
		return v
	}
	return ""
}

package dispatch

import (
	"github.com/BaSui01/aihub/internal/imaging"
	"github.com/BaSui01/aihub/types"
)

// Kind is the request path.
type Kind string

const (
	KindGenerate      Kind = "generate"
	KindChat          Kind = "chat"
	KindChatWithImage Kind = "chat_with_image"
	KindAnalyze       Kind = "analyze"
	KindEdit          Kind = "edit"
)

// Kinds lists every request kind.
func Kinds() []Kind {
	return []Kind{KindGenerate, KindChat, KindChatWithImage, KindAnalyze, KindEdit}
}

// Request is one inbound call. It is built once and never mutated.
type Request struct {
	Kind     Kind
	Provider string
	Model    string

	// Prompt is the generation prompt or, for edits, the edit instruction.
	Prompt string

	// Message is the new user chat message.
	Message string

	Style       string
	AspectRatio string
	History     []types.ConversationTurn
	Image       imaging.Source
}

// Validation messages, part of the caller-facing contract.
const (
	msgPromptRequired       = "Prompt is required"
	msgMessageRequired      = "Message is required"
	msgMessageOrImage       = "Message or image is required"
	msgImageRequired        = "Either image data or image URL is required"
	msgImageAndEditRequired = "Image data and edit prompt are required"
)

// Empty-result messages.
const (
	msgNoResponse = "No response from AI"
	msgNoAnalysis = "No analysis result received"
	msgNoImage    = "No image returned"
)

// failurePrefix is prepended to adapter failure causes.
var failurePrefix = map[Kind]string{
	KindGenerate:      "Image generation failed: ",
	KindChat:          "Chat failed: ",
	KindChatWithImage: "Multimodal chat failed: ",
	KindAnalyze:       "Analysis failed: ",
	KindEdit:          "Image editing failed: ",
}

// EditSuccessMessage accompanies a successful edit.
const EditSuccessMessage = "Image edited successfully - same object preserved"

// DefaultAnalyzeInstruction is the fixed analysis prompt.
const DefaultAnalyzeInstruction = "What is this image? Provide a detailed description including objects, people, scenes, colors, and any notable details."

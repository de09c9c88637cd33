package dispatch

import (
	"context"

	"github.com/BaSui01/aihub/internal/convo"
	"github.com/BaSui01/aihub/internal/imaging"
)

// Provider is a named bridge to one external generative-AI service. A
// provider implements any subset of the capability interfaces below; the
// router resolves a (kind, provider) pair by type assertion.
type Provider interface {
	Name() string
}

// Generator synthesizes images from text.
type Generator interface {
	Provider
	Generate(ctx context.Context, in GenerateInput) (ImageOutput, error)
}

// Chatter answers a text-only conversation.
type Chatter interface {
	Provider
	Chat(ctx context.Context, in ChatInput) (TextOutput, error)
}

// MultimodalChatter answers a conversation turn that carries an image.
type MultimodalChatter interface {
	Provider
	ChatMultimodal(ctx context.Context, in ChatInput, img *imaging.CanonicalImage) (TextOutput, error)
}

// Analyzer describes an image following an instruction.
type Analyzer interface {
	Provider
	Analyze(ctx context.Context, in AnalyzeInput) (TextOutput, error)
}

// Editor rewrites an image following an instruction.
type Editor interface {
	Provider
	Edit(ctx context.Context, in EditInput) (ImageOutput, error)
}

// GenerateInput is what a Generator receives.
type GenerateInput struct {
	Prompt      string
	Style       string
	Model       string
	AspectRatio string
	Size        Dimensions
}

// ChatInput is what a Chatter or MultimodalChatter receives. Model may be
// empty, in which case the provider applies its own default.
type ChatInput struct {
	Context convo.Context
	Model   string
}

// AnalyzeInput is what an Analyzer receives.
type AnalyzeInput struct {
	Image       *imaging.CanonicalImage
	Instruction string
	Model       string
}

// EditInput is what an Editor receives.
type EditInput struct {
	Image       *imaging.CanonicalImage
	Prompt      string
	Style       string
	Model       string
	AspectRatio string
	Size        Dimensions
}

// TextOutput is a textual answer. An empty Text means the provider returned
// nothing usable.
type TextOutput struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// ImageOutput is a produced image. Data or URL must be set for the result to
// count as non-empty.
type ImageOutput struct {
	Data     []byte
	MIMEType string
	URL      string
	Model    string
	Text     string
}

// Empty reports whether the output carries no image.
func (o ImageOutput) Empty() bool {
	return len(o.Data) == 0 && o.URL == ""
}

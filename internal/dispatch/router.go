// Package dispatch routes generation, chat, analysis and edit requests to
// injected provider adapters and normalizes every outcome into a single
// types.ResultEnvelope.
package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/aihub/internal/convo"
	"github.com/BaSui01/aihub/internal/ctxkeys"
	"github.com/BaSui01/aihub/internal/imaging"
	"github.com/BaSui01/aihub/types"
)

// Config holds router defaults.
type Config struct {
	// GenerateProvider is used for generate requests that name no provider.
	GenerateProvider string `yaml:"generate_provider" json:"generate_provider"`
	// DefaultProvider is used for every other kind.
	DefaultProvider    string `yaml:"default_provider" json:"default_provider"`
	DefaultStyle       string `yaml:"default_style" json:"default_style"`
	AnalyzeInstruction string `yaml:"analyze_instruction" json:"analyze_instruction"`
}

// DefaultConfig returns the stock routing defaults.
func DefaultConfig() Config {
	return Config{
		GenerateProvider:   "pollinations",
		DefaultProvider:    "gemini",
		DefaultStyle:       "photorealistic",
		AnalyzeInstruction: DefaultAnalyzeInstruction,
	}
}

// Ingestor turns an image source into a canonical image.
type Ingestor interface {
	Ingest(ctx context.Context, src imaging.Source) (*imaging.CanonicalImage, error)
}

// Recorder observes dispatch outcomes. outcome is "success" or the
// lower-cased error code.
type Recorder interface {
	RecordDispatch(kind, provider, outcome string, duration time.Duration)
	RecordTokens(provider, model string, promptTokens, completionTokens int)
}

// Router is stateless across requests; everything it holds is read-only
// after construction.
type Router struct {
	cfg         Config
	providers   map[string]Provider
	unavailable map[string]string
	builder     *convo.Builder
	ingestor    Ingestor
	recorder    Recorder
	inst        *instruments
	logger      *zap.Logger

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Router.
type Option func(*Router)

// WithProvider registers an initialized provider under its Name.
func WithProvider(p Provider) Option {
	return func(r *Router) {
		if p != nil {
			r.providers[strings.ToLower(p.Name())] = p
		}
	}
}

// WithUnavailable registers a provider that failed to initialize. Requests
// routed to it fail with reason as the error message.
func WithUnavailable(name, reason string) Option {
	return func(r *Router) {
		r.unavailable[strings.ToLower(name)] = reason
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Router) { r.recorder = rec }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Router) { r.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Router) { r.meterProvider = mp }
}

// NewRouter creates a router.
func NewRouter(cfg Config, builder *convo.Builder, ingestor Ingestor, logger *zap.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.GenerateProvider == "" {
		cfg.GenerateProvider = def.GenerateProvider
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = def.DefaultProvider
	}
	if cfg.DefaultStyle == "" {
		cfg.DefaultStyle = def.DefaultStyle
	}
	if cfg.AnalyzeInstruction == "" {
		cfg.AnalyzeInstruction = def.AnalyzeInstruction
	}
	if builder == nil {
		builder = convo.NewBuilder(convo.DefaultLimits())
	}

	r := &Router{
		cfg:         cfg,
		providers:   make(map[string]Provider),
		unavailable: make(map[string]string),
		builder:     builder,
		ingestor:    ingestor,
		logger:      logger.With(zap.String("component", "dispatch")),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.inst = newInstruments(r.tracerProvider, r.meterProvider)
	return r
}

// Dispatch runs one request to completion and returns exactly one envelope.
func (r *Router) Dispatch(ctx context.Context, req Request) types.ResultEnvelope {
	start := time.Now()
	provider := r.providerName(req)

	ctx, span := r.inst.start(ctx, req.Kind, provider)

	var env types.ResultEnvelope
	switch req.Kind {
	case KindGenerate:
		env = r.generate(ctx, provider, req)
	case KindChat:
		env = r.chat(ctx, provider, req)
	case KindChatWithImage:
		env = r.chatWithImage(ctx, provider, req)
	case KindAnalyze:
		env = r.analyze(ctx, provider, req)
	case KindEdit:
		env = r.edit(ctx, provider, req)
	default:
		env = types.Failure(types.NewValidationError(fmt.Sprintf("Unknown request kind: %q", req.Kind)))
	}

	elapsed := time.Since(start)
	r.inst.end(ctx, span, req.Kind, provider, env, elapsed)
	r.observe(ctx, req.Kind, provider, env, elapsed)
	return env
}

func (r *Router) observe(ctx context.Context, kind Kind, provider string, env types.ResultEnvelope, elapsed time.Duration) {
	outcome := string(types.StatusSuccess)
	if !env.OK() {
		outcome = strings.ToLower(string(env.Code))
	}
	if r.recorder != nil {
		r.recorder.RecordDispatch(string(kind), provider, outcome, elapsed)
	}

	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("provider", provider),
		zap.String("outcome", outcome),
		zap.Duration("duration", elapsed),
	}
	if id, ok := ctxkeys.RequestID(ctx); ok {
		fields = append(fields, zap.String("request_id", id))
	}
	switch env.Code {
	case "":
		r.logger.Info("dispatch completed", fields...)
	case types.ErrAdapterFailure, types.ErrEmptyResult, types.ErrInternalError:
		r.logger.Warn("dispatch failed", append(fields, zap.String("error", env.Error))...)
	default:
		r.logger.Info("dispatch rejected", append(fields, zap.String("error", env.Error))...)
	}
}

func (r *Router) providerName(req Request) string {
	if name := strings.ToLower(strings.TrimSpace(req.Provider)); name != "" {
		return name
	}
	if req.Kind == KindGenerate {
		return r.cfg.GenerateProvider
	}
	return r.cfg.DefaultProvider
}

// resolve returns the provider registered under name, or a
// PROVIDER_UNAVAILABLE error.
func (r *Router) resolve(name string) (Provider, *types.Error) {
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	if reason, ok := r.unavailable[name]; ok {
		return nil, types.NewError(types.ErrProviderUnavailable, reason).WithProvider(name)
	}
	return nil, unavailable(name)
}

func unavailable(name string) *types.Error {
	return types.NewError(types.ErrProviderUnavailable, fmt.Sprintf("%s service unavailable", name)).WithProvider(name)
}

func (r *Router) generate(ctx context.Context, name string, req Request) types.ResultEnvelope {
	if strings.TrimSpace(req.Prompt) == "" {
		return types.Failure(types.NewValidationError(msgPromptRequired))
	}
	p, perr := r.resolve(name)
	if perr != nil {
		return types.Failure(perr)
	}
	gen, ok := p.(Generator)
	if !ok {
		return types.Failure(unavailable(name))
	}

	label, size := ResolveAspect(req.AspectRatio)
	in := GenerateInput{
		Prompt:      req.Prompt,
		Style:       r.style(req.Style),
		Model:       req.Model,
		AspectRatio: label,
		Size:        size,
	}

	var out ImageOutput
	if err := invoke(func() (err error) {
		out, err = gen.Generate(ctx, in)
		return err
	}); err != nil {
		return types.Failure(adapterFailure(KindGenerate, name, err))
	}
	if out.Empty() {
		return types.Failure(emptyResult(msgNoImage, name))
	}

	payload := imagePayload(out, name)
	payload["prompt"] = in.Prompt
	payload["style"] = in.Style
	payload["aspect_ratio"] = label
	payload["width"] = size.Width
	payload["height"] = size.Height
	return types.Success(payload)
}

func (r *Router) chat(ctx context.Context, name string, req Request) types.ResultEnvelope {
	if strings.TrimSpace(req.Message) == "" {
		return types.Failure(types.NewValidationError(msgMessageRequired))
	}
	p, perr := r.resolve(name)
	if perr != nil {
		return types.Failure(perr)
	}
	chatter, ok := p.(Chatter)
	if !ok {
		return types.Failure(unavailable(name))
	}

	in := ChatInput{Context: r.builder.TextChat(req.History, req.Message), Model: req.Model}

	var out TextOutput
	if err := invoke(func() (err error) {
		out, err = chatter.Chat(ctx, in)
		return err
	}); err != nil {
		return types.Failure(adapterFailure(KindChat, name, err))
	}
	return r.answer(ctx, name, req.Model, in.Context, out, msgNoResponse)
}

func (r *Router) chatWithImage(ctx context.Context, name string, req Request) types.ResultEnvelope {
	hasImage := !req.Image.Empty()
	if strings.TrimSpace(req.Message) == "" && !hasImage {
		return types.Failure(types.NewValidationError(msgMessageOrImage))
	}
	p, perr := r.resolve(name)
	if perr != nil {
		return types.Failure(perr)
	}

	in := ChatInput{Context: r.builder.MultimodalChat(req.History, req.Message), Model: req.Model}

	var out TextOutput
	var call func() error
	if hasImage {
		mm, ok := p.(MultimodalChatter)
		if !ok {
			return types.Failure(unavailable(name))
		}
		img, err := r.ingest(ctx, req.Image)
		if err != nil {
			return types.Failure(err)
		}
		call = func() (err error) {
			out, err = mm.ChatMultimodal(ctx, in, img)
			return err
		}
	} else {
		chatter, ok := p.(Chatter)
		if !ok {
			return types.Failure(unavailable(name))
		}
		call = func() (err error) {
			out, err = chatter.Chat(ctx, in)
			return err
		}
	}

	if err := invoke(call); err != nil {
		return types.Failure(adapterFailure(KindChatWithImage, name, err))
	}
	return r.answer(ctx, name, req.Model, in.Context, out, msgNoResponse)
}

func (r *Router) analyze(ctx context.Context, name string, req Request) types.ResultEnvelope {
	if req.Image.Empty() {
		return types.Failure(types.NewValidationError(msgImageRequired))
	}
	p, perr := r.resolve(name)
	if perr != nil {
		return types.Failure(perr)
	}
	analyzer, ok := p.(Analyzer)
	if !ok {
		return types.Failure(unavailable(name))
	}

	img, err := r.ingest(ctx, req.Image)
	if err != nil {
		return types.Failure(err)
	}

	in := AnalyzeInput{Image: img, Instruction: r.cfg.AnalyzeInstruction, Model: req.Model}
	var out TextOutput
	if err := invoke(func() (err error) {
		out, err = analyzer.Analyze(ctx, in)
		return err
	}); err != nil {
		return types.Failure(adapterFailure(KindAnalyze, name, err))
	}
	if strings.TrimSpace(out.Text) == "" {
		return types.Failure(emptyResult(msgNoAnalysis, name))
	}
	r.recordTokens(ctx, name, out)

	return types.Success(map[string]any{
		"analysis":   out.Text,
		"model_used": firstNonEmpty(out.Model, req.Model),
	})
}

func (r *Router) edit(ctx context.Context, name string, req Request) types.ResultEnvelope {
	if req.Image.Empty() || strings.TrimSpace(req.Prompt) == "" {
		return types.Failure(types.NewValidationError(msgImageAndEditRequired))
	}
	p, perr := r.resolve(name)
	if perr != nil {
		return types.Failure(perr)
	}
	editor, ok := p.(Editor)
	if !ok {
		return types.Failure(unavailable(name))
	}

	label, size := ResolveAspect(req.AspectRatio)
	img, err := r.ingest(ctx, req.Image)
	if err != nil {
		return types.Failure(err)
	}

	in := EditInput{
		Image:       img,
		Prompt:      req.Prompt,
		Style:       r.style(req.Style),
		Model:       req.Model,
		AspectRatio: label,
		Size:        size,
	}
	var out ImageOutput
	if err := invoke(func() (err error) {
		out, err = editor.Edit(ctx, in)
		return err
	}); err != nil {
		return types.Failure(adapterFailure(KindEdit, name, err))
	}
	if out.Empty() {
		return types.Failure(emptyResult(msgNoImage, name))
	}

	payload := imagePayload(out, name)
	payload["message"] = EditSuccessMessage
	payload["edit_prompt"] = in.Prompt
	payload["style"] = in.Style
	payload["aspect_ratio"] = label
	payload["width"] = size.Width
	payload["height"] = size.Height
	return types.Success(payload)
}

func (r *Router) answer(ctx context.Context, name, requestedModel string, c convo.Context, out TextOutput, emptyMsg string) types.ResultEnvelope {
	if strings.TrimSpace(out.Text) == "" {
		return types.Failure(emptyResult(emptyMsg, name))
	}
	r.recordTokens(ctx, name, out)

	payload := map[string]any{
		"answer":     out.Text,
		"model_used": firstNonEmpty(out.Model, requestedModel),
	}
	if c.DroppedParts > 0 {
		payload["context_dropped_parts"] = c.DroppedParts
		r.logger.Debug("non-text history parts dropped from context",
			zap.String("provider", name),
			zap.Int("dropped_parts", c.DroppedParts))
	}
	return types.Success(payload)
}

func (r *Router) recordTokens(ctx context.Context, name string, out TextOutput) {
	r.inst.recordTokens(ctx, name, out)
	if r.recorder != nil && out.PromptTokens+out.CompletionTokens > 0 {
		r.recorder.RecordTokens(name, out.Model, out.PromptTokens, out.CompletionTokens)
	}
}

func (r *Router) ingest(ctx context.Context, src imaging.Source) (*imaging.CanonicalImage, *types.Error) {
	if r.ingestor == nil {
		return nil, types.NewError(types.ErrInternalError, "Image ingestion is not configured")
	}
	img, err := r.ingestor.Ingest(ctx, src)
	if err == nil {
		return img, nil
	}
	if e, ok := types.AsError(err); ok {
		return nil, e
	}
	return nil, types.NewDecodeError("Could not read image", err)
}

func (r *Router) style(s string) string {
	if strings.TrimSpace(s) == "" {
		return r.cfg.DefaultStyle
	}
	return s
}

// invoke runs an adapter call, turning a panic into an error so an adapter
// fault never escapes the router.
func invoke(call func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("adapter panic: %v", p)
		}
	}()
	return call()
}

func adapterFailure(kind Kind, provider string, err error) *types.Error {
	return types.NewError(types.ErrAdapterFailure, failurePrefix[kind]+causeText(err)).
		WithCause(err).
		WithProvider(provider)
}

func emptyResult(msg, provider string) *types.Error {
	return types.NewError(types.ErrEmptyResult, msg).WithProvider(provider)
}

// causeText renders an adapter error for callers without the code prefix
// that types.Error.Error adds.
func causeText(err error) string {
	var e *types.Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + e.Cause.Error()
		}
		return e.Message
	}
	return err.Error()
}

func imagePayload(out ImageOutput, provider string) map[string]any {
	payload := map[string]any{
		"provider": provider,
		"model":    out.Model,
	}
	if len(out.Data) > 0 {
		payload["image_base64"] = base64.StdEncoding.EncodeToString(out.Data)
		payload["mime_type"] = firstNonEmpty(out.MIMEType, "image/png")
	}
	if out.URL != "" {
		payload["image_url"] = out.URL
	}
	if out.Text != "" {
		payload["text"] = out.Text
	}
	return payload
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ProviderStatus describes one provider for health reporting.
type ProviderStatus struct {
	Name         string `json:"name"`
	Available    bool   `json:"available"`
	Reason       string `json:"reason,omitempty"`
	Capabilities []Kind `json:"capabilities,omitempty"`
}

// Providers reports every registered and unavailable provider, sorted by name.
func (r *Router) Providers() []ProviderStatus {
	out := make([]ProviderStatus, 0, len(r.providers)+len(r.unavailable))
	for name, p := range r.providers {
		out = append(out, ProviderStatus{Name: name, Available: true, Capabilities: Capabilities(p)})
	}
	for name, reason := range r.unavailable {
		if _, ok := r.providers[name]; ok {
			continue
		}
		out = append(out, ProviderStatus{Name: name, Reason: reason})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Capabilities lists the kinds p can serve.
func Capabilities(p Provider) []Kind {
	var kinds []Kind
	if _, ok := p.(Generator); ok {
		kinds = append(kinds, KindGenerate)
	}
	if _, ok := p.(Chatter); ok {
		kinds = append(kinds, KindChat)
	}
	_, chat := p.(Chatter)
	_, mm := p.(MultimodalChatter)
	if chat || mm {
		kinds = append(kinds, KindChatWithImage)
	}
	if _, ok := p.(Analyzer); ok {
		kinds = append(kinds, KindAnalyze)
	}
	if _, ok := p.(Editor); ok {
		kinds = append(kinds, KindEdit)
	}
	return kinds
}

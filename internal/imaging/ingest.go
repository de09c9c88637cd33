// Package imaging turns uploaded, base64 and remote images into a single
// canonical in-memory representation.
package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/BaSui01/aihub/types"
)

const (
	DefaultMaxBytes     int64 = 20 << 20
	DefaultMaxDimension       = 2048
	// DefaultMaxPixels 解码前按头部声明的宽高拦截，约 40MP。
	DefaultMaxPixels int64 = 40_000_000
)

// Source kinds, used for logs and metrics.
const (
	SourceUpload = "upload"
	SourceBase64 = "base64"
	SourceURL    = "url"
)

// Source carries exactly one image encoding.
type Source struct {
	Raw    []byte
	Base64 string
	URL    string
}

// Kind returns the set encoding, "" when none is set and "multiple" when
// more than one is.
func (s Source) Kind() string {
	var kinds []string
	if len(s.Raw) > 0 {
		kinds = append(kinds, SourceUpload)
	}
	if strings.TrimSpace(s.Base64) != "" {
		kinds = append(kinds, SourceBase64)
	}
	if strings.TrimSpace(s.URL) != "" {
		kinds = append(kinds, SourceURL)
	}
	switch len(kinds) {
	case 0:
		return ""
	case 1:
		return kinds[0]
	default:
		return "multiple"
	}
}

// Empty reports whether no encoding is set.
func (s Source) Empty() bool {
	return s.Kind() == ""
}

// Config bounds what the ingestor accepts.
type Config struct {
	MaxBytes     int64         `yaml:"max_bytes" json:"max_bytes"`
	MaxDimension int           `yaml:"max_dimension" json:"max_dimension"`
	MaxPixels    int64         `yaml:"max_pixels" json:"max_pixels"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
}

// DefaultConfig returns the stock bounds.
func DefaultConfig() Config {
	return Config{
		MaxBytes:     DefaultMaxBytes,
		MaxDimension: DefaultMaxDimension,
		MaxPixels:    DefaultMaxPixels,
		FetchTimeout: 20 * time.Second,
	}
}

// Recorder observes ingest outcomes.
type Recorder interface {
	RecordImageIngest(source, outcome string, size int, duration time.Duration)
}

// Ingestor decodes images. It is safe for concurrent use.
type Ingestor struct {
	cfg      Config
	fetcher  Fetcher
	recorder Recorder
	logger   *zap.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(i *Ingestor) { i.recorder = r }
}

// NewIngestor creates an ingestor. fetcher may be nil when URL sources are
// not needed.
func NewIngestor(cfg Config, fetcher Fetcher, logger *zap.Logger, opts ...Option) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	in := &Ingestor{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger.With(zap.String("component", "imaging")),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest decodes src into a CanonicalImage. Failures are *types.Error with
// code VALIDATION_ERROR, DECODE_ERROR or FETCH_ERROR.
func (in *Ingestor) Ingest(ctx context.Context, src Source) (img *CanonicalImage, err error) {
	start := time.Now()
	kind := src.Kind()
	size := 0
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = strings.ToLower(string(types.GetErrorCode(err)))
		}
		if in.recorder != nil {
			in.recorder.RecordImageIngest(kind, outcome, size, time.Since(start))
		}
		if err != nil {
			in.logger.Debug("image ingest failed", zap.String("source", kind), zap.Error(err))
		}
	}()

	var data []byte
	switch kind {
	case "":
		return nil, types.NewValidationError("Image is required")
	case "multiple":
		return nil, types.NewValidationError("Provide exactly one of image upload, image data or image URL")
	case SourceUpload:
		data = src.Raw
	case SourceBase64:
		data, err = DecodeBase64(src.Base64)
	case SourceURL:
		data, err = in.fetch(ctx, src.URL)
	}
	if err != nil {
		return nil, err
	}
	size = len(data)
	if int64(size) > in.cfg.MaxBytes {
		return nil, types.NewValidationError(fmt.Sprintf("Image exceeds %d bytes", in.cfg.MaxBytes))
	}
	return Decode(data, in.cfg.MaxDimension, in.cfg.MaxPixels)
}

func (in *Ingestor) fetch(ctx context.Context, raw string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, types.NewValidationError("Image URL must be an absolute http or https URL")
	}
	if in.fetcher == nil {
		return nil, types.NewFetchError("Could not fetch image from URL", fmt.Errorf("no fetcher configured"))
	}

	if in.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.cfg.FetchTimeout)
		defer cancel()
	}
	res, err := in.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return nil, types.NewFetchError("Could not fetch image from URL", err)
	}
	if !res.OK() {
		return nil, types.NewFetchError("Could not fetch image from URL", fmt.Errorf("status %d", res.StatusCode))
	}
	return res.Body, nil
}

// DecodeBase64 strips an optional data-URI header (everything up to the
// first comma) and decodes the remainder. Padded and unpadded, standard and
// URL-safe alphabets are accepted.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, types.NewDecodeError("Invalid image data: malformed data URI", nil)
		}
		s = s[comma+1:]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, types.NewDecodeError("Invalid image data: empty payload", nil)
	}

	var lastErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, types.NewDecodeError("Invalid image data: not valid base64", lastErr)
}

// Decode sniffs and decodes image bytes, then canonicalizes them. The header
// is read first and images declaring more than maxPixels pixels are rejected
// before any pixel buffer is allocated. maxPixels <= 0 means DefaultMaxPixels.
func Decode(data []byte, maxDimension int, maxPixels int64) (*CanonicalImage, error) {
	if len(data) == 0 {
		return nil, types.NewDecodeError("Invalid image data: empty payload", nil)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, types.NewDecodeError(fmt.Sprintf("Unsupported image format: %s", mt.String()), nil)
	}

	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, types.NewDecodeError(fmt.Sprintf("Could not decode %s image", mt.Extension()), err)
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return nil, types.NewDecodeError("Invalid image data: empty dimensions", nil)
	}
	if int64(hdr.Width)*int64(hdr.Height) > maxPixels {
		return nil, types.NewDecodeError(
			fmt.Sprintf("Image dimensions %dx%d exceed the %d pixel limit", hdr.Width, hdr.Height, maxPixels), nil)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, types.NewDecodeError(fmt.Sprintf("Could not decode %s image", mt.Extension()), err)
	}
	return Canonicalize(src, format, maxDimension), nil
}

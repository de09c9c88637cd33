package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/aihub/types"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func transparentPNG(t *testing.T, w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	return encodePNG(t, img)
}

// pngHeaderOnly 只写签名、IHDR 和 IEND，声明 w×h 的 8 位灰度图，不含像素数据。
func pngHeaderOnly(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(typ string, data []byte) {
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		crc := crc32.NewIEEE()
		crc.Write([]byte(typ))
		crc.Write(data)
		buf.WriteString(typ)
		buf.Write(data)
		_ = binary.Write(&buf, binary.BigEndian, crc.Sum32())
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 0 // grayscale
	chunk("IHDR", ihdr)
	chunk("IEND", nil)
	return buf.Bytes()
}

type stubFetcher struct {
	result FetchResult
	err    error
	gotURL string
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (FetchResult, error) {
	s.gotURL = url
	return s.result, s.err
}

type recordedIngest struct {
	source, outcome string
	size            int
}

type stubRecorder struct {
	mu   sync.Mutex
	seen []recordedIngest
}

func (r *stubRecorder) RecordImageIngest(source, outcome string, size int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recordedIngest{source, outcome, size})
}

func TestIngest_UploadFlattensAlpha(t *testing.T) {
	in := NewIngestor(DefaultConfig(), nil, zap.NewNop())

	img, err := in.Ingest(context.Background(), Source{Raw: transparentPNG(t, 4, 3)})
	require.NoError(t, err)

	assert.Equal(t, ModeRGB, img.Mode())
	assert.Equal(t, "png", img.Format)
	assert.Equal(t, "RGBA", img.SourceMode)
	assert.True(t, img.Converted())
	assert.Equal(t, 4, img.Width())
	assert.Equal(t, 3, img.Height())
	assert.True(t, img.Pixels.Opaque())

	// transparent pixel lands on white, opaque pixel is kept
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.Pixels.RGBAAt(1, 1))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.Pixels.RGBAAt(0, 0))
}

func TestIngest_GrayAndPalettedBecomeRGB(t *testing.T) {
	in := NewIngestor(DefaultConfig(), nil, nil)

	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	gray.SetGray(0, 0, color.Gray{Y: 128})
	img, err := in.Ingest(context.Background(), Source{Raw: encodePNG(t, gray)})
	require.NoError(t, err)
	assert.Equal(t, "L", img.SourceMode)
	assert.Equal(t, ModeRGB, img.Mode())

	pal := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	img, err = in.Ingest(context.Background(), Source{Raw: encodePNG(t, pal)})
	require.NoError(t, err)
	assert.Equal(t, "P", img.SourceMode)

	jpegBytes, err := img.JPEG()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, jpegBytes[:2])
}

func TestIngest_Base64WithDataURI(t *testing.T) {
	in := NewIngestor(DefaultConfig(), nil, nil)
	payload := base64.StdEncoding.EncodeToString(transparentPNG(t, 2, 2))

	for name, s := range map[string]string{
		"plain":    payload,
		"data uri": "data:image/png;base64," + payload,
		"raw":      base64.RawStdEncoding.EncodeToString(transparentPNG(t, 2, 2)),
	} {
		t.Run(name, func(t *testing.T) {
			img, err := in.Ingest(context.Background(), Source{Base64: s})
			require.NoError(t, err)
			assert.Equal(t, 2, img.Width())
		})
	}
}

func TestIngest_DecodeErrors(t *testing.T) {
	in := NewIngestor(DefaultConfig(), nil, nil)

	tests := []struct {
		name string
		src  Source
	}{
		{name: "malformed base64", src: Source{Base64: "data:image/png;base64,@@@not-base64@@@"}},
		{name: "data uri without comma", src: Source{Base64: "data:image/png;base64"}},
		{name: "text upload", src: Source{Raw: []byte("hello, this is not an image")}},
		{name: "truncated png", src: Source{Raw: transparentPNG(t, 8, 8)[:40]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := in.Ingest(context.Background(), tt.src)
			require.Error(t, err)
			assert.Nil(t, img)
			assert.True(t, types.IsErrorCode(err, types.ErrDecode), "got %v", err)
		})
	}
}

func TestIngest_SourceValidation(t *testing.T) {
	in := NewIngestor(DefaultConfig(), nil, nil)

	_, err := in.Ingest(context.Background(), Source{})
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))

	_, err = in.Ingest(context.Background(), Source{Raw: []byte{1}, URL: "https://example.com/a.png"})
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))

	_, err = in.Ingest(context.Background(), Source{URL: "file:///etc/passwd"})
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))
}

func TestDecode_RejectsOversizedHeader(t *testing.T) {
	data := pngHeaderOnly(16000, 16000)
	require.Less(t, len(data), 100)

	img, err := Decode(data, DefaultMaxDimension, DefaultMaxPixels)
	require.Error(t, err)
	assert.Nil(t, img)
	assert.True(t, types.IsErrorCode(err, types.ErrDecode), "got %v", err)
	assert.Contains(t, err.Error(), "16000x16000")

	// 0 回落到默认上限
	_, err = Decode(data, DefaultMaxDimension, 0)
	assert.True(t, types.IsErrorCode(err, types.ErrDecode))
}

func TestIngest_MaxPixels(t *testing.T) {
	rec := &stubRecorder{}
	in := NewIngestor(Config{MaxPixels: 32}, nil, nil, WithRecorder(rec))

	_, err := in.Ingest(context.Background(), Source{Raw: transparentPNG(t, 8, 8)})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrDecode), "got %v", err)

	img, err := in.Ingest(context.Background(), Source{Raw: transparentPNG(t, 4, 8)})
	require.NoError(t, err)
	assert.Equal(t, 4, img.Pixels.Bounds().Dx())

	require.Len(t, rec.seen, 2)
	assert.Equal(t, "decode_error", rec.seen[0].outcome)
	assert.Equal(t, "ok", rec.seen[1].outcome)
}

func TestIngest_MaxBytes(t *testing.T) {
	in := NewIngestor(Config{MaxBytes: 10}, nil, nil)
	_, err := in.Ingest(context.Background(), Source{Raw: transparentPNG(t, 2, 2)})
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))
}

func TestIngest_URL(t *testing.T) {
	body := transparentPNG(t, 3, 3)

	t.Run("success", func(t *testing.T) {
		f := &stubFetcher{result: FetchResult{StatusCode: http.StatusOK, Body: body}}
		rec := &stubRecorder{}
		in := NewIngestor(DefaultConfig(), f, nil, WithRecorder(rec))

		img, err := in.Ingest(context.Background(), Source{URL: "https://example.com/cat.png"})
		require.NoError(t, err)
		assert.Equal(t, 3, img.Width())
		assert.Equal(t, "https://example.com/cat.png", f.gotURL)
		require.Len(t, rec.seen, 1)
		assert.Equal(t, recordedIngest{SourceURL, "ok", len(body)}, rec.seen[0])
	})

	t.Run("non-2xx", func(t *testing.T) {
		f := &stubFetcher{result: FetchResult{StatusCode: http.StatusNotFound}}
		rec := &stubRecorder{}
		in := NewIngestor(DefaultConfig(), f, nil, WithRecorder(rec))

		_, err := in.Ingest(context.Background(), Source{URL: "https://example.com/missing.png"})
		require.Error(t, err)
		assert.True(t, types.IsErrorCode(err, types.ErrFetch))
		e, _ := types.AsError(err)
		assert.Equal(t, "Could not fetch image from URL", e.Message)
		assert.Equal(t, "fetch_error", rec.seen[0].outcome)
	})

	t.Run("transport error", func(t *testing.T) {
		f := &stubFetcher{err: errors.New("connection refused")}
		in := NewIngestor(DefaultConfig(), f, nil)

		_, err := in.Ingest(context.Background(), Source{URL: "http://example.com/x.png"})
		assert.True(t, types.IsErrorCode(err, types.ErrFetch))
	})
}

func TestHTTPFetcher(t *testing.T) {
	body := transparentPNG(t, 2, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		case "/big.png":
			_, _ = w.Write(bytes.Repeat([]byte{1}, 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), 32)

	res, err := f.Fetch(context.Background(), srv.URL+"/missing.png")
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	_, err = f.Fetch(context.Background(), srv.URL+"/big.png")
	require.Error(t, err)

	f = NewHTTPFetcher(srv.Client(), 0)
	res, err = f.Fetch(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, body, res.Body)
}

func TestCanonicalize_Downscale(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 100))
	img := Canonicalize(src, "png", 200)

	assert.True(t, img.Resized)
	assert.Equal(t, 200, img.Width())
	assert.Equal(t, 50, img.Height())

	img = Canonicalize(src, "png", 0)
	assert.False(t, img.Resized)
	assert.Equal(t, 400, img.Width())
}

// Package imaging loads document photos from scheme-tagged source handles
// and normalizes them into a fixed-format buffer the recognition engines
// can consume, downsampling oversized images under a hard memory bound.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"

	// Decoders for the formats document photos commonly arrive in.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"docscan/internal/logger"
)

const (
	// DefaultMaxDimension bounds the longer image side after normalization.
	DefaultMaxDimension = 4096

	// maxDownsampleFactor caps the integer downsample factor.
	maxDownsampleFactor = 8

	fileScheme    = "file://"
	contentScheme = "content://"
)

// Sentinel errors for the two failure classes of normalization.
var (
	// ErrSourceUnavailable is returned when a source handle cannot be
	// resolved: unsupported scheme, missing file, or unreadable resource.
	ErrSourceUnavailable = errors.New("image source unavailable")

	// ErrDecodeFailed is returned when image geometry or pixels cannot be
	// decoded from the resolved bytes.
	ErrDecodeFailed = errors.New("image decode failed")
)

// Image is a normalized, PNG-encoded pixel buffer ready for recognition.
// Callers must Release it once the engine has consumed it, on success and
// failure paths alike.
type Image struct {
	Data   []byte
	Width  int
	Height int
	Scale  int
}

// Release drops the pixel buffer. Safe to call more than once.
func (i *Image) Release() {
	if i != nil {
		i.Data = nil
	}
}

// Normalizer resolves source handles and produces normalized images.
type Normalizer struct {
	// MaxDimension bounds the longer side of the decoded image.
	MaxDimension int

	// ContentRoot is the directory content:// handles resolve against.
	ContentRoot string

	log zerolog.Logger
}

// NewNormalizer returns a Normalizer with the given bounds. A maxDim of 0
// selects DefaultMaxDimension.
func NewNormalizer(maxDim int, contentRoot string) *Normalizer {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	return &Normalizer{
		MaxDimension: maxDim,
		ContentRoot:  contentRoot,
		log:          logger.WithComponent("imaging"),
	}
}

// ResolveSource maps a scheme-tagged handle to the bytes it references.
// Supported handles are file:// paths, content:// handles (resolved against
// contentRoot) and bare filesystem paths.
func ResolveSource(source, contentRoot string) ([]byte, error) {
	path, err := resolvePath(source, contentRoot)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, source, err)
	}
	return data, nil
}

func resolvePath(source, contentRoot string) (string, error) {
	switch {
	case strings.HasPrefix(source, fileScheme):
		return strings.TrimPrefix(source, fileScheme), nil
	case strings.HasPrefix(source, contentScheme):
		if contentRoot == "" {
			return "", fmt.Errorf("%w: content handle %q with no content root configured", ErrSourceUnavailable, source)
		}
		return filepath.Join(contentRoot, strings.TrimPrefix(source, contentScheme)), nil
	case strings.Contains(source, "://"):
		return "", fmt.Errorf("%w: unsupported scheme in %q", ErrSourceUnavailable, source)
	case source == "":
		return "", fmt.Errorf("%w: empty source handle", ErrSourceUnavailable)
	default:
		return source, nil
	}
}

// Normalize resolves the handle and two-pass decodes the image: geometry
// first, then pixels at an integer downsample factor keeping both sides
// under MaxDimension. The result is re-encoded as PNG so every engine sees
// one fixed channel order and depth.
func (n *Normalizer) Normalize(ctx context.Context, source string) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := ResolveSource(source, n.ContentRoot)
	if err != nil {
		return nil, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: geometry of %s: %v", ErrDecodeFailed, source, err)
	}

	factor := downsampleFactor(cfg.Width, cfg.Height, n.MaxDimension)

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: pixels of %s: %v", ErrDecodeFailed, source, err)
	}
	data = nil // the encoded original is no longer needed

	width, height := cfg.Width, cfg.Height
	if factor > 1 {
		width = cfg.Width / factor
		height = cfg.Height / factor
		img = resize.Resize(uint(width), uint(height), img, resize.Bilinear)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: re-encode of %s: %v", ErrDecodeFailed, source, err)
	}

	n.log.Debug().
		Str("source", source).
		Str("format", format).
		Int("width", width).
		Int("height", height).
		Int("scale", factor).
		Msg("Image normalized")

	return &Image{
		Data:   buf.Bytes(),
		Width:  width,
		Height: height,
		Scale:  factor,
	}, nil
}

// downsampleFactor computes the integer factor s >= 1 used for the pixel
// pass: starting at 1, it doubles while half the image still exceeds maxDim
// at the current factor, capped at maxDownsampleFactor.
func downsampleFactor(width, height, maxDim int) int {
	s := 1
	for (height/2)/s >= maxDim && (width/2)/s >= maxDim && s < maxDownsampleFactor {
		s *= 2
	}
	return s
}

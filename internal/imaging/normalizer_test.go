package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestPNG writes a width x height PNG into dir and returns its path.
func writeTestPNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestDownsampleFactor(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		maxDim        int
		want          int
	}{
		{"small image untouched", 800, 600, 4096, 1},
		{"at bound untouched", 4096, 4096, 4096, 1},
		{"double the bound", 8192, 8192, 4096, 2},
		{"well past the bound", 16500, 16500, 4096, 4},
		{"huge image capped at eight", 200000, 200000, 4096, 8},
		{"one short side stays", 20000, 100, 4096, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, downsampleFactor(tt.width, tt.height, tt.maxDim))
		})
	}
}

func TestResolveSourceSchemes(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "doc.png", 10, 10)

	t.Run("bare path", func(t *testing.T) {
		data, err := ResolveSource(path, "")
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})

	t.Run("file scheme", func(t *testing.T) {
		data, err := ResolveSource("file://"+path, "")
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})

	t.Run("content handle against root", func(t *testing.T) {
		data, err := ResolveSource("content://doc.png", dir)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})

	t.Run("content handle without root", func(t *testing.T) {
		_, err := ResolveSource("content://doc.png", "")
		assert.ErrorIs(t, err, ErrSourceUnavailable)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := ResolveSource("ftp://host/doc.png", "")
		assert.ErrorIs(t, err, ErrSourceUnavailable)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ResolveSource(filepath.Join(dir, "absent.png"), "")
		assert.ErrorIs(t, err, ErrSourceUnavailable)
	})

	t.Run("empty handle", func(t *testing.T) {
		_, err := ResolveSource("", "")
		assert.ErrorIs(t, err, ErrSourceUnavailable)
	})
}

func TestNormalize(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "page.png", 120, 80)

	n := NewNormalizer(0, "")
	img, err := n.Normalize(context.Background(), path)
	require.NoError(t, err)
	defer img.Release()

	assert.Equal(t, 120, img.Width)
	assert.Equal(t, 80, img.Height)
	assert.Equal(t, 1, img.Scale)
	require.NotEmpty(t, img.Data)

	// The buffer must itself be decodable by the engine.
	cfg, err := png.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Width)
	assert.Equal(t, 80, cfg.Height)
}

func TestNormalizeDownsamples(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "big.png", 600, 500)

	// A tight bound forces repeated doubling of the factor.
	n := NewNormalizer(120, "")
	img, err := n.Normalize(context.Background(), path)
	require.NoError(t, err)
	defer img.Release()

	assert.Equal(t, 4, img.Scale)
	assert.Equal(t, 150, img.Width)
	assert.Equal(t, 125, img.Height)
}

func TestNormalizeCorruptData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image at all"), 0644))

	n := NewNormalizer(0, "")
	_, err := n.Normalize(context.Background(), path)
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

func TestNormalizeCancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "page.png", 10, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := NewNormalizer(0, "")
	_, err := n.Normalize(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImageRelease(t *testing.T) {
	img := &Image{Data: []byte{1, 2, 3}}
	img.Release()
	assert.Nil(t, img.Data)
	img.Release() // second release is harmless

	var nilImg *Image
	nilImg.Release() // nil receiver is harmless
}

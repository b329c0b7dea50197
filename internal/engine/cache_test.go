package engine

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docscan/internal/imaging"
	"docscan/internal/ocr"
)

func boxFixtures() []gosseract.BoundingBox {
	return []gosseract.BoundingBox{
		{Box: image.Rect(0, 0, 50, 20), Word: "Hello", Confidence: 96, BlockNum: 1, ParNum: 1, LineNum: 1, WordNum: 1},
		{Box: image.Rect(55, 0, 100, 20), Word: "world", Confidence: 90, BlockNum: 1, ParNum: 1, LineNum: 1, WordNum: 2},
		{Box: image.Rect(0, 25, 60, 45), Word: "second", Confidence: 80, BlockNum: 1, ParNum: 1, LineNum: 2, WordNum: 1},
		{Box: image.Rect(0, 100, 40, 120), Word: "footer", Confidence: 70, BlockNum: 2, ParNum: 1, LineNum: 1, WordNum: 1},
	}
}

type fakeEngine struct {
	mode   ocr.ScriptMode
	closed int
}

func (f *fakeEngine) Process(ctx context.Context, img *imaging.Image) (*ocr.Document, error) {
	return &ocr.Document{}, nil
}

func (f *fakeEngine) Close() error {
	f.closed++
	return nil
}

func TestCacheReturnsSameInstanceForSameMode(t *testing.T) {
	constructed := 0
	cache := NewCache(func(mode ocr.ScriptMode) (Engine, error) {
		constructed++
		return &fakeEngine{mode: mode}, nil
	})

	first, err := cache.Get(ocr.ScriptLatin)
	require.NoError(t, err)
	second, err := cache.Get(ocr.ScriptLatin)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, constructed)
}

func TestCacheSwapClosesPriorEngine(t *testing.T) {
	var engines []*fakeEngine
	cache := NewCache(func(mode ocr.ScriptMode) (Engine, error) {
		e := &fakeEngine{mode: mode}
		engines = append(engines, e)
		return e, nil
	})

	latin, err := cache.Get(ocr.ScriptLatin)
	require.NoError(t, err)

	korean, err := cache.Get(ocr.ScriptKorean)
	require.NoError(t, err)
	assert.NotSame(t, latin, korean)

	// Exactly one close of the prior engine, none of the new one.
	require.Len(t, engines, 2)
	assert.Equal(t, 1, engines[0].closed)
	assert.Equal(t, 0, engines[1].closed)
}

func TestCacheFactoryFailureLeavesCacheEmpty(t *testing.T) {
	boom := errors.New("no trained data")
	calls := 0
	cache := NewCache(func(mode ocr.ScriptMode) (Engine, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return &fakeEngine{mode: mode}, nil
	})

	_, err := cache.Get(ocr.ScriptChinese)
	require.ErrorIs(t, err, boom)

	// A later request must retry construction, not return a stale engine.
	eng, err := cache.Get(ocr.ScriptChinese)
	require.NoError(t, err)
	assert.NotNil(t, eng)
	assert.Equal(t, 2, calls)
}

func TestCacheClear(t *testing.T) {
	cache := NewCache(func(mode ocr.ScriptMode) (Engine, error) {
		return &fakeEngine{mode: mode}, nil
	})

	eng, err := cache.Get(ocr.ScriptLatin)
	require.NoError(t, err)
	fake := eng.(*fakeEngine)

	require.NoError(t, cache.Clear())
	assert.Equal(t, 1, fake.closed)

	// Clear on an empty cache is a no-op.
	require.NoError(t, cache.Clear())
	assert.Equal(t, 1, fake.closed)
}

func TestDocumentFromBoxesGrouping(t *testing.T) {
	// Exercised through the helper directly: two blocks, the first with
	// two lines.
	boxes := boxFixtures()
	doc := documentFromBoxes(boxes)

	require.Len(t, doc.Blocks, 2)
	require.Len(t, doc.Blocks[0].Lines, 2)
	require.Len(t, doc.Blocks[1].Lines, 1)
	assert.Equal(t, "Hello", doc.Blocks[0].Lines[0].Words[0].Text)
	require.NotNil(t, doc.Blocks[0].Lines[0].Words[0].Confidence)
	assert.InDelta(t, 0.96, *doc.Blocks[0].Lines[0].Words[0].Confidence, 1e-9)
}

func TestDocumentFromText(t *testing.T) {
	doc := documentFromText("one two\nthree\n\n")

	require.Len(t, doc.Blocks, 1)
	require.Len(t, doc.Blocks[0].Lines, 2)
	assert.Equal(t, "two", doc.Blocks[0].Lines[0].Words[1].Text)
	assert.Nil(t, doc.Blocks[0].Lines[0].Words[0].Confidence)

	assert.Empty(t, documentFromText("  \n ").Blocks)
}

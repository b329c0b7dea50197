// Package engine wraps the local Tesseract recognition engine and the
// script-keyed cache that bounds how many engine instances are alive.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"docscan/internal/imaging"
	"docscan/internal/ocr"
)

// ErrEngineFailure is returned when the local engine fails to process an
// image or cannot be constructed.
var ErrEngineFailure = errors.New("local recognition engine failure")

// Engine is the local recognition contract: one normalized image in, one
// hierarchical document out. Close releases native resources; after Close
// the engine must not be used.
type Engine interface {
	Process(ctx context.Context, img *imaging.Image) (*ocr.Document, error)
	Close() error
}

// scriptLanguages maps each concrete script mode to the Tesseract trained
// data it loads. ScriptAuto has no entry; it must be resolved before an
// engine is constructed.
var scriptLanguages = map[ocr.ScriptMode][]string{
	ocr.ScriptLatin:      {"eng"},
	ocr.ScriptChinese:    {"chi_sim", "chi_tra"},
	ocr.ScriptJapanese:   {"jpn"},
	ocr.ScriptKorean:     {"kor"},
	ocr.ScriptDevanagari: {"hin"},
}

// TesseractEngine is a gosseract-backed Engine configured for one script.
// A single instance is shared by concurrent recognition calls, so access
// to the native client is serialized.
type TesseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
	mode   ocr.ScriptMode
	closed bool
}

// NewTesseractEngine constructs an engine for a concrete script mode.
func NewTesseractEngine(mode ocr.ScriptMode) (*TesseractEngine, error) {
	langs, ok := scriptLanguages[mode]
	if !ok {
		return nil, fmt.Errorf("%w: no engine configuration for script mode %s", ErrEngineFailure, mode)
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(langs...); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: set languages %s: %v", ErrEngineFailure, strings.Join(langs, "+"), err)
	}
	return &TesseractEngine{client: client, mode: mode}, nil
}

// Mode returns the script mode the engine was configured with.
func (e *TesseractEngine) Mode() ocr.ScriptMode { return e.mode }

// Process runs recognition on a normalized image and returns the
// block/line/word hierarchy with per-word confidences in [0,1].
func (e *TesseractEngine) Process(ctx context.Context, img *imaging.Image) (*ocr.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("%w: engine already closed", ErrEngineFailure)
	}
	if img == nil || len(img.Data) == 0 {
		return nil, fmt.Errorf("%w: empty image buffer", ErrEngineFailure)
	}

	if err := e.client.SetImageFromBytes(img.Data); err != nil {
		return nil, fmt.Errorf("%w: set image: %v", ErrEngineFailure, err)
	}

	boxes, err := e.client.GetBoundingBoxesVerbose()
	if err == nil && len(boxes) > 0 {
		return documentFromBoxes(boxes), nil
	}

	// Word-level layout is unavailable; degrade to plain text split into a
	// single hierarchy with unreported confidences.
	text, terr := e.client.Text()
	if terr != nil {
		if err != nil {
			return nil, fmt.Errorf("%w: bounding boxes: %v", ErrEngineFailure, err)
		}
		return nil, fmt.Errorf("%w: text: %v", ErrEngineFailure, terr)
	}
	return documentFromText(text), nil
}

// Close releases the native Tesseract client. Idempotent.
func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.client.Close()
}

// documentFromBoxes groups word boxes into blocks and lines using the
// layout numbers Tesseract reports alongside each word.
func documentFromBoxes(boxes []gosseract.BoundingBox) *ocr.Document {
	doc := &ocr.Document{}
	lastBlock, lastPar, lastLine := -1, -1, -1

	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		if b.BlockNum != lastBlock {
			doc.Blocks = append(doc.Blocks, ocr.Block{})
			lastBlock = b.BlockNum
			lastPar, lastLine = -1, -1
		}
		block := &doc.Blocks[len(doc.Blocks)-1]
		if b.ParNum != lastPar || b.LineNum != lastLine {
			block.Lines = append(block.Lines, ocr.Line{})
			lastPar, lastLine = b.ParNum, b.LineNum
		}
		line := &block.Lines[len(block.Lines)-1]

		confidence := b.Confidence / 100.0
		line.Words = append(line.Words, ocr.Word{
			Text:       word,
			Confidence: &confidence,
			Box: &ocr.Rect{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
		})
	}
	return doc
}

// documentFromText builds a one-block hierarchy from linearized text.
func documentFromText(text string) *ocr.Document {
	doc := &ocr.Document{}
	text = strings.TrimSpace(text)
	if text == "" {
		return doc
	}
	block := ocr.Block{}
	for _, rawLine := range strings.Split(text, "\n") {
		fields := strings.Fields(rawLine)
		if len(fields) == 0 {
			continue
		}
		line := ocr.Line{Words: make([]ocr.Word, 0, len(fields))}
		for _, f := range fields {
			line.Words = append(line.Words, ocr.Word{Text: f})
		}
		block.Lines = append(block.Lines, line)
	}
	if len(block.Lines) > 0 {
		doc.Blocks = append(doc.Blocks, block)
	}
	return doc
}

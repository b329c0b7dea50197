// Package ocr defines the core data model shared by the recognition pipeline:
// script modes, confidence levels, the hierarchical engine output, and the
// flat recognition result produced by aggregation.
//
// Everything in this package is a plain value type. Results are built once by
// the aggregator and are immutable afterwards; nothing here touches an engine
// or performs I/O.
package ocr

import (
	"fmt"
	"strings"
	"time"
)

// ScriptMode selects which writing-system-specific engine configuration to use.
type ScriptMode int

const (
	// ScriptAuto defers script selection to the detector.
	ScriptAuto ScriptMode = iota
	ScriptLatin
	ScriptChinese
	ScriptJapanese
	ScriptKorean
	ScriptDevanagari
)

var scriptNames = map[ScriptMode]string{
	ScriptAuto:       "auto",
	ScriptLatin:      "latin",
	ScriptChinese:    "chinese",
	ScriptJapanese:   "japanese",
	ScriptKorean:     "korean",
	ScriptDevanagari: "devanagari",
}

// String returns the lowercase name used in flags, config and logs.
func (m ScriptMode) String() string {
	if name, ok := scriptNames[m]; ok {
		return name
	}
	return fmt.Sprintf("scriptmode(%d)", int(m))
}

// ParseScriptMode converts a flag or config value into a ScriptMode.
// Matching is case-insensitive; unknown values return an error.
func ParseScriptMode(s string) (ScriptMode, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for mode, name := range scriptNames {
		if name == needle {
			return mode, nil
		}
	}
	return ScriptAuto, fmt.Errorf("unknown script mode: %q", s)
}

// MarshalText makes ScriptMode render as its name in JSON output.
func (m ScriptMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ConfidenceLevel is an ordered bucketing of a [0,1] confidence value.
type ConfidenceLevel int

const (
	ConfidenceHigh ConfidenceLevel = iota
	ConfidenceMedium
	ConfidenceLow
	ConfidenceVeryLow
)

// Classify maps a confidence value to its level. Values are expected in
// [0,1]; out-of-range inputs are clamped by the threshold comparisons.
func Classify(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= 0.9:
		return ConfidenceHigh
	case confidence >= 0.7:
		return ConfidenceMedium
	case confidence >= 0.5:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// String returns the lowercase level name.
func (l ConfidenceLevel) String() string {
	switch l {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	case ConfidenceVeryLow:
		return "very_low"
	}
	return fmt.Sprintf("confidencelevel(%d)", int(l))
}

// MarshalText makes ConfidenceLevel render as its name in JSON output.
func (l ConfidenceLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Rect is a bounding box in pixel coordinates, origin at the upper-left
// corner of the source image.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Range is a half-open [Start, End) character range into an aggregated text.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Word is a single recognized token in the engine's hierarchical output.
// Confidence is nil when the engine does not report one.
type Word struct {
	Text       string
	Confidence *float64
	Box        *Rect
}

// Line groups words sharing a baseline, in reading order.
type Line struct {
	Words []Word
}

// Block groups lines forming a logical unit (paragraph, column, heading).
type Block struct {
	Lines []Line
}

// Document is the engine's native hierarchical result: ordered blocks of
// ordered lines of ordered words. It is a read-only tree of plain structs.
type Document struct {
	Blocks []Block
}

// WordSpan is one recognized word annotated with its confidence and its
// exact position in the aggregated text.
type WordSpan struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Level      ConfidenceLevel `json:"level"`
	Box        *Rect           `json:"box,omitempty"`
	Start      int             `json:"start"`
	End        int             `json:"end"`
}

// NeedsReview reports whether the word should be flagged for manual review.
func (w WordSpan) NeedsReview() bool {
	return w.Level == ConfidenceLow || w.Level == ConfidenceVeryLow
}

// RecognitionResult is the flat output of one local recognition pass.
type RecognitionResult struct {
	// Text is the concatenated document text in reading order.
	Text string `json:"text"`

	// Script is the script the text was recognized as (never ScriptAuto).
	Script ScriptMode `json:"script"`

	// OverallConfidence is the mean of per-word confidences, 0 if no words.
	OverallConfidence float64 `json:"overall_confidence"`

	// Words lists every recognized word with offsets into Text.
	Words []WordSpan `json:"words,omitempty"`

	// LowConfidenceRanges are the character ranges of Low/VeryLow words.
	LowConfidenceRanges []Range `json:"low_confidence_ranges,omitempty"`

	// ProcessingTime is how long the local pass took end to end.
	ProcessingTime time.Duration `json:"processing_time"`

	// EngineUsed is the script mode the engine was configured with.
	EngineUsed ScriptMode `json:"engine_used"`
}

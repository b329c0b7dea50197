package ocr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confPtr(c float64) *float64 { return &c }

func word(text string, confidence float64) Word {
	return Word{Text: text, Confidence: confPtr(confidence)}
}

func TestAggregateEmpty(t *testing.T) {
	for _, doc := range []*Document{nil, {}, {Blocks: []Block{{}}}} {
		result := Aggregate(doc, ScriptLatin, ScriptLatin, time.Millisecond)
		assert.Equal(t, "", result.Text)
		assert.Empty(t, result.Words)
		assert.Zero(t, result.OverallConfidence)
		assert.Empty(t, result.LowConfidenceRanges)
	}
}

func TestAggregateSeparatorsAndOffsets(t *testing.T) {
	doc := &Document{Blocks: []Block{
		{Lines: []Line{
			{Words: []Word{word("Dear", 0.95), word("Sir", 0.92)}},
			{Words: []Word{word("thank", 0.90), word("you", 0.88)}},
		}},
		{Lines: []Line{
			{Words: []Word{word("Regards", 0.97)}},
		}},
	}}

	result := Aggregate(doc, ScriptLatin, ScriptLatin, time.Millisecond)

	assert.Equal(t, "Dear Sir\nthank you\n\nRegards", result.Text)
	require.Len(t, result.Words, 5)

	// Every span must reproduce its own text when sliced out.
	for _, span := range result.Words {
		assert.Equal(t, span.Text, result.Text[span.Start:span.End])
	}

	// Offsets are monotonically non-decreasing and never overlap.
	total := 0
	for i := 1; i < len(result.Words); i++ {
		assert.GreaterOrEqual(t, result.Words[i].Start, result.Words[i-1].End)
	}
	for _, span := range result.Words {
		assert.LessOrEqual(t, span.Start, span.End)
		total += span.End - span.Start
	}
	assert.LessOrEqual(t, total, len(result.Text))
}

func TestAggregateSkipsEmptyBlocksAndLines(t *testing.T) {
	// Engines sometimes report empty leading or interleaved layout nodes;
	// those must not produce stray separators.
	doc := &Document{Blocks: []Block{
		{},
		{Lines: []Line{
			{},
			{Words: []Word{word("hello", 0.9)}},
		}},
		{Lines: []Line{{}}},
		{Lines: []Line{
			{Words: []Word{word("world", 0.9)}},
		}},
	}}

	result := Aggregate(doc, ScriptLatin, ScriptLatin, 0)

	assert.Equal(t, "hello\n\nworld", result.Text)
	require.Len(t, result.Words, 2)
	assert.Equal(t, 0, result.Words[0].Start)
	assert.Equal(t, "world", result.Text[result.Words[1].Start:result.Words[1].End])
}

func TestAggregateDefaultConfidence(t *testing.T) {
	doc := &Document{Blocks: []Block{
		{Lines: []Line{{Words: []Word{{Text: "silent"}}}}},
	}}

	result := Aggregate(doc, ScriptLatin, ScriptLatin, 0)

	require.Len(t, result.Words, 1)
	assert.Equal(t, DefaultWordConfidence, result.Words[0].Confidence)
	assert.Equal(t, ConfidenceHigh, result.Words[0].Level)
	assert.Equal(t, DefaultWordConfidence, result.OverallConfidence)
}

func TestAggregateLowConfidenceRanges(t *testing.T) {
	doc := &Document{Blocks: []Block{
		{Lines: []Line{{Words: []Word{
			word("clear", 0.95),
			word("smudged", 0.40),
			word("fine", 0.80),
			word("torn", 0.55),
		}}}},
	}}

	result := Aggregate(doc, ScriptLatin, ScriptLatin, 0)

	require.Len(t, result.LowConfidenceRanges, 2)
	assert.Equal(t, "smudged", result.Text[result.LowConfidenceRanges[0].Start:result.LowConfidenceRanges[0].End])
	assert.Equal(t, "torn", result.Text[result.LowConfidenceRanges[1].Start:result.LowConfidenceRanges[1].End])
}

func TestAggregateOverallConfidenceMean(t *testing.T) {
	doc := &Document{Blocks: []Block{
		{Lines: []Line{{Words: []Word{word("a", 0.4), word("b", 0.6), word("c", 0.8)}}}},
	}}

	result := Aggregate(doc, ScriptChinese, ScriptChinese, 0)

	assert.InDelta(t, 0.6, result.OverallConfidence, 1e-9)
	assert.Equal(t, ScriptChinese, result.Script)
	assert.Equal(t, ScriptChinese, result.EngineUsed)
}

func TestAggregateDeterministic(t *testing.T) {
	doc := &Document{Blocks: []Block{
		{Lines: []Line{{Words: []Word{word("same", 0.7), word("input", 0.6)}}}},
	}}

	first := Aggregate(doc, ScriptLatin, ScriptLatin, 0)
	second := Aggregate(doc, ScriptLatin, ScriptLatin, 0)

	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Words, second.Words)
	assert.Equal(t, first.LowConfidenceRanges, second.LowConfidenceRanges)
}

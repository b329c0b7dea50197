package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		want       ConfidenceLevel
	}{
		{"perfect", 1.0, ConfidenceHigh},
		{"high boundary", 0.9, ConfidenceHigh},
		{"medium", 0.85, ConfidenceMedium},
		{"medium boundary", 0.7, ConfidenceMedium},
		{"low", 0.6, ConfidenceLow},
		{"low boundary", 0.5, ConfidenceLow},
		{"very low", 0.49, ConfidenceVeryLow},
		{"zero", 0.0, ConfidenceVeryLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.confidence))
		})
	}
}

// Higher confidence must never map to a lower level. Levels are ordered
// High < Medium < Low < VeryLow numerically, so the level value must be
// non-increasing as confidence rises.
func TestClassifyMonotonic(t *testing.T) {
	prev := ConfidenceVeryLow
	for c := 0.0; c <= 1.0001; c += 0.001 {
		level := Classify(c)
		assert.LessOrEqual(t, level, prev, "confidence %v regressed to %v after %v", c, level, prev)
		prev = level
	}
}

func TestWordSpanNeedsReview(t *testing.T) {
	assert.False(t, WordSpan{Level: ConfidenceHigh}.NeedsReview())
	assert.False(t, WordSpan{Level: ConfidenceMedium}.NeedsReview())
	assert.True(t, WordSpan{Level: ConfidenceLow}.NeedsReview())
	assert.True(t, WordSpan{Level: ConfidenceVeryLow}.NeedsReview())
}

func TestParseScriptMode(t *testing.T) {
	for _, name := range []string{"auto", "latin", "chinese", "japanese", "korean", "devanagari"} {
		mode, err := ParseScriptMode(name)
		require.NoError(t, err)
		assert.Equal(t, name, mode.String())
	}

	mode, err := ParseScriptMode("  Japanese ")
	require.NoError(t, err)
	assert.Equal(t, ScriptJapanese, mode)

	_, err = ParseScriptMode("klingon")
	assert.Error(t, err)
}

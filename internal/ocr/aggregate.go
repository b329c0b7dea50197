package ocr

import (
	"strings"
	"time"
)

// DefaultWordConfidence is assumed for words whose engine reported no
// confidence. Engines that stay silent are treated as moderately
// trustworthy rather than unknown.
const DefaultWordConfidence = 0.9

// Aggregate flattens a hierarchical engine result into a RecognitionResult.
//
// Words on the same line are joined with a single space, lines within a
// block with a newline, and blocks with a blank line. Blocks and lines
// without words contribute no separators, so empty leading hierarchy
// reported by an engine never prefixes the text. Each WordSpan records
// the half-open [Start, End) range of its text in the concatenated string,
// separators included in the offset arithmetic. The transform is pure:
// identical input always yields identical text and offsets.
func Aggregate(doc *Document, script, engineUsed ScriptMode, elapsed time.Duration) *RecognitionResult {
	result := &RecognitionResult{
		Script:         script,
		ProcessingTime: elapsed,
		EngineUsed:     engineUsed,
	}
	if doc == nil {
		return result
	}

	var sb strings.Builder
	var confidenceSum float64

	wroteBlock := false
	for _, block := range doc.Blocks {
		wroteLine := false
		for _, line := range block.Lines {
			if len(line.Words) == 0 {
				continue
			}
			switch {
			case wroteLine:
				sb.WriteByte('\n')
			case wroteBlock:
				sb.WriteString("\n\n")
			}
			wroteLine = true
			for wi, word := range line.Words {
				if wi > 0 {
					sb.WriteByte(' ')
				}
				confidence := DefaultWordConfidence
				if word.Confidence != nil {
					confidence = *word.Confidence
				}
				start := sb.Len()
				sb.WriteString(word.Text)
				span := WordSpan{
					Text:       word.Text,
					Confidence: confidence,
					Level:      Classify(confidence),
					Box:        word.Box,
					Start:      start,
					End:        sb.Len(),
				}
				result.Words = append(result.Words, span)
				confidenceSum += confidence
				if span.NeedsReview() {
					result.LowConfidenceRanges = append(result.LowConfidenceRanges, Range{Start: span.Start, End: span.End})
				}
			}
		}
		wroteBlock = wroteBlock || wroteLine
	}

	result.Text = sb.String()
	if len(result.Words) > 0 {
		result.OverallConfidence = confidenceSum / float64(len(result.Words))
	}
	return result
}

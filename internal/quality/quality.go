// Package quality derives reliability statistics from a recognition result
// and decides whether the remote provider should be consulted. Analysis is
// pure: the same RecognitionResult always yields the same metrics.
package quality

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"docscan/internal/ocr"
)

// Level is the overall quality classification of a recognition result.
type Level int

const (
	Excellent Level = iota
	Good
	Fair
	Poor
	Failed
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case Excellent:
		return "excellent"
	case Good:
		return "good"
	case Fair:
		return "fair"
	case Poor:
		return "poor"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// MarshalText makes Level render as its name in JSON output.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Metrics summarizes the reliability of one recognition result.
type Metrics struct {
	OverallConfidence   float64  `json:"overall_confidence"`
	LowConfidenceRatio  float64  `json:"low_confidence_ratio"`
	Variance            float64  `json:"variance"`
	StdDev              float64  `json:"std_dev"`
	WordCount           int      `json:"word_count"`
	AvgWordLength       float64  `json:"avg_word_length"`
	Quality             Level    `json:"quality"`
	IsLikelyHandwritten bool     `json:"is_likely_handwritten"`
	RecommendFallback   bool     `json:"recommend_fallback"`
	Reasons             []string `json:"reasons,omitempty"`
}

const (
	// lowConfidenceFloor is the per-word confidence below which a word
	// counts toward the low-confidence ratio.
	lowConfidenceFloor = 0.5

	// minTextRunes is the shortest text considered a recognition at all.
	minTextRunes = 3

	// Mixed-content and short-sample signals.
	mixedContentVariance  = 0.09
	uncertainConfidence   = 0.70
	shortSampleWordCount  = 10
	shortSampleConfidence = 0.50
)

// Analyze computes quality metrics for a local recognition result and the
// fallback recommendation under the given policy.
func Analyze(result *ocr.RecognitionResult, policy FallbackPolicy) Metrics {
	if result == nil || utf8.RuneCountInString(strings.TrimSpace(result.Text)) < minTextRunes {
		return Metrics{
			Quality:           Failed,
			RecommendFallback: true,
			Reasons:           []string{"No text recognized"},
		}
	}

	m := Metrics{
		OverallConfidence: result.OverallConfidence,
		WordCount:         len(result.Words),
	}

	var lengthSum, squaredDeviationSum float64
	lowCount := 0
	for _, w := range result.Words {
		if w.Confidence < lowConfidenceFloor {
			lowCount++
		}
		lengthSum += float64(utf8.RuneCountInString(w.Text))
		d := w.Confidence - result.OverallConfidence
		squaredDeviationSum += d * d
	}
	if m.WordCount > 0 {
		m.LowConfidenceRatio = float64(lowCount) / float64(m.WordCount)
		m.AvgWordLength = lengthSum / float64(m.WordCount)
		m.Variance = squaredDeviationSum / float64(m.WordCount)
		m.StdDev = math.Sqrt(m.Variance)
	}

	m.Quality = classify(m.OverallConfidence, m.LowConfidenceRatio)
	m.IsLikelyHandwritten = handwritingVote(m, policy)

	if m.Quality == Failed {
		m.RecommendFallback = true
		m.Reasons = []string{"Recognition produced no usable confidence signal"}
		return m
	}

	if m.Quality == Poor {
		m.Reasons = append(m.Reasons, "Overall recognition quality is poor")
	}

	threshold := policy.PrintedThreshold
	maxRatio := policy.MaxLowConfRatioPrinted
	if m.IsLikelyHandwritten {
		threshold = policy.HandwrittenThreshold
		maxRatio = policy.MaxLowConfRatioHandwritten
	}
	if m.OverallConfidence < threshold {
		m.Reasons = append(m.Reasons, fmt.Sprintf("Confidence %.2f below threshold %.2f", m.OverallConfidence, threshold))
	}
	if m.LowConfidenceRatio > maxRatio {
		m.Reasons = append(m.Reasons, fmt.Sprintf("Low-confidence word ratio %.2f above limit %.2f", m.LowConfidenceRatio, maxRatio))
	}
	if m.IsLikelyHandwritten && m.OverallConfidence < uncertainConfidence {
		m.Reasons = append(m.Reasons, "Text appears handwritten with uncertain confidence")
	}
	if m.Variance > mixedContentVariance && m.OverallConfidence < uncertainConfidence {
		m.Reasons = append(m.Reasons, "Confidence spread suggests mixed printed and handwritten content")
	}
	if m.WordCount < shortSampleWordCount && m.OverallConfidence < shortSampleConfidence {
		m.Reasons = append(m.Reasons, "Short sample with low confidence")
	}

	m.RecommendFallback = len(m.Reasons) > 0
	return m
}

// classify applies the quality ladder; the first matching rule wins.
func classify(confidence, lowRatio float64) Level {
	switch {
	case confidence >= 0.85 && lowRatio < 0.10:
		return Excellent
	case confidence >= 0.70 && lowRatio < 0.25:
		return Good
	case confidence >= 0.50 && lowRatio < 0.50:
		return Fair
	case confidence > 0:
		return Poor
	default:
		return Failed
	}
}

// handwritingVote infers handwriting likelihood from confidence statistics
// alone. At least two of the three indicators must agree.
func handwritingVote(m Metrics, policy FallbackPolicy) bool {
	votes := 0
	if m.Variance > policy.HandwritingVarianceThreshold {
		votes++
	}
	if m.OverallConfidence >= policy.HandwritingConfidenceLow && m.OverallConfidence <= policy.HandwritingConfidenceHigh {
		votes++
	}
	if m.LowConfidenceRatio > policy.HandwritingLowConfRatio {
		votes++
	}
	return votes >= 2
}

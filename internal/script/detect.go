// Package script classifies recognized text into writing systems by
// Unicode block membership. Detection is a one-shot heuristic over the
// output of a baseline Latin recognition pass, not iterative refinement.
package script

import (
	"strings"
	"unicode"

	"docscan/internal/ocr"
)

// Detect tallies every character of text into a script bucket and returns
// the majority script. Ties break in favor of the script seen first in
// document order. The second return is false when the text is blank or
// contains no classifiable characters, meaning the script is undetermined.
func Detect(text string) (ocr.ScriptMode, bool) {
	if strings.TrimSpace(text) == "" {
		return ocr.ScriptAuto, false
	}

	counts := make(map[ocr.ScriptMode]int)
	var order []ocr.ScriptMode

	for _, r := range text {
		mode, ok := classifyRune(r)
		if !ok {
			continue
		}
		if counts[mode] == 0 {
			order = append(order, mode)
		}
		counts[mode]++
	}

	if len(order) == 0 {
		return ocr.ScriptAuto, false
	}

	best := order[0]
	for _, mode := range order[1:] {
		if counts[mode] > counts[best] {
			best = mode
		}
	}
	return best, true
}

// classifyRune maps a rune to a script bucket. Digits, punctuation and
// characters outside the tracked blocks are ignored.
func classifyRune(r rune) (ocr.ScriptMode, bool) {
	switch {
	case unicode.Is(unicode.Han, r):
		return ocr.ScriptChinese, true
	case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
		return ocr.ScriptJapanese, true
	case unicode.Is(unicode.Hangul, r):
		return ocr.ScriptKorean, true
	case unicode.Is(unicode.Devanagari, r):
		return ocr.ScriptDevanagari, true
	case unicode.Is(unicode.Latin, r):
		return ocr.ScriptLatin, true
	default:
		return ocr.ScriptAuto, false
	}
}

package quality

// FallbackPolicy carries the tuning thresholds for the fallback decision.
// The handwriting vote constants are heuristic values preserved from field
// tuning; they are configuration, not load-bearing exact numbers.
type FallbackPolicy struct {
	// FallbackEnabled allows the remote provider to be invoked at all.
	FallbackEnabled bool

	// AlwaysUseRemote skips the local pipeline entirely.
	AlwaysUseRemote bool

	// PrintedThreshold is the minimum acceptable confidence for printed text.
	PrintedThreshold float64

	// HandwrittenThreshold is the more lenient minimum for handwriting.
	HandwrittenThreshold float64

	// HandwritingVarianceThreshold is vote indicator (a): confidence
	// variance above this suggests handwriting.
	HandwritingVarianceThreshold float64

	// MaxLowConfRatioPrinted caps the tolerable low-confidence word ratio
	// for printed text.
	MaxLowConfRatioPrinted float64

	// MaxLowConfRatioHandwritten caps the ratio for handwriting.
	MaxLowConfRatioHandwritten float64

	// HandwritingConfidenceLow/High bound vote indicator (b): an overall
	// confidence inside this band is typical of handwriting.
	HandwritingConfidenceLow  float64
	HandwritingConfidenceHigh float64

	// HandwritingLowConfRatio is vote indicator (c): a low-confidence word
	// ratio above this suggests handwriting.
	HandwritingLowConfRatio float64
}

// DefaultPolicy balances local speed against remote accuracy.
func DefaultPolicy() FallbackPolicy {
	return FallbackPolicy{
		FallbackEnabled:              true,
		PrintedThreshold:             0.65,
		HandwrittenThreshold:         0.45,
		HandwritingVarianceThreshold: 0.12,
		MaxLowConfRatioPrinted:       0.25,
		MaxLowConfRatioHandwritten:   0.50,
		HandwritingConfidenceLow:     0.30,
		HandwritingConfidenceHigh:    0.75,
		HandwritingLowConfRatio:      0.20,
	}
}

// ConservativePolicy rarely falls back: only clearly unreliable local
// results trigger the remote provider.
func ConservativePolicy() FallbackPolicy {
	p := DefaultPolicy()
	p.PrintedThreshold = 0.50
	p.HandwrittenThreshold = 0.35
	p.MaxLowConfRatioPrinted = 0.40
	p.MaxLowConfRatioHandwritten = 0.60
	return p
}

// AggressivePolicy falls back eagerly, trading latency for accuracy.
func AggressivePolicy() FallbackPolicy {
	p := DefaultPolicy()
	p.PrintedThreshold = 0.80
	p.HandwrittenThreshold = 0.60
	p.MaxLowConfRatioPrinted = 0.15
	p.MaxLowConfRatioHandwritten = 0.35
	return p
}

// RemoteOnlyPolicy always uses the remote provider.
func RemoteOnlyPolicy() FallbackPolicy {
	p := DefaultPolicy()
	p.AlwaysUseRemote = true
	return p
}

// LocalOnlyPolicy never invokes the remote provider.
func LocalOnlyPolicy() FallbackPolicy {
	p := DefaultPolicy()
	p.FallbackEnabled = false
	return p
}

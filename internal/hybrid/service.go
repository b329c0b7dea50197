// Package hybrid sequences the recognition pipeline and decides, per image,
// whether the fast local engine's result is trustworthy or whether the
// slower remote provider should be consulted instead. It is the only
// component aware of both providers and the only one with cancellation
// checkpoints.
package hybrid

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"docscan/internal/engine"
	"docscan/internal/imaging"
	"docscan/internal/logger"
	"docscan/internal/ocr"
	"docscan/internal/quality"
	"docscan/internal/script"
)

// Source identifies which provider produced a unified result.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// UnifiedResult is the single result type returned to callers regardless
// of which provider produced the text.
type UnifiedResult struct {
	Text       string         `json:"text"`
	Confidence *float64       `json:"confidence,omitempty"`
	Source     Source         `json:"source"`
	Provider   string         `json:"provider"`
	Script     ocr.ScriptMode `json:"script"`
	Duration   time.Duration  `json:"duration"`

	// Local carries the local pass result when one was produced, even if
	// the remote text was ultimately preferred.
	Local *ocr.RecognitionResult `json:"local,omitempty"`

	// Metrics carries the quality analysis of the local pass, if any.
	Metrics *quality.Metrics `json:"metrics,omitempty"`
}

// RemoteResult is the opaque output of the remote provider: text plus an
// optional confidence.
type RemoteResult struct {
	Text       string
	Confidence *float64
}

// RemoteProvider is the narrow contract for the remote OCR service. The
// orchestrator treats it as opaque and never retries it.
type RemoteProvider interface {
	Name() string
	Recognize(ctx context.Context, source string) (*RemoteResult, error)
}

// SettingsStore supplies persisted user preferences. Reads may fail
// transiently; the orchestrator substitutes documented defaults on failure
// instead of propagating the error.
type SettingsStore interface {
	PreferredScriptMode() (ocr.ScriptMode, error)
	FallbackEnabled() (bool, error)
	ConfidenceThreshold() (float64, error)
	AlwaysUseRemote() (bool, error)
}

// Documented defaults used when a settings read fails.
const (
	defaultFallbackEnabled     = true
	defaultConfidenceThreshold = 0.5
	defaultAlwaysUseRemote     = false
)

// Service is the hybrid decision orchestrator.
type Service struct {
	cache      *engine.Cache
	normalizer *imaging.Normalizer
	remote     RemoteProvider
	settings   SettingsStore
	policy     quality.FallbackPolicy
	log        zerolog.Logger
}

// NewService wires the pipeline. remote and settings may be nil: without a
// remote the service is local-only, without settings the defaults apply.
func NewService(cache *engine.Cache, normalizer *imaging.Normalizer, remote RemoteProvider, settings SettingsStore, policy quality.FallbackPolicy) *Service {
	return &Service{
		cache:      cache,
		normalizer: normalizer,
		remote:     remote,
		settings:   settings,
		policy:     policy,
		log:        logger.WithComponent("hybrid"),
	}
}

type callOptions struct {
	forceScript ocr.ScriptMode
	hasScript   bool
	skipRemote  bool
	skipLocal   bool
}

// RecognizeOptions narrows a single recognition call. The zero value runs
// the full hybrid pipeline with settings-driven script selection. The
// fields combine: a forced script with LocalOnly set keeps the remote
// provider out of the call even when quality is poor.
type RecognizeOptions struct {
	// Script forces an engine script mode when ForceScript is set,
	// bypassing both the settings preference and auto-detection.
	Script      ocr.ScriptMode
	ForceScript bool

	// LocalOnly suppresses the remote provider regardless of quality.
	LocalOnly bool

	// RemoteOnly skips the local engine entirely. Mutually exclusive
	// with LocalOnly.
	RemoteOnly bool
}

// RecognizeWithOptions runs the pipeline narrowed by opts.
func (s *Service) RecognizeWithOptions(ctx context.Context, source string, opts RecognizeOptions) (*UnifiedResult, error) {
	if opts.LocalOnly && opts.RemoteOnly {
		return nil, wrapError("Recognize", errors.New("local-only and remote-only are mutually exclusive"), "")
	}
	return s.recognize(ctx, source, callOptions{
		forceScript: opts.Script,
		hasScript:   opts.ForceScript,
		skipRemote:  opts.LocalOnly,
		skipLocal:   opts.RemoteOnly,
	})
}

// Recognize runs the full hybrid pipeline on a source handle.
func (s *Service) Recognize(ctx context.Context, source string) (*UnifiedResult, error) {
	return s.recognize(ctx, source, callOptions{})
}

// RecognizeLocalOnly runs the local pipeline without ever consulting the
// remote provider, regardless of quality.
func (s *Service) RecognizeLocalOnly(ctx context.Context, source string) (*UnifiedResult, error) {
	return s.recognize(ctx, source, callOptions{skipRemote: true})
}

// RecognizeRemoteOnly sends the source straight to the remote provider,
// leaving the engine cache untouched.
func (s *Service) RecognizeRemoteOnly(ctx context.Context, source string) (*UnifiedResult, error) {
	return s.recognize(ctx, source, callOptions{skipLocal: true})
}

// RecognizeWithScript forces an explicit script mode, bypassing both the
// settings store preference and auto-detection. Diagnostic use.
func (s *Service) RecognizeWithScript(ctx context.Context, source string, mode ocr.ScriptMode) (*UnifiedResult, error) {
	return s.recognize(ctx, source, callOptions{forceScript: mode, hasScript: true})
}

func (s *Service) recognize(ctx context.Context, source string, opts callOptions) (*UnifiedResult, error) {
	const op = "Recognize"
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	always := s.readAlwaysUseRemote()
	if opts.skipLocal || (always && !opts.skipRemote) {
		if s.remote == nil {
			if opts.skipLocal {
				return nil, wrapError(op, ErrNoProvider, "remote-only recognition without a remote provider")
			}
			// Always-remote preference without a configured remote
			// degrades to the local pipeline.
			s.log.Warn().Msg("Always-remote requested but no remote provider configured, using local engine")
		} else {
			unified, err := s.recognizeRemote(ctx, source, nil, nil, start)
			if err != nil {
				return nil, wrapError(op, err, "remote recognition")
			}
			return unified, nil
		}
	}

	local, err := s.recognizeLocal(ctx, source, opts)
	if err != nil {
		// Cancellation and unreadable/undecodable sources are fatal:
		// there is nothing the remote provider could do better with the
		// same handle, and cancellation never triggers fallback.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, imaging.ErrSourceUnavailable) || errors.Is(err, imaging.ErrDecodeFailed) {
			return nil, wrapError(op, err, "local pipeline")
		}
		// Engine failure: the remote provider is the only path left.
		if s.remote != nil && !opts.skipRemote && s.readFallbackEnabled() {
			s.log.Warn().Err(err).Msg("Local engine failed, attempting remote recognition")
			unified, remoteErr := s.recognizeRemote(ctx, source, nil, nil, start)
			if remoteErr == nil {
				return unified, nil
			}
			if errors.Is(remoteErr, context.Canceled) || errors.Is(remoteErr, context.DeadlineExceeded) {
				return nil, remoteErr
			}
			s.log.Error().Err(remoteErr).Msg("Remote recognition also failed")
		}
		return nil, wrapError(op, err, "local pipeline")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics := quality.Analyze(local, s.policy)
	s.log.Debug().
		Str("quality", metrics.Quality.String()).
		Float64("confidence", metrics.OverallConfidence).
		Float64("low_conf_ratio", metrics.LowConfidenceRatio).
		Bool("handwritten", metrics.IsLikelyHandwritten).
		Bool("recommend_fallback", metrics.RecommendFallback).
		Strs("reasons", metrics.Reasons).
		Msg("Quality analysis completed")

	threshold := s.readConfidenceThreshold()
	shouldFallback := s.readFallbackEnabled() &&
		s.remote != nil &&
		!opts.skipRemote &&
		(metrics.RecommendFallback || metrics.OverallConfidence < threshold)

	if shouldFallback {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		unified, remoteErr := s.recognizeRemote(ctx, source, local, &metrics, start)
		if remoteErr == nil {
			return unified, nil
		}
		if errors.Is(remoteErr, context.Canceled) || errors.Is(remoteErr, context.DeadlineExceeded) {
			return nil, remoteErr
		}
		// The local pass is a valid fallback of last resort: degrade to
		// it and log the remote error rather than surfacing it.
		s.log.Warn().Err(remoteErr).Msg("Remote recognition failed, degrading to local result")
	}

	confidence := metrics.OverallConfidence
	return &UnifiedResult{
		Text:       local.Text,
		Confidence: &confidence,
		Source:     SourceLocal,
		Provider:   "tesseract",
		Script:     local.Script,
		Duration:   time.Since(start),
		Local:      local,
		Metrics:    &metrics,
	}, nil
}

// recognizeLocal runs normalize, optional script detection, recognition
// and aggregation, with a cancellation checkpoint between each stage. The
// decoded image buffer is released on every path; the cached engine is
// cache-owned and never closed here.
func (s *Service) recognizeLocal(ctx context.Context, source string, opts callOptions) (*ocr.RecognitionResult, error) {
	start := time.Now()

	mode := s.readPreferredScriptMode()
	if opts.hasScript {
		mode = opts.forceScript
	}

	img, err := s.normalizer.Normalize(ctx, source)
	if err != nil {
		return nil, err
	}
	defer img.Release()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var baseline *ocr.RecognitionResult
	if mode == ocr.ScriptAuto {
		mode, baseline, err = s.detectScript(ctx, img, start)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	// The detection pass already ran the Latin engine over this image;
	// reuse its result instead of recognizing twice.
	if baseline != nil && mode == ocr.ScriptLatin {
		return baseline, nil
	}

	eng, err := s.cache.Get(mode)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := eng.Process(ctx, img)
	if err != nil {
		return nil, err
	}

	result := ocr.Aggregate(doc, mode, mode, time.Since(start))
	s.log.Info().
		Str("script", mode.String()).
		Int("words", len(result.Words)).
		Float64("confidence", result.OverallConfidence).
		Dur("duration", result.ProcessingTime).
		Msg("Local recognition completed")
	return result, nil
}

// detectScript runs a baseline Latin pass and classifies the result's
// characters by Unicode block, returning the majority script. Blank output
// leaves the script undetermined and recognition proceeds with Latin.
func (s *Service) detectScript(ctx context.Context, img *imaging.Image, start time.Time) (ocr.ScriptMode, *ocr.RecognitionResult, error) {
	eng, err := s.cache.Get(ocr.ScriptLatin)
	if err != nil {
		return ocr.ScriptAuto, nil, err
	}

	doc, err := eng.Process(ctx, img)
	if err != nil {
		return ocr.ScriptAuto, nil, err
	}

	baseline := ocr.Aggregate(doc, ocr.ScriptLatin, ocr.ScriptLatin, time.Since(start))
	mode, ok := script.Detect(baseline.Text)
	if !ok {
		s.log.Debug().Msg("Script undetermined, defaulting to latin")
		return ocr.ScriptLatin, baseline, nil
	}

	s.log.Debug().Str("script", mode.String()).Msg("Script detected")
	return mode, baseline, nil
}

func (s *Service) recognizeRemote(ctx context.Context, source string, local *ocr.RecognitionResult, metrics *quality.Metrics, start time.Time) (*UnifiedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	remote, err := s.remote.Recognize(ctx, source)
	if err != nil {
		return nil, err
	}

	detected, _ := script.Detect(remote.Text)
	s.log.Info().
		Str("provider", s.remote.Name()).
		Int("text_length", len(remote.Text)).
		Msg("Remote recognition completed")

	return &UnifiedResult{
		Text:       remote.Text,
		Confidence: remote.Confidence,
		Source:     SourceRemote,
		Provider:   s.remote.Name(),
		Script:     detected,
		Duration:   time.Since(start),
		Local:      local,
		Metrics:    metrics,
	}, nil
}

// DetectScript runs only normalization and the baseline detection pass and
// returns the detected script. Diagnostic entry point.
func (s *Service) DetectScript(ctx context.Context, source string) (ocr.ScriptMode, error) {
	img, err := s.normalizer.Normalize(ctx, source)
	if err != nil {
		return ocr.ScriptAuto, err
	}
	defer img.Release()

	mode, _, err := s.detectScript(ctx, img, time.Now())
	if err != nil {
		return ocr.ScriptAuto, err
	}
	return mode, nil
}

// Close releases the cached local engine.
func (s *Service) Close() error {
	return s.cache.Clear()
}

func (s *Service) readPreferredScriptMode() ocr.ScriptMode {
	if s.settings == nil {
		return ocr.ScriptAuto
	}
	mode, err := s.settings.PreferredScriptMode()
	if err != nil {
		s.log.Warn().Err(err).Msg("Settings read failed, defaulting script mode to auto")
		return ocr.ScriptAuto
	}
	return mode
}

func (s *Service) readFallbackEnabled() bool {
	if !s.policy.FallbackEnabled {
		return false
	}
	if s.settings == nil {
		return defaultFallbackEnabled
	}
	enabled, err := s.settings.FallbackEnabled()
	if err != nil {
		s.log.Warn().Err(err).Msg("Settings read failed, defaulting fallback to enabled")
		return defaultFallbackEnabled
	}
	return enabled
}

func (s *Service) readConfidenceThreshold() float64 {
	if s.settings == nil {
		return defaultConfidenceThreshold
	}
	threshold, err := s.settings.ConfidenceThreshold()
	if err != nil {
		s.log.Warn().Err(err).Float64("default", defaultConfidenceThreshold).Msg("Settings read failed, using default threshold")
		return defaultConfidenceThreshold
	}
	return threshold
}

func (s *Service) readAlwaysUseRemote() bool {
	if s.policy.AlwaysUseRemote {
		return true
	}
	if s.settings == nil {
		return defaultAlwaysUseRemote
	}
	always, err := s.settings.AlwaysUseRemote()
	if err != nil {
		s.log.Warn().Err(err).Msg("Settings read failed, defaulting to hybrid mode")
		return defaultAlwaysUseRemote
	}
	return always
}

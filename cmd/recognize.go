package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"docscan/internal/config"
	"docscan/internal/engine"
	"docscan/internal/hybrid"
	"docscan/internal/imaging"
	"docscan/internal/logger"
	"docscan/internal/ocr"
	"docscan/internal/quality"
	"docscan/internal/remote"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize [image-file]",
	Short: "Recognize document text with quality-adaptive remote fallback",
	Long: `Recognize text in a photographed document.

The image is recognized with the local Tesseract engine first. Per-word
confidence statistics then decide whether the result is trustworthy; if not,
the remote provider (Google Cloud Vision or Document AI) is invoked and its
result returned instead. A failing remote call degrades gracefully back to
the local result.

Remote providers need Google Cloud credentials:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  # Recognize a scanned page
  docscan recognize page.jpg

  # Force Japanese recognition and write the text to a file
  docscan recognize page.jpg --script japanese -o page.txt

  # Local engine only, full metrics as JSON
  docscan recognize page.jpg --local-only --json

  # Send straight to Document AI
  docscan recognize page.jpg --remote-only --remote documentai`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

// RecognizeOutput is the JSON output structure when --json is used.
type RecognizeOutput struct {
	FileName   string           `json:"file_name"`
	Text       string           `json:"text"`
	Source     hybrid.Source    `json:"source"`
	Provider   string           `json:"provider"`
	Script     ocr.ScriptMode   `json:"script"`
	Confidence *float64         `json:"confidence,omitempty"`
	Duration   string           `json:"duration"`
	Metrics    *quality.Metrics `json:"metrics,omitempty"`
	Words      []ocr.WordSpan   `json:"words,omitempty"`
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	recognizeCmd.Flags().BoolP("metadata", "m", false, "Include quality metadata in output")
	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
	recognizeCmd.Flags().String("script", "", "Force script mode (auto|latin|chinese|japanese|korean|devanagari)")
	recognizeCmd.Flags().Bool("local-only", false, "Never invoke the remote provider")
	recognizeCmd.Flags().Bool("remote-only", false, "Skip the local engine entirely")
	recognizeCmd.Flags().String("remote", "", "Remote provider (vision|documentai), overrides DOCSCAN_REMOTE_PROVIDER")
	recognizeCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
	recognizeCmd.Flags().Int("max-dim", 0, "Maximum image dimension, larger images are downsampled")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("recognize")

	outputPath, _ := cmd.Flags().GetString("output")
	includeMetadata, _ := cmd.Flags().GetBool("metadata")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	scriptFlag, _ := cmd.Flags().GetString("script")
	localOnly, _ := cmd.Flags().GetBool("local-only")
	remoteOnly, _ := cmd.Flags().GetBool("remote-only")
	remoteFlag, _ := cmd.Flags().GetString("remote")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	maxDim, _ := cmd.Flags().GetInt("max-dim")

	if localOnly && remoteOnly {
		return fmt.Errorf("--local-only and --remote-only are mutually exclusive")
	}

	imagePath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if remoteFlag != "" {
		if remoteFlag != "vision" && remoteFlag != "documentai" {
			return fmt.Errorf("--remote must be \"vision\" or \"documentai\", got %q", remoteFlag)
		}
		cfg.RemoteProvider = remoteFlag
	}
	if maxDim > 0 {
		cfg.MaxImageDimension = maxDim
	}

	var forcedScript ocr.ScriptMode
	forceScript := false
	if scriptFlag != "" {
		forcedScript, err = ocr.ParseScriptMode(scriptFlag)
		if err != nil {
			return err
		}
		forceScript = forcedScript != ocr.ScriptAuto
	}

	log.Info().
		Str("file", imagePath).
		Str("script", scriptFlag).
		Bool("local_only", localOnly).
		Bool("remote_only", remoteOnly).
		Int("timeout", timeoutSecs).
		Msg("Starting recognition")

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	service, cleanup, err := buildService(ctx, cfg, localOnly, remoteOnly, log)
	if err != nil {
		return err
	}
	defer cleanup()

	start := time.Now()
	result, err := service.RecognizeWithOptions(ctx, imagePath, hybrid.RecognizeOptions{
		Script:      forcedScript,
		ForceScript: forceScript,
		LocalOnly:   localOnly,
		RemoteOnly:  remoteOnly,
	})
	if err != nil {
		return handleRecognitionError(err, log)
	}

	log.Info().
		Str("source", string(result.Source)).
		Str("provider", result.Provider).
		Str("script", result.Script.String()).
		Dur("duration", time.Since(start)).
		Int("text_length", len(result.Text)).
		Msg("Recognition completed successfully")

	return outputResult(result, imagePath, outputPath, jsonOutput, includeMetadata, log)
}

// buildService wires normalizer, engine cache, remote provider and settings
// into a hybrid service. The remote provider is optional unless remoteOnly
// is set; without credentials the service runs local-only.
func buildService(ctx context.Context, cfg *config.Config, localOnly, remoteOnly bool, log zerolog.Logger) (*hybrid.Service, func(), error) {
	normalizer := imaging.NewNormalizer(cfg.MaxImageDimension, cfg.ContentRoot)
	cache := engine.NewCache(func(mode ocr.ScriptMode) (engine.Engine, error) {
		return engine.NewTesseractEngine(mode)
	})

	var provider hybrid.RemoteProvider
	var closers []func()
	if !localOnly {
		p, err := buildRemoteProvider(ctx, cfg)
		if err != nil {
			if remoteOnly {
				if errors.Is(err, remote.ErrMissingCredentials) {
					return nil, nil, credentialsGuidance(err)
				}
				return nil, nil, err
			}
			log.Warn().Err(err).Msg("Remote provider unavailable, continuing local-only")
		} else {
			provider = p
			if c, ok := p.(interface{ Close() error }); ok {
				closers = append(closers, func() {
					if err := c.Close(); err != nil {
						log.Warn().Err(err).Msg("Failed to close remote provider")
					}
				})
			}
		}
	}

	service := hybrid.NewService(cache, normalizer, provider, config.Settings{}, quality.DefaultPolicy())
	cleanup := func() {
		if err := service.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to release local engine")
		}
		for _, c := range closers {
			c()
		}
	}
	return service, cleanup, nil
}

// buildRemoteProvider constructs the configured provider. Credential
// resolution happens inside the client: inline GOOGLE_CREDENTIALS, a
// GOOGLE_APPLICATION_CREDENTIALS file, or Application Default Credentials.
func buildRemoteProvider(ctx context.Context, cfg *config.Config) (hybrid.RemoteProvider, error) {
	switch cfg.RemoteProvider {
	case "documentai":
		return remote.NewDocumentAIProvider(ctx, remote.DocumentAIConfig{
			ProjectID:   cfg.GoogleCloudProject,
			Location:    cfg.GoogleCloudLocation,
			ProcessorID: cfg.DocumentAIProcessorID,
			ContentRoot: cfg.ContentRoot,
		})
	default:
		return remote.NewVisionProvider(ctx, cfg.ContentRoot)
	}
}

func credentialsGuidance(err error) error {
	return fmt.Errorf("Google Cloud credentials not configured (%w). Please set one of:\n\n"+
		"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n"+
		"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n"+
		"2. Export GOOGLE_CREDENTIALS with inline JSON\n\n"+
		"3. Use Application Default Credentials (if gcloud is configured):\n"+
		"   gcloud auth application-default login", err)
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling recognition")
			cancel()
		case <-ctx.Done():
			// Context completed normally
		}
	}()

	return ctx, cancel
}

// handleRecognitionError provides user-friendly error messages for failures
func handleRecognitionError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Recognition failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("recognition timed out. Try increasing --timeout or a smaller image")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("recognition was canceled")
	case errors.Is(err, imaging.ErrSourceUnavailable):
		return fmt.Errorf("image could not be read. Check the path or handle: %w", err)
	case errors.Is(err, imaging.ErrDecodeFailed):
		return fmt.Errorf("image could not be decoded. The file may be corrupt or in an unsupported format: %w", err)
	case errors.Is(err, engine.ErrEngineFailure):
		return fmt.Errorf("local recognition engine failed. Check that Tesseract and its language data are installed: %w", err)
	case errors.Is(err, remote.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials missing or invalid: %w", err)
	case errors.Is(err, hybrid.ErrNoProvider):
		return fmt.Errorf("no remote provider configured for --remote-only. Set Google Cloud credentials")
	default:
		return fmt.Errorf("recognition failed: %w", err)
	}
}

// outputResult formats and writes the unified result
func outputResult(result *hybrid.UnifiedResult, imagePath, outputPath string, jsonOutput, includeMetadata bool, log zerolog.Logger) error {
	var outputData []byte
	var err error

	if jsonOutput {
		out := RecognizeOutput{
			FileName:   filepath.Base(imagePath),
			Text:       result.Text,
			Source:     result.Source,
			Provider:   result.Provider,
			Script:     result.Script,
			Confidence: result.Confidence,
			Duration:   result.Duration.String(),
			Metrics:    result.Metrics,
		}
		if result.Local != nil {
			out.Words = result.Local.Words
		}
		outputData, err = json.MarshalIndent(out, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
	} else {
		var sb strings.Builder
		if includeMetadata {
			sb.WriteString(fmt.Sprintf("=== Recognition results for %s ===\n", filepath.Base(imagePath)))
			sb.WriteString(fmt.Sprintf("Source: %s (%s)\n", result.Source, result.Provider))
			sb.WriteString(fmt.Sprintf("Script: %s\n", result.Script))
			if result.Confidence != nil {
				sb.WriteString(fmt.Sprintf("Confidence: %.1f%%\n", *result.Confidence*100))
			}
			if m := result.Metrics; m != nil {
				sb.WriteString(fmt.Sprintf("Quality: %s\n", m.Quality))
				sb.WriteString(fmt.Sprintf("Words: %d (low-confidence ratio %.2f)\n", m.WordCount, m.LowConfidenceRatio))
				if m.IsLikelyHandwritten {
					sb.WriteString("Likely handwritten: yes\n")
				}
				for _, reason := range m.Reasons {
					sb.WriteString(fmt.Sprintf("Fallback reason: %s\n", reason))
				}
			}
			sb.WriteString(fmt.Sprintf("Processing time: %v\n", result.Duration))
			sb.WriteString("\n=== Recognized text ===\n\n")
		}
		sb.WriteString(result.Text)
		outputData = []byte(sb.String())
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(outputData)).
			Msg("Results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(outputData); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !jsonOutput {
		fmt.Println()
	}
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"docscan/internal/config"
	"docscan/internal/logger"
)

var detectCmd = &cobra.Command{
	Use:   "detect [image-file]",
	Short: "Detect the dominant script of a document image",
	Long: `Run only image normalization and script detection, printing the
dominant writing system found in the image. Useful for diagnosing why the
recognize command picked a particular engine configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().Int("timeout", 60, "Processing timeout in seconds")
	detectCmd.Flags().Int("max-dim", 0, "Maximum image dimension, larger images are downsampled")
}

func runDetect(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("detect")

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	maxDim, _ := cmd.Flags().GetInt("max-dim")
	imagePath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if maxDim > 0 {
		cfg.MaxImageDimension = maxDim
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	service, cleanup, err := buildService(ctx, cfg, true, false, log)
	if err != nil {
		return err
	}
	defer cleanup()

	mode, err := service.DetectScript(ctx, imagePath)
	if err != nil {
		return handleRecognitionError(err, log)
	}

	log.Info().Str("script", mode.String()).Msg("Script detection completed")
	fmt.Println(mode.String())
	return nil
}

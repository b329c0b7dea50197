package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docscan/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "docscan",
	Short: "docscan - hybrid document text recognition",
	Long: `docscan recognizes text in photographed documents using a fast local
Tesseract engine and falls back to a remote vision service when the local
result is judged unreliable.

The fallback decision is quality-adaptive: per-word confidence statistics
classify the result, estimate handwriting likelihood, and select the
confidence threshold accordingly.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("docscan - hybrid document text recognition")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}

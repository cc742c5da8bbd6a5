package main

import (
	"errors"
	"fmt"
	"os"

	"remoteinfer/internal/config"
	"remoteinfer/internal/infrastructure/logger"
	"remoteinfer/internal/infrastructure/remote"
	"remoteinfer/internal/utils/platformerrors"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	// Best effort; configuration may come entirely from the environment.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		var platformErr *platformerrors.PlatformError
		if errors.As(err, &platformErr) {
			platformerrors.LogError(logger.GetLogger(), platformErr)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "remoteinfer",
	Short: "Client engine for OpenAI-compatible remote inference",
	Long: `remoteinfer drives large-language-model inference against a remote
HTTP service exposing an OpenAI-compatible chat-completion API.

Online mode dispatches many conversations concurrently under a bounded
worker pool; batch mode uploads a request document, submits an
asynchronous job, and retrieves results once the job completes.

Examples:
  # Online inference over a JSONL file of conversations
  remoteinfer infer --input prompts.jsonl --model gpt-4o

  # Batch workflow
  remoteinfer batch create --input prompts.jsonl --model gpt-4o
  remoteinfer batch status batch_abc123
  remoteinfer batch results batch_abc123 --input prompts.jsonl --output results.jsonl

  # File store operations
  remoteinfer files list --purpose batch`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(filesCmd)
}

// buildEngine loads configuration, installs the logger, and constructs the
// engine shared by every subcommand.
func buildEngine(outputPath string) (*remote.Engine, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if _, err := logger.New(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, nil, err
	}

	opts := []remote.Option{}
	if outputPath == "" {
		outputPath = cfg.OutputPath
	}
	if outputPath != "" {
		opts = append(opts, remote.WithOutputPath(outputPath))
	}

	engine, err := remote.NewEngine(cfg.Remote(), opts...)
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}

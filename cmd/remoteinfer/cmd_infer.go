package main

import (
	"encoding/json"
	"fmt"
	"os"

	"remoteinfer/internal/domain/generation"

	"github.com/spf13/cobra"
)

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Run online inference over a JSONL file of conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := settingsFromFlags(cmd)
		if err != nil {
			return err
		}
		inputPath, _ := cmd.Flags().GetString("input")
		outputPath, _ := cmd.Flags().GetString("output")

		engine, _, err := buildEngine(outputPath)
		if err != nil {
			return err
		}

		results, err := engine.RunFromFile(cmd.Context(), inputPath, settings)
		if err != nil {
			return err
		}

		if outputPath == "" {
			encoder := json.NewEncoder(os.Stdout)
			for _, conv := range results {
				if err := encoder.Encode(conv); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func init() {
	inferCmd.Flags().String("input", "", "JSONL file of conversations to run (required)")
	inferCmd.Flags().String("output", "", "JSONL file to write results to (defaults to stdout)")
	_ = inferCmd.MarkFlagRequired("input")
	addGenerationFlags(inferCmd)
}

// addGenerationFlags registers the sampling controls shared by the infer and
// batch-create commands.
func addGenerationFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", "", "model name (required)")
	cmd.Flags().Int("max-new-tokens", 1024, "maximum tokens to generate")
	cmd.Flags().Float32("temperature", 0, "sampling temperature")
	cmd.Flags().Float32("top-p", 0, "nucleus sampling probability mass")
	cmd.Flags().Float32("frequency-penalty", 0, "frequency penalty")
	cmd.Flags().Float32("presence-penalty", 0, "presence penalty")
	cmd.Flags().Int("seed", -1, "sampling seed (-1 for unset)")
	cmd.Flags().StringSlice("stop", nil, "stop sequences")
	cmd.Flags().String("schema-file", "", "JSON-schema file constraining the response")
	_ = cmd.MarkFlagRequired("model")
}

func settingsFromFlags(cmd *cobra.Command) (generation.Settings, error) {
	model, _ := cmd.Flags().GetString("model")
	maxNewTokens, _ := cmd.Flags().GetInt("max-new-tokens")
	temperature, _ := cmd.Flags().GetFloat32("temperature")
	topP, _ := cmd.Flags().GetFloat32("top-p")
	frequencyPenalty, _ := cmd.Flags().GetFloat32("frequency-penalty")
	presencePenalty, _ := cmd.Flags().GetFloat32("presence-penalty")
	seed, _ := cmd.Flags().GetInt("seed")
	stop, _ := cmd.Flags().GetStringSlice("stop")
	schemaFile, _ := cmd.Flags().GetString("schema-file")

	settings := generation.Settings{
		Model:            model,
		MaxNewTokens:     maxNewTokens,
		Temperature:      temperature,
		TopP:             topP,
		FrequencyPenalty: frequencyPenalty,
		PresencePenalty:  presencePenalty,
		StopStrings:      stop,
	}
	if seed >= 0 {
		settings.Seed = &seed
	}
	if schemaFile != "" {
		data, err := os.ReadFile(schemaFile)
		if err != nil {
			return generation.Settings{}, fmt.Errorf("read schema file: %w", err)
		}
		settings.GuidedDecoding = &generation.GuidedDecoding{Schema: string(data)}
	}
	return settings, nil
}

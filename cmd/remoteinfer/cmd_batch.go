package main

import (
	"encoding/json"
	"fmt"
	"os"

	"remoteinfer/internal/infrastructure/persistence"

	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Manage asynchronous batch inference jobs",
}

var batchCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Upload a batch-input document and submit a job",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := settingsFromFlags(cmd)
		if err != nil {
			return err
		}
		inputPath, _ := cmd.Flags().GetString("input")

		engine, _, err := buildEngine("")
		if err != nil {
			return err
		}

		conversations, err := persistence.NewJSONLStore().ReadConversations(inputPath)
		if err != nil {
			return err
		}

		jobID, err := engine.CreateBatch(cmd.Context(), conversations, settings)
		if err != nil {
			return err
		}
		fmt.Println(jobID)
		return nil
	},
}

var batchStatusCmd = &cobra.Command{
	Use:   "status <batch-id>",
	Short: "Fetch the current state of a batch job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := buildEngine("")
		if err != nil {
			return err
		}
		job, err := engine.GetBatchStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(job)
	},
}

var batchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List batch jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		after, _ := cmd.Flags().GetString("after")
		limit, _ := cmd.Flags().GetInt("limit")

		engine, _, err := buildEngine("")
		if err != nil {
			return err
		}
		list, err := engine.ListBatches(cmd.Context(), after, limit)
		if err != nil {
			return err
		}
		return printJSON(list)
	},
}

var batchResultsCmd = &cobra.Command{
	Use:   "results <batch-id>",
	Short: "Retrieve a completed job's results mapped to the original conversations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputPath, _ := cmd.Flags().GetString("input")
		outputPath, _ := cmd.Flags().GetString("output")

		engine, _, err := buildEngine("")
		if err != nil {
			return err
		}

		store := persistence.NewJSONLStore()
		originals, err := store.ReadConversations(inputPath)
		if err != nil {
			return err
		}

		results, err := engine.GetBatchResults(cmd.Context(), args[0], originals)
		if err != nil {
			return err
		}

		if outputPath != "" {
			return store.WriteConversations(outputPath, results)
		}
		encoder := json.NewEncoder(os.Stdout)
		for _, conv := range results {
			if err := encoder.Encode(conv); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	batchCreateCmd.Flags().String("input", "", "JSONL file of conversations to submit (required)")
	_ = batchCreateCmd.MarkFlagRequired("input")
	addGenerationFlags(batchCreateCmd)

	batchListCmd.Flags().String("after", "", "pagination cursor")
	batchListCmd.Flags().Int("limit", 0, "maximum jobs to return")

	batchResultsCmd.Flags().String("input", "", "JSONL file the batch was created from (required)")
	batchResultsCmd.Flags().String("output", "", "JSONL file to write results to (defaults to stdout)")
	_ = batchResultsCmd.MarkFlagRequired("input")

	batchCmd.AddCommand(batchCreateCmd)
	batchCmd.AddCommand(batchStatusCmd)
	batchCmd.AddCommand(batchListCmd)
	batchCmd.AddCommand(batchResultsCmd)
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

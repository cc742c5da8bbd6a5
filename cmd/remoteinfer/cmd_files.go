package main

import (
	"fmt"

	"remoteinfer/internal/infrastructure/remote"

	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Operate on the remote file store",
}

var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored files",
	RunE: func(cmd *cobra.Command, args []string) error {
		purpose, _ := cmd.Flags().GetString("purpose")
		limit, _ := cmd.Flags().GetInt("limit")
		order, _ := cmd.Flags().GetString("order")
		after, _ := cmd.Flags().GetString("after")

		engine, _, err := buildEngine("")
		if err != nil {
			return err
		}
		list, err := engine.Files().List(cmd.Context(), remote.ListFilesParams{
			Purpose: purpose,
			Limit:   limit,
			Order:   order,
			After:   after,
		})
		if err != nil {
			return err
		}
		return printJSON(list)
	},
}

var filesGetCmd = &cobra.Command{
	Use:   "get <file-id>",
	Short: "Fetch metadata for a stored file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := buildEngine("")
		if err != nil {
			return err
		}
		file, err := engine.Files().Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(file)
	},
}

var filesDeleteCmd = &cobra.Command{
	Use:   "delete <file-id>",
	Short: "Delete a stored file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := buildEngine("")
		if err != nil {
			return err
		}
		deleted, err := engine.Files().Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(deleted)
		return nil
	},
}

var filesDownloadCmd = &cobra.Command{
	Use:   "download <file-id>",
	Short: "Print a stored file's raw content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := buildEngine("")
		if err != nil {
			return err
		}
		content, err := engine.Files().Download(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Print(content)
		return nil
	},
}

func init() {
	filesListCmd.Flags().String("purpose", "", "only files with this purpose")
	filesListCmd.Flags().Int("limit", 0, "maximum files to return")
	filesListCmd.Flags().String("order", "desc", "sort order (asc or desc)")
	filesListCmd.Flags().String("after", "", "pagination cursor")

	filesCmd.AddCommand(filesListCmd)
	filesCmd.AddCommand(filesGetCmd)
	filesCmd.AddCommand(filesDeleteCmd)
	filesCmd.AddCommand(filesDownloadCmd)
}

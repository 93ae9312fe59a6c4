package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/errs"
	"janmat/internal/usecase/parsing"
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse one post through the extraction layers",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		postID, _ := cmd.Flags().GetString("post-id")
		text, _ := cmd.Flags().GetString("text")
		textFile, _ := cmd.Flags().GetString("file")

		if text == "" && textFile != "" {
			raw, err := os.ReadFile(textFile)
			if err != nil {
				return errs.Wrap(err, "read post text file")
			}
			text = string(raw)
		}

		event, err := deps.Parser.Parse(ctx, parsing.ParseInput{PostID: postID, Text: text})
		if err != nil {
			logging.Error(ctx, "parse failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "parse post")
		}

		out, err := json.MarshalIndent(eventSummary(event), "", "  ")
		if err != nil {
			return errs.Wrap(err, "marshal parse output")
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(out)); err != nil {
			return errs.Wrap(err, "write parse output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().String("post-id", "", "Post identifier")
	parseCmd.Flags().String("text", "", "Post text")
	parseCmd.Flags().String("file", "", "Read post text from file")
	_ = parseCmd.MarkFlagRequired("post-id")
}

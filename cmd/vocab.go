package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/domain/vocab"
	"janmat/internal/errs"
)

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "Moderate learned vocabulary entries",
}

var vocabPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List learned entries waiting for approval",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		category, _ := cmd.Flags().GetString("category")
		entries, err := deps.Vocab.ListPending(ctx, vocab.Category(category))
		if err != nil {
			logging.Error(ctx, "list pending failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list pending vocab")
		}

		if len(entries) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no pending entries"); err != nil {
				return errs.Wrap(err, "write vocab output")
			}
			return nil
		}
		for _, entry := range entries {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\t%s\tusage=%d\n",
				entry.Category, entry.Code, entry.NameHI, entry.UsageCount); err != nil {
				return errs.Wrap(err, "write vocab output")
			}
		}
		return nil
	}),
}

var vocabApproveCmd = &cobra.Command{
	Use:   "approve <code>",
	Short: "Approve a pending learned entry",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		category, _ := cmd.Flags().GetString("category")
		if err := deps.Vocab.Approve(ctx, vocab.Category(category), cmd.Flags().Arg(0)); err != nil {
			logging.Error(ctx, "approve failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "approve vocab entry")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "approved %s/%s\n", category, cmd.Flags().Arg(0)); err != nil {
			return errs.Wrap(err, "write vocab output")
		}
		return nil
	}),
}

var vocabRejectCmd = &cobra.Command{
	Use:   "reject <code>",
	Short: "Reject a pending learned entry",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		category, _ := cmd.Flags().GetString("category")
		if err := deps.Vocab.Reject(ctx, vocab.Category(category), cmd.Flags().Arg(0)); err != nil {
			logging.Error(ctx, "reject failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "reject vocab entry")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "rejected %s/%s\n", category, cmd.Flags().Arg(0)); err != nil {
			return errs.Wrap(err, "write vocab output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(vocabCmd)
	vocabCmd.AddCommand(vocabPendingCmd, vocabApproveCmd, vocabRejectCmd)

	vocabPendingCmd.Flags().String("category", "", "Restrict to one category")
	vocabApproveCmd.Flags().String("category", "", "Entry category")
	vocabRejectCmd.Flags().String("category", "", "Entry category")
	_ = vocabApproveCmd.MarkFlagRequired("category")
	_ = vocabRejectCmd.MarkFlagRequired("category")
}

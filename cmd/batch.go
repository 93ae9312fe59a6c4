package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/errs"
	"janmat/internal/usecase/parsing"
)

type batchStats struct {
	Total       int
	Parsed      int
	NeedsReview int
	Failed      int
}

type batchPostLine struct {
	PostID string `json:"post_id"`
	Text   string `json:"text"`
}

type batchFailureRecord struct {
	PostID string `json:"post_id"`
	Error  string `json:"error"`
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Parse a jsonl file of posts with the worker pool",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		runID := uuid.NewString()
		ctx := logging.WithAttrs(cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("batch_run_id", runID),
		)

		inputPath, _ := cmd.Flags().GetString("file")
		failedOutPath, _ := cmd.Flags().GetString("failed-out")

		posts, err := readBatchPosts(inputPath)
		if err != nil {
			return err
		}

		failedOutFile, failedOutEncoder, err := openBatchFailedOut(failedOutPath)
		if err != nil {
			return err
		}
		if failedOutFile != nil {
			defer func() {
				_ = failedOutFile.Close()
			}()
		}

		stats := batchStats{Total: len(posts)}

		results, err := deps.Parser.ParseBatch(ctx, posts)
		if err != nil {
			return errs.Wrap(err, "start batch parse")
		}

		for result := range results {
			if result.Err != nil {
				stats.Failed++
				logging.Error(ctx, "batch post failed", slog.String("post_id", result.Input.PostID), slog.Any("err", errs.Loggable(result.Err)))
				if _, writeErr := fmt.Fprintf(cmd.ErrOrStderr(), "parse failed: post_id=%s err=%v\n", result.Input.PostID, result.Err); writeErr != nil {
					return errs.Wrap(writeErr, "write batch error output")
				}
				if writeErr := writeBatchFailedOut(failedOutEncoder, result.Input.PostID, result.Err); writeErr != nil {
					return writeErr
				}
				continue
			}

			stats.Parsed++
			if result.Event.NeedsReview {
				stats.NeedsReview++
			}
			if _, writeErr := fmt.Fprintf(cmd.OutOrStdout(), "parsed post_id=%s event=%s confidence=%.2f needs_review=%t\n",
				result.Event.PostID, result.Event.EventCode, result.Event.OverallConfidence, result.Event.NeedsReview); writeErr != nil {
				return errs.Wrap(writeErr, "write batch output")
			}
		}

		logging.Info(ctx, "batch parse finished",
			slog.Int("total", stats.Total),
			slog.Int("parsed", stats.Parsed),
			slog.Int("needs_review", stats.NeedsReview),
			slog.Int("failed", stats.Failed),
		)
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "batch %s done: total=%d parsed=%d needs_review=%d failed=%d\n",
			runID, stats.Total, stats.Parsed, stats.NeedsReview, stats.Failed); err != nil {
			return errs.Wrap(err, "write batch summary output")
		}
		return nil
	}),
}

func readBatchPosts(path string) ([]parsing.ParseInput, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, "open batch input file")
	}
	defer func() {
		_ = file.Close()
	}()

	var posts []parsing.ParseInput
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var post batchPostLine
		if err := json.Unmarshal([]byte(line), &post); err != nil {
			return nil, errs.Wrapf(err, "decode batch input line %d", lineNo)
		}
		posts = append(posts, parsing.ParseInput{PostID: post.PostID, Text: post.Text})
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(err, "read batch input file")
	}
	return posts, nil
}

func openBatchFailedOut(path string) (*os.File, *json.Encoder, error) {
	if path == "" {
		return nil, nil, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, errs.Wrap(err, "create batch failed-out file")
	}
	return file, json.NewEncoder(file), nil
}

func writeBatchFailedOut(encoder *json.Encoder, postID string, cause error) error {
	if encoder == nil {
		return nil
	}
	if err := encoder.Encode(batchFailureRecord{PostID: postID, Error: cause.Error()}); err != nil {
		return errs.Wrap(err, "write batch failed-out record")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().String("file", "", "Input jsonl file with one {post_id, text} object per line")
	batchCmd.Flags().String("failed-out", "", "Write failed posts to this jsonl file")
	_ = batchCmd.MarkFlagRequired("file")
}

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank candidate prompts by similarity to the reference prompt",
	Long: `Rank candidate prompts by cosine similarity to the reference prompt, highest first.

By default only completed candidates are shown, with similarity as a percentage.
--report includes candidates of every status and prints raw cosine scores.`,
	RunE: runRank,
}

var (
	rankReport       bool
	rankSkipBackfill bool
	rankJSON         bool
)

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().BoolVar(&rankReport, "report", false, "Rank candidates of every status and print raw scores")
	rankCmd.Flags().BoolVar(&rankSkipBackfill, "skip-backfill", false, "Do not embed missing prompts before ranking")
	rankCmd.Flags().BoolVar(&rankJSON, "json", false, "Print JSON instead of a table")
}

func runRank(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	app, err := NewApp(ctx, globalConfig, appOptions{embedder: true})
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if !rankSkipBackfill {
		if _, err := app.BackfillService(nil).UpdatePromptEmbeddings(ctx); err != nil {
			return fmt.Errorf("backfill before ranking: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	ranking := app.RankingService()

	if rankReport {
		ranked, err := ranking.RankReport(ctx)
		if err != nil {
			return fmt.Errorf("rank: %w", err)
		}

		if rankJSON {
			return writeJSON(out, ranked)
		}

		_, err = io.WriteString(out, renderReport(ranked))

		return err
	}

	submissions, err := ranking.GetRankedSubmissions(ctx)
	if err != nil {
		return fmt.Errorf("rank: %w", err)
	}

	if rankJSON {
		return writeJSON(out, submissions)
	}

	_, err = io.WriteString(out, renderSubmissions(submissions))

	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit <owner> <prompt>",
	Short: "Submit a candidate prompt",
	Long:  "Store a candidate prompt in pending state. It is embedded by the next backfill or ranking.",
	Args:  cobra.ExactArgs(2),
	RunE:  runSubmit,
}

var markCmd = &cobra.Command{
	Use:   "mark",
	Short: "Record the image generation outcome for a prompt",
}

var markCompletedCmd = &cobra.Command{
	Use:   "completed <id> <image-filename>",
	Short: "Mark a prompt's image as generated",
	Args:  cobra.ExactArgs(2),
	RunE:  runMarkCompleted,
}

var markFailedCmd = &cobra.Command{
	Use:   "failed <id>",
	Short: "Mark a prompt's image generation as failed",
	Args:  cobra.ExactArgs(1),
	RunE:  runMarkFailed,
}

var editCmd = &cobra.Command{
	Use:   "edit <id> <prompt>",
	Short: "Replace a prompt's text",
	Long:  "Replace a prompt's text. A changed text drops the stored embedding so it is generated again.",
	Args:  cobra.ExactArgs(2),
	RunE:  runEdit,
}

var markFailedReason string

func init() {
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(markCmd)
	rootCmd.AddCommand(editCmd)
	markCmd.AddCommand(markCompletedCmd)
	markCmd.AddCommand(markFailedCmd)

	markFailedCmd.Flags().StringVar(&markFailedReason, "reason", "", "Failure reason stored with the prompt")
}

func parsePromptID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid prompt id %q: %w", s, err)
	}

	return id, nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := NewApp(ctx, globalConfig, appOptions{})
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	p, err := app.PromptsService().Submit(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), p.ID)

	return nil
}

func runMarkCompleted(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := parsePromptID(args[0])
	if err != nil {
		return err
	}

	app, err := NewApp(ctx, globalConfig, appOptions{})
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	p, err := app.PromptsService().MarkCompleted(ctx, id, args[1])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", p.ID, p.Status)

	return nil
}

func runMarkFailed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := parsePromptID(args[0])
	if err != nil {
		return err
	}

	app, err := NewApp(ctx, globalConfig, appOptions{})
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	p, err := app.PromptsService().MarkFailed(ctx, id, markFailedReason)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", p.ID, p.Status)

	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := parsePromptID(args[0])
	if err != nil {
		return err
	}

	app, err := NewApp(ctx, globalConfig, appOptions{})
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	p, err := app.PromptsService().UpdatePrompt(ctx, id, args[1])
	if err != nil {
		return err
	}

	state := "kept"
	if !p.HasEmbedding() {
		state = "cleared"
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s updated, embedding %s\n", p.ID, state)

	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/formbricks/promptrank/internal/service"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load reference, gallery and candidate prompts from a YAML file",
	Long: `Create the prompts listed in a YAML seed file. Prompts whose owner, text and
category already exist are skipped, so seeding twice is safe.

  prompts:
    - owner_name: admin
      prompt: apple, orange, avocado
      category: reference
      image_filename: reference.png`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	reqs, err := service.LoadSeedFile(f)
	if err != nil {
		return err
	}

	app, err := NewApp(ctx, globalConfig, appOptions{})
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	stats, err := app.PromptsService().Seed(ctx, reqs)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %d prompt(s), skipped %d existing.\n", stats.Created, stats.Skipped)

	return nil
}

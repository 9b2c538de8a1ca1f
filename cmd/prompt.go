package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/classeval/internal/batch"
	"github.com/abhisek/classeval/internal/ingest"
	"github.com/abhisek/classeval/internal/prompt"
	"github.com/abhisek/classeval/internal/roster"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the prompts generate would send, without calling the LLM",
	RunE: func(cmd *cobra.Command, args []string) error {
		activityPath, _ := cmd.Flags().GetString("activity")
		rosterPath, _ := cmd.Flags().GetString("roster")
		overviewOnly, _ := cmd.Flags().GetBool("overview")

		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		activityRows, err := ingest.ReadFile(activityPath)
		if err != nil {
			return fmt.Errorf("read activity log: %w", err)
		}
		rosterRows, err := ingest.ReadFile(rosterPath)
		if err != nil {
			return fmt.Errorf("read roster: %w", err)
		}

		ds := roster.Merge(activityRows, rosterRows)
		b := prompt.NewBuilder(settings.Prompt)

		if overviewOnly {
			fmt.Print(b.Overview(ds))
			return nil
		}

		sep := strings.Repeat("─", 60)
		section := func(title, body string) {
			fmt.Println(sep)
			fmt.Println(title)
			fmt.Println(sep)
			fmt.Println(body)
		}

		section("SYSTEM", b.System())

		if len(ds.Aggregates) <= settings.Batch.Threshold {
			section("COMBINED", b.Build(ds))
			return nil
		}

		parts := batch.Partition(ds.Aggregates, settings.Batch.BatchSize)
		for i, part := range parts {
			section(fmt.Sprintf("BATCH %d OF %d", i+1, len(parts)), b.BatchPrompt(ds, part, i, len(parts)))
		}
		section("OVERALL", b.OverallPrompt(ds))
		return nil
	},
}

func init() {
	promptCmd.Flags().StringP("activity", "a", "", "Activity log file (.csv, .tsv or .json)")
	promptCmd.Flags().StringP("roster", "r", "", "Class roster file (.csv, .tsv or .json)")
	promptCmd.Flags().Bool("overview", false, "Print only the data overview")
	_ = promptCmd.MarkFlagRequired("activity")
	_ = promptCmd.MarkFlagRequired("roster")
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/classeval/internal/llm"
	"github.com/abhisek/classeval/internal/report"
	"github.com/abhisek/classeval/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Browse cached reports",
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		recs, err := s.ReportRepo().List(context.Background(), store.QueryOpts{Limit: limit})
		if err != nil {
			return fmt.Errorf("list reports: %w", err)
		}
		if len(recs) == 0 {
			fmt.Println("No reports cached yet.")
			return nil
		}

		_, err = lipgloss.Println(report.RenderList(recs))
		return err
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a cached report (the latest when no id is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadReport(cmd, args)
		if err != nil {
			return err
		}
		_, err = lipgloss.Print(report.Render(r, 0))
		return err
	},
}

var reportExportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Export a cached report (the latest when no id is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		r, err := loadReport(cmd, args)
		if err != nil {
			return err
		}
		return writeReport(r, format, output)
	},
}

var reportHighlightsCmd = &cobra.Command{
	Use:   "highlights [id]",
	Short: "Ask the LLM for a structured digest of a cached report",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		providerName, _ := cmd.Flags().GetString("provider")

		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if providerName != "" {
			settings.LLM.Provider = providerName
		}
		log, err := newLogger(settings)
		if err != nil {
			return err
		}
		defer log.Sync()

		r, err := loadReport(cmd, args)
		if err != nil {
			return err
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		provider, err := llm.NewProvider(ctx, settings.LLM, s.EventRepo(), log)
		if err != nil {
			return fmt.Errorf("LLM provider not configured: %w", err)
		}

		h, err := report.Summarize(ctx, provider, r, settings.MaxTokens, log)
		if err != nil {
			return fmt.Errorf("summarize report: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(h)
		}
		_, err = lipgloss.Print(report.RenderHighlights(h, 0))
		return err
	},
}

// loadReport fetches the report named by args[0], or the latest one.
func loadReport(cmd *cobra.Command, args []string) (*report.Report, error) {
	s, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	ctx := context.Background()
	var rec *store.ReportRecord
	if len(args) == 1 {
		rec, err = s.ReportRepo().Get(ctx, args[0])
	} else {
		rec, err = s.ReportRepo().Latest(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	if rec == nil {
		if len(args) == 1 {
			return nil, fmt.Errorf("report %s not found", args[0])
		}
		return nil, fmt.Errorf("no reports cached yet")
	}
	return report.FromRecord(rec)
}

func init() {
	reportListCmd.Flags().IntP("limit", "n", 20, "Number of reports to show")
	reportExportCmd.Flags().StringP("format", "f", "json", "Output format: json, markdown or text")
	reportExportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")

	reportHighlightsCmd.Flags().Bool("json", false, "Print the digest as JSON")
	reportHighlightsCmd.Flags().String("provider", "", "LLM provider: anthropic, openai, gemini, openrouter or mock")

	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportExportCmd)
	reportCmd.AddCommand(reportHighlightsCmd)
}

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/abhisek/classeval/internal/batch"
	"github.com/abhisek/classeval/internal/config"
	"github.com/abhisek/classeval/internal/evaluation"
	"github.com/abhisek/classeval/internal/ingest"
	"github.com/abhisek/classeval/internal/llm"
	"github.com/abhisek/classeval/internal/logger"
	"github.com/abhisek/classeval/internal/prompt"
	"github.com/abhisek/classeval/internal/report"
	"github.com/abhisek/classeval/internal/store"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate evaluations for a class",
	Example: `  classeval generate -a activity.csv -r roster.csv
  classeval generate -a activity.json -r roster.csv --format markdown -o report.md`,
	RunE: func(cmd *cobra.Command, args []string) error {
		activityPath, _ := cmd.Flags().GetString("activity")
		rosterPath, _ := cmd.Flags().GetString("roster")
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		noCache, _ := cmd.Flags().GetBool("no-cache")
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

		activityRows, err := ingest.ReadFile(activityPath)
		if err != nil {
			return fmt.Errorf("read activity log: %w", err)
		}
		rosterRows, err := ingest.ReadFile(rosterPath)
		if err != nil {
			return fmt.Errorf("read roster: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var eventRepo store.EventRepo
		var reportRepo store.ReportRepo
		if !noCache {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			eventRepo = st.EventRepo()
			reportRepo = st.ReportRepo()
		}

		provider, err := llm.NewProvider(ctx, settings.LLM, eventRepo, log)
		if err != nil {
			return fmt.Errorf("LLM provider not configured: %w", err)
		}

		svc, err := newReportService(settings, provider, reportRepo, log)
		if err != nil {
			return err
		}

		r, err := svc.Generate(ctx, activityRows, rosterRows)
		var authErr *llm.ErrAuth
		if errors.As(err, &authErr) {
			return fmt.Errorf("%w\ncheck the %s API key (config llm.api-key or the provider's env var)", err, settings.LLM.Provider)
		}
		if err != nil {
			return err
		}

		return writeReport(r, format, output)
	},
}

// newReportService wires the pipeline for the resolved settings.
func newReportService(s config.Settings, provider llm.Provider, reports store.ReportRepo, log *logger.Logger) (*report.Service, error) {
	builder := prompt.NewBuilder(s.Prompt)
	caller := &batch.ProviderCaller{
		Provider:    provider,
		System:      builder.System(),
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
	}
	orch, err := batch.New(caller, builder, s.Batch, log)
	if err != nil {
		return nil, err
	}
	return report.NewService(orch, evaluation.NewParser(s.Parser, log), reports, report.Options{
		Provider: s.LLM.Provider,
		Model:    provider.ModelID(),
		Keep:     s.CacheKeep,
	}, log), nil
}

// writeReport exports r to output, or stdout when output is empty.
func writeReport(r *report.Report, format, output string) error {
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}
	if err := report.Export(w, r, format); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func init() {
	generateCmd.Flags().StringP("activity", "a", "", "Activity log file (.csv, .tsv or .json)")
	generateCmd.Flags().StringP("roster", "r", "", "Class roster file (.csv, .tsv or .json)")
	generateCmd.Flags().StringP("format", "f", "text", "Output format: text, markdown or json")
	generateCmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	generateCmd.Flags().Bool("no-cache", false, "Do not record LLM events or cache the report")
	generateCmd.Flags().String("provider", "", "LLM provider: anthropic, openai, gemini, openrouter or mock")
	_ = generateCmd.MarkFlagRequired("activity")
	_ = generateCmd.MarkFlagRequired("roster")
}

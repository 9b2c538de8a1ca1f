package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"github.com/abhisek/classeval/internal/llm"
	"github.com/abhisek/classeval/internal/store"
	"github.com/abhisek/classeval/internal/ui/theme"
)

const timeLayout = "2006-01-02 15:04:05"

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect logged LLM requests, retries and token usage",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryLLMEvents(cmd.Context(), store.QueryOpts{Limit: limit, Purpose: purpose})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No LLM requests logged.")
			return nil
		}

		t := grid("ID", "Time", "Purpose", "Batch", "Try", "Model", "In", "Out", "Ms", "OK")
		for _, e := range events {
			ok := theme.Good.Render("✓")
			if !e.Success {
				ok = theme.Bad.Render("✗")
			}
			t.Row(
				strconv.Itoa(e.ID),
				e.Timestamp.Local().Format(timeLayout),
				e.Purpose,
				orDash(e.Batch),
				strconv.Itoa(e.Attempt),
				truncate(e.Model, 28),
				strconv.Itoa(e.InputTokens),
				strconv.Itoa(e.OutputTokens),
				strconv.FormatInt(e.LatencyMs, 10),
				ok,
			)
		}
		_, err = lipgloss.Println(t.Render())
		return err
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the full prompt and response of one request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid event id %q", args[0])
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		var sb strings.Builder
		line := func(label, value string) {
			sb.WriteString(theme.Label.Render(label))
			sb.WriteString(value)
			sb.WriteString("\n")
		}
		line("ID", strconv.Itoa(e.ID))
		line("Time", e.Timestamp.Local().Format(timeLayout))
		line("Provider", e.Provider)
		line("Model", e.Model)
		line("Purpose", e.Purpose)
		line("Batch", orDash(e.Batch))
		line("Attempt", strconv.Itoa(e.Attempt))
		line("Tokens", fmt.Sprintf("%d in / %d out", e.InputTokens, e.OutputTokens))
		line("Latency", fmt.Sprintf("%dms", e.LatencyMs))
		if e.Success {
			line("Status", theme.Good.Render("ok"))
		} else {
			line("Status", theme.Bad.Render("failed"))
			line("Error", e.ErrorMessage)
		}

		section := func(title, body string) {
			sb.WriteString("\n")
			sb.WriteString(theme.Heading.Render(title))
			sb.WriteString("\n")
			if body == "" {
				body = theme.Hint.Render("(not captured)")
			}
			sb.WriteString(body)
			sb.WriteString("\n")
		}
		section("REQUEST", e.RequestBody)
		section("RESPONSE", e.ResponseBody)

		_, err = lipgloss.Print(sb.String())
		return err
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show token usage per purpose and estimated cost per model",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		byPurpose, err := s.EventRepo().LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}
		if len(byPurpose) == 0 {
			fmt.Println("No LLM usage recorded yet.")
			return nil
		}
		byModel, err := s.EventRepo().LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}

		_, err = lipgloss.Println(renderUsage(byPurpose, byModel))
		return err
	},
}

func renderUsage(byPurpose []store.PurposeUsage, byModel []store.ModelUsage) string {
	var sb strings.Builder

	usage := grid("Purpose", "Calls", "Input", "Output", "Avg Ms")
	var calls, in, out int
	for _, u := range byPurpose {
		usage.Row(u.Purpose, strconv.Itoa(u.Calls), strconv.Itoa(u.InputTokens), strconv.Itoa(u.OutputTokens), strconv.FormatInt(u.AvgLatencyMs, 10))
		calls += u.Calls
		in += u.InputTokens
		out += u.OutputTokens
	}
	usage.Row("total", strconv.Itoa(calls), strconv.Itoa(in), strconv.Itoa(out), "")
	sb.WriteString(theme.Heading.Render("Usage by purpose"))
	sb.WriteString("\n")
	sb.WriteString(usage.Render())

	if len(byModel) == 0 {
		return sb.String()
	}

	costs := grid("Model", "Calls", "Input", "Output", "Cost")
	var total float64
	var unpriced []string
	for _, m := range byModel {
		cost := "?"
		if price := llm.LookupCost(m.Model); price != nil {
			c := price.Cost(m.InputTokens, m.OutputTokens)
			total += c
			cost = formatCost(c)
		} else {
			unpriced = append(unpriced, m.Model)
		}
		costs.Row(truncate(m.Model, 32), strconv.Itoa(m.Calls), strconv.Itoa(m.InputTokens), strconv.Itoa(m.OutputTokens), cost)
	}
	label := "total"
	if len(unpriced) > 0 {
		label = "total (partial)"
	}
	costs.Row(label, "", "", "", formatCost(total))

	sb.WriteString("\n\n")
	sb.WriteString(theme.Heading.Render("Estimated cost (USD)"))
	sb.WriteString("\n")
	sb.WriteString(costs.Render())
	if len(unpriced) > 0 {
		sb.WriteString("\n")
		sb.WriteString(theme.Hint.Render("No pricing for: " + strings.Join(unpriced, ", ")))
	}
	return sb.String()
}

// grid is the bordered table style shared by the llm subcommands.
func grid(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(theme.Rule).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Inherit(theme.Heading)
			}
			return s
		})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of requests to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (full-report, batch-evaluations, overall-analysis)")

	llmCmd.AddCommand(llmListCmd, llmViewCmd, llmStatsCmd)
}

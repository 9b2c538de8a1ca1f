package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/classeval/internal/evaluation"
	"github.com/abhisek/classeval/internal/ingest"
	"github.com/abhisek/classeval/internal/roster"
)

// parseOutput is the JSON shape printed by parse --json.
type parseOutput struct {
	Evaluations       []evaluation.StudentEvaluation `json:"evaluations"`
	Overall           string                         `json:"overall"`
	MarkerCount       int                            `json:"marker_count"`
	FallbackCount     int                            `json:"fallback_count"`
	FallbackDiscarded bool                           `json:"fallback_discarded"`
	Unmatched         []string                       `json:"unmatched_markers,omitempty"`
	Validation        *evaluation.ValidationReport   `json:"validation,omitempty"`
}

var parseCmd = &cobra.Command{
	Use:   "parse <response-file>",
	Short: "Recover evaluations from a saved LLM response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rosterPath, _ := cmd.Flags().GetString("roster")
		asJSON, _ := cmd.Flags().GetBool("json")

		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(settings)
		if err != nil {
			return err
		}
		defer log.Sync()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		res := evaluation.NewParser(settings.Parser, log).ParseDetailed(string(raw))
		out := parseOutput{
			Evaluations:       res.Evaluations,
			Overall:           res.Overall,
			MarkerCount:       res.MarkerCount,
			FallbackCount:     res.FallbackCount,
			FallbackDiscarded: res.FallbackDiscarded,
			Unmatched:         res.Unmatched,
		}

		if rosterPath != "" {
			rows, err := ingest.ReadFile(rosterPath)
			if err != nil {
				return fmt.Errorf("read roster: %w", err)
			}
			entries, _, _ := roster.ParseRoster(rows)
			names := make([]string, len(entries))
			for i, e := range entries {
				names[i] = e.Name
			}
			v := evaluation.Validate(res.Evaluations, names)
			out.Validation = &v
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		for _, e := range out.Evaluations {
			tag := ""
			if e.Source == evaluation.SourceFallback {
				tag = " (recovered)"
			}
			fmt.Printf("[%d] %s%s\n%s\n\n", e.Index+1, e.Name, tag, e.Text)
		}
		fmt.Printf("Markers: %d  Fallback: %d", out.MarkerCount, out.FallbackCount)
		if out.FallbackDiscarded {
			fmt.Print(" (discarded)")
		}
		fmt.Println()
		if len(out.Unmatched) > 0 {
			fmt.Printf("Unmatched markers: %v\n", out.Unmatched)
		}
		if v := out.Validation; v != nil {
			fmt.Printf("Found %d of %d (%d%%)\n", v.Found, v.Expected, v.MatchRate)
			if len(v.Missing) > 0 {
				fmt.Printf("Missing: %v\n", v.Missing)
			}
			if len(v.Extra) > 0 {
				fmt.Printf("Not on roster: %v\n", v.Extra)
			}
		}
		return nil
	},
}

func init() {
	parseCmd.Flags().StringP("roster", "r", "", "Roster file to validate the evaluations against")
	parseCmd.Flags().Bool("json", false, "Print the result as JSON")
}

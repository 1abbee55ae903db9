package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CertX-AI/NirmatAI-WebApp/analysis"
	"github.com/CertX-AI/NirmatAI-WebApp/portal"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var file string

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show the results of an owner's latest processed submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOwner(owner); err != nil {
				return err
			}

			workspace, err := ctx.newWorkspace()
			if err != nil {
				return err
			}
			resultsDir := workspace.ResultsDir(owner)

			name := file
			if name == "" {
				name, err = latestResultsFile(resultsDir)
				if err != nil {
					return err
				}
			}
			path, err := workspace.ValidatePath(resultsDir, name)
			if err != nil {
				return err
			}

			results, err := analysis.LoadResults(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(results))
			for _, result := range results {
				rows = append(rows, []string{
					result.RequirementID,
					result.ComplianceStatus,
					truncate(result.Rationale, 80),
					result.RefToDoc,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Requirement ID", "Compliance status", "Rationale", "Ref. to Doc"}, rows))

			stats := portal.ComputeComplianceStatistics(results)
			fmt.Fprintln(out, renderTable([]string{"General Statistics", "Values"}, statisticsRows(stats)))

			if items := reportSummary(resultsDir, name); len(items) > 0 {
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{item.Label, item.Value})
				}
				fmt.Fprintln(out, renderTable([]string{"Processing", "Values"}, rows))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "u", "", "Owner whose results should be shown")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Results file name, defaults to the most recent")
	return cmd
}

func latestResultsFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list results: %w", err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "NirmatAI_results_") && strings.HasSuffix(name, ".csv") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no results found in %s", dir)
	}
	// The timestamped names sort chronologically.
	sort.Strings(names)
	return names[len(names)-1], nil
}

// reportSummary finds the processing report written alongside a results file
// and extracts its summary statistics. Missing reports are not an error.
func reportSummary(dir, resultsFile string) []portal.SummaryItem {
	stamp := strings.TrimSuffix(strings.TrimPrefix(resultsFile, "NirmatAI_results_"), ".csv")
	path := filepath.Join(dir, "Result_logs_"+stamp+".txt")
	items, err := portal.ExtractSummary(path)
	if err != nil {
		return nil
	}
	return items
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

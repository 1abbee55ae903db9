package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/CertX-AI/NirmatAI-WebApp/portal"
	"github.com/CertX-AI/NirmatAI-WebApp/proclock"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var requirements string
	var documents []string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Upload documents and requirements and run the compliance analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOwner(owner); err != nil {
				return err
			}
			if requirements == "" {
				return errors.New("a requirements file is required")
			}

			runner, workspace, err := ctx.newRunner()
			if err != nil {
				return err
			}

			for _, doc := range documents {
				if err := uploadFile(workspace.SaveDocument, owner, doc); err != nil {
					return err
				}
			}
			if err := uploadFile(workspace.SaveRequirements, owner, requirements); err != nil {
				return err
			}

			outcome, err := runner.Run(cmd.Context(), owner, portal.SanitizeFilename(filepath.Base(requirements)))
			if errors.Is(err, proclock.ErrAlreadyLocked) {
				return errors.New("the system is currently being used by another submission, please try again later")
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed %d requirement(s) in %s.\n", outcome.RequirementCount, outcome.Elapsed.Round(time.Second))
			if len(outcome.BrokenFiles) > 0 {
				fmt.Fprintln(out, "The following files encountered issues during ingestion:")
				for _, broken := range outcome.BrokenFiles {
					fmt.Fprintf(out, "  %s: %s\n", broken.Path, broken.Reason)
				}
			}
			fmt.Fprintln(out, renderTable(
				[]string{"General Statistics", "Values"},
				statisticsRows(outcome.Statistics),
			))
			fmt.Fprintf(out, "Results saved to %s\n", filepath.Join(workspace.ResultsDir(owner), outcome.ResultsFile))
			if outcome.ReportFile != "" {
				fmt.Fprintf(out, "Processing report saved to %s\n", filepath.Join(workspace.ResultsDir(owner), outcome.ReportFile))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "u", "", "Submission owner, used for tracking and lock identity")
	cmd.Flags().StringVarP(&requirements, "requirements", "r", "", "Path to the requirements spreadsheet")
	cmd.Flags().StringArrayVarP(&documents, "document", "d", nil, "Path to a document to analyze, repeatable")
	return cmd
}

func uploadFile(save func(owner, name string, data io.Reader) (string, error), owner, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	if _, err := save(owner, filepath.Base(path), file); err != nil {
		return err
	}
	return nil
}

func statisticsRows(stats portal.ComplianceStatistics) [][]string {
	return [][]string{
		{"Total Requirements", strconv.Itoa(stats.Total)},
		{"Full Compliance", strconv.Itoa(stats.FullCompliance)},
		{"Minor Non-Conformity", strconv.Itoa(stats.MinorNonConformity)},
		{"Major Non-Conformity", strconv.Itoa(stats.MajorNonConformity)},
		{"Unassigned Compliance", strconv.Itoa(stats.Unassigned)},
	}
}

package portal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/CertX-AI/NirmatAI-WebApp/analysis"
)

const reportWidth = 120

// ComplianceStatistics counts the result rows by compliance status.
type ComplianceStatistics struct {
	Total              int
	FullCompliance     int
	MinorNonConformity int
	MajorNonConformity int
	Unassigned         int
}

// ComputeComplianceStatistics tallies the compliance labels of a result set.
// Rows with an empty status count as unassigned.
func ComputeComplianceStatistics(results []analysis.Result) ComplianceStatistics {
	stats := ComplianceStatistics{Total: len(results)}
	for _, result := range results {
		switch result.ComplianceStatus {
		case "full-compliance":
			stats.FullCompliance++
		case "minor non-conformity":
			stats.MinorNonConformity++
		case "major non-conformity":
			stats.MajorNonConformity++
		default:
			stats.Unassigned++
		}
	}
	return stats
}

// Report collects everything the processing report prints.
type Report struct {
	GeneratedAt      time.Time
	Documents        []string
	RequirementsFile string
	Logs             []analysis.ProcessLog
}

// Render produces the full processing report as text.
func (r Report) Render() string {
	separator := strings.Repeat("=", reportWidth)
	center := func(s string) string { return text.AlignCenter.Apply(s, reportWidth) }

	total := len(r.Logs)
	succeeded := 0
	totalSeconds := 0.0
	for _, log := range r.Logs {
		if log.Succeeded() {
			succeeded++
		}
		totalSeconds += log.ProcessingTime
	}
	failed := total - succeeded

	var lines []string
	lines = append(lines, separator)
	lines = append(lines, center("NirmatAI Requirement Processing Log File"))
	lines = append(lines, center("Generated on: "+r.GeneratedAt.Format("2006-01-02 15:04:05")))
	lines = append(lines, separator+"\n\n")

	lines = append(lines, center("----- Uploaded Documents -----"))
	lines = append(lines, r.documentLines()...)
	lines = append(lines, "\n")

	lines = append(lines, center("----- Uploaded Requirements -----"))
	if r.RequirementsFile != "" {
		lines = append(lines, "Name: "+r.RequirementsFile)
	} else {
		lines = append(lines, "No uploaded requirements.")
	}
	lines = append(lines, "\n\n")

	lines = append(lines, center("----- Summary Statistics -----"))
	lines = append(lines, fmt.Sprintf("Total Requirements Processed: %d", total))
	lines = append(lines, fmt.Sprintf("Successfully Processed: %d", succeeded))
	lines = append(lines, fmt.Sprintf("Failed Requirements: %d", failed))
	lines = append(lines, "Processing Duration: "+VerbalDuration(totalSeconds))
	lines = append(lines, "Average Processing Duration per Requirement: "+averageDuration(totalSeconds, total)+"\n")

	lines = append(lines, center("----- Detailed Log -----"))
	for idx, log := range r.Logs {
		lines = append(lines, fmt.Sprintf("%d. Requirement ID: %s", idx+1, log.RequirementID))
		lines = append(lines, "   Requirement: "+wrapIndented(log.Requirement, len("  Requirement: ")))
		lines = append(lines, "   Compliance Status: "+log.ComplianceStatus)
		lines = append(lines, "   Rationale: "+wrapIndented(log.Rationale, len("  Rationale: ")))
		lines = append(lines, "   Processing Status: "+log.ProcessingStatus)
		lines = append(lines, fmt.Sprintf("   Processing Time: %.2f seconds", log.ProcessingTime))
		lines = append(lines, "   Error: "+orNone(log.Error))
		lines = append(lines, "")
	}

	lines = append(lines, center("----- Error Summary -----"))
	errCount := 0
	for _, log := range r.Logs {
		if log.Succeeded() {
			continue
		}
		reason := log.Error
		if reason == "" {
			reason = "No error provided"
		}
		lines = append(lines, log.RequirementID+": "+reason)
		errCount++
	}
	if errCount == 0 {
		lines = append(lines, "No error occurred")
	}

	lines = append(lines, "\n\n"+separator)
	lines = append(lines, center("End of the NirmatAI Log File"))
	lines = append(lines, separator)
	lines = append(lines, center("© 2024 NirmatAI CertX AG. All rights reserved."))
	lines = append(lines, center("This document contains proprietary information of CertX AG."))
	lines = append(lines, center("Unauthorized use, disclosure, or distribution is strictly prohibited."))

	return strings.Join(lines, "\n")
}

// WriteFile renders the report into path, creating parent directories.
func (r Report) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(r.Render()), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// documentLines groups the uploaded documents by file type, PDF then DOCX
// then TXT, each group sorted by name.
func (r Report) documentLines() []string {
	if len(r.Documents) == 0 {
		return []string{"No uploaded documents."}
	}

	grouped := map[string][]string{"pdf": nil, "docx": nil, "txt": nil}
	for _, name := range r.Documents {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		if _, ok := grouped[ext]; ok {
			grouped[ext] = append(grouped[ext], name)
		}
	}

	var lines []string
	for _, ext := range []string{"pdf", "docx", "txt"} {
		docs := grouped[ext]
		if len(docs) == 0 {
			lines = append(lines, fmt.Sprintf("No %s files uploaded.", strings.ToUpper(ext)))
			continue
		}
		sort.Slice(docs, func(i, j int) bool {
			return strings.ToLower(docs[i]) < strings.ToLower(docs[j])
		})
		lines = append(lines, fmt.Sprintf("Uploaded %s Files:", strings.ToUpper(ext)))
		for idx, name := range docs {
			lines = append(lines, fmt.Sprintf("   %d. Name: %s", idx+1, name))
		}
	}
	return lines
}

// SummaryItem is one extracted statistic of a written report.
type SummaryItem struct {
	Label string
	Value string
}

var summaryLabels = []string{
	"Total Requirements Processed",
	"Successfully Processed",
	"Failed Requirements",
	"Processing Duration",
	"Average Processing Duration per Requirement",
}

// ExtractSummary reads back the summary statistics section of a written
// report file.
func ExtractSummary(path string) ([]SummaryItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer file.Close()

	var items []SummaryItem
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		for _, label := range summaryLabels {
			if strings.HasPrefix(strings.TrimSpace(line), label+":") {
				value := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), label+":"))
				items = append(items, SummaryItem{Label: label, Value: value})
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return items, nil
}

// VerbalDuration renders a duration in seconds the way the report prints
// processing times. Hours are omitted when zero.
func VerbalDuration(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d hours, %d minutes, %d seconds", hours, minutes, secs)
	}
	return fmt.Sprintf("%d minutes, %d seconds", minutes, secs)
}

func averageDuration(totalSeconds float64, count int) string {
	if count == 0 {
		return "No requirements"
	}
	average := int(totalSeconds / float64(count))
	minutes := average / 60
	secs := average % 60
	if minutes > 0 {
		return fmt.Sprintf("%d minutes, %d seconds", minutes, secs)
	}
	return fmt.Sprintf("%d seconds", secs)
}

// wrapIndented wraps long field text so continuation lines stay aligned
// under the field value.
func wrapIndented(s string, prefixLen int) string {
	wrapped := text.WrapSoft(s, reportWidth-prefixLen)
	return strings.ReplaceAll(wrapped, "\n", "\n"+strings.Repeat(" ", 8))
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

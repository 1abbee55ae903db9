package analysis

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// Result is one row of the compliance analysis output.
type Result struct {
	RequirementID    string `json:"requirement_id"`
	Requirement      string `json:"requirement"`
	PotentialMeans   string `json:"potential_means_of_compliance"`
	Label            string `json:"label"`
	ComplianceStatus string `json:"compliance_status"`
	Rationale        string `json:"rationale"`
	RefToDoc         string `json:"ref_to_doc"`
}

// ProcessLog is one structured entry of the per-requirement processing log.
type ProcessLog struct {
	RequirementID    string  `json:"requirement_id"`
	Requirement      string  `json:"requirement"`
	ComplianceStatus string  `json:"compliance_status"`
	Rationale        string  `json:"rationale"`
	ProcessingStatus string  `json:"processing_status"`
	ProcessingTime   float64 `json:"processing_time"`
	Error            string  `json:"error"`
}

// Succeeded reports whether the requirement was processed without error.
func (l ProcessLog) Succeeded() bool {
	return l.ProcessingStatus == "Success"
}

// SaveResults writes the result rows to a CSV file. With attachReqs the
// requirement text columns are included next to the analysis output;
// without it only the analysis columns are written.
func SaveResults(results []Result, path string, attachReqs bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(resultHeader(attachReqs)); err != nil {
		return fmt.Errorf("write results header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write(resultRow(result, attachReqs)); err != nil {
			return fmt.Errorf("write result row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush results: %w", err)
	}
	return file.Sync()
}

// LoadResults reads back a CSV produced by SaveResults with attached
// requirement columns.
func LoadResults(path string) ([]Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("results file %s is empty", path)
	}
	if got, want := len(rows[0]), len(resultHeader(true)); got != want {
		return nil, fmt.Errorf("results file has %d columns, expected %d", got, want)
	}

	results := make([]Result, 0, len(rows)-1)
	for _, row := range rows[1:] {
		results = append(results, Result{
			RequirementID:    row[0],
			Requirement:      row[1],
			PotentialMeans:   row[2],
			Label:            row[3],
			ComplianceStatus: row[4],
			Rationale:        row[5],
			RefToDoc:         row[6],
		})
	}
	return results, nil
}

// CountRequirements returns the number of requirement rows in an uploaded
// requirements CSV, excluding the header. Unreadable files count as zero:
// the extension step just keeps the default window in that case.
func CountRequirements(path string) int {
	file, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil || len(rows) == 0 {
		return 0
	}
	return len(rows) - 1
}

func resultHeader(attachReqs bool) []string {
	if attachReqs {
		return []string{
			"Requirement ID",
			"Requirement",
			"Potential Means of Compliance",
			"Label",
			"Compliance status",
			"Rationale",
			"Ref. to Doc",
		}
	}
	return []string{
		"Requirement ID",
		"Compliance status",
		"Rationale",
		"Ref. to Doc",
	}
}

func resultRow(result Result, attachReqs bool) []string {
	if attachReqs {
		return []string{
			result.RequirementID,
			result.Requirement,
			result.PotentialMeans,
			result.Label,
			result.ComplianceStatus,
			result.Rationale,
			result.RefToDoc,
		}
	}
	return []string{
		result.RequirementID,
		result.ComplianceStatus,
		result.Rationale,
		result.RefToDoc,
	}
}

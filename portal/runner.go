package portal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"k8s.io/utils/clock"

	"github.com/CertX-AI/NirmatAI-WebApp/analysis"
	"github.com/CertX-AI/NirmatAI-WebApp/internal"
	"github.com/CertX-AI/NirmatAI-WebApp/proclock"
)

// ErrServiceUnavailable means the analysis service failed its health check,
// so the submission run was aborted before any documents were sent.
var ErrServiceUnavailable = errors.New("analysis service is unavailable")

// Outcome summarizes a completed submission run.
type Outcome struct {
	Owner            string
	RequirementCount int
	Extended         bool
	BrokenFiles      []analysis.BrokenFile
	Results          []analysis.Result
	Statistics       ComplianceStatistics
	ResultsFile      string
	ReportFile       string
	Elapsed          time.Duration
}

// Runner drives one submission through the full pipeline: lock, health
// check, ingest, process, persist, cleanup, unlock. The lock is held for
// the whole run and released on every exit path.
type Runner struct {
	locker         *proclock.Locker
	client         *analysis.Client
	workspace      *Workspace
	perRequirement time.Duration
	clock          clock.Clock
}

// NewRunner wires a runner from its collaborators. perRequirement is the
// validity window granted per requirement when extending the lock for a
// large submission.
func NewRunner(locker *proclock.Locker, client *analysis.Client, workspace *Workspace, perRequirement time.Duration) *Runner {
	return &Runner{
		locker:         locker,
		client:         client,
		workspace:      workspace,
		perRequirement: perRequirement,
		clock:          clock.RealClock{},
	}
}

// Run processes the owner's uploaded documents against the named
// requirements file. It returns proclock.ErrAlreadyLocked without touching
// anything when another session holds the lock.
func (r *Runner) Run(ctx context.Context, owner, requirementsFile string) (*Outcome, error) {
	token, err := r.locker.Acquire(ctx, owner)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := r.locker.Release(ctx, owner, token); err != nil {
			internal.GetLogger().Printf("Failed to release lock after run, err: %v", err)
		}
	}()

	start := r.clock.Now()
	internal.GetLogger().Printf("Processing started for %s", owner)

	status, err := r.client.HealthCheck(ctx)
	if err != nil || status != analysis.StatusOK {
		if err != nil {
			internal.GetLogger().Printf("Health check failed, err: %v", err)
		}
		return nil, ErrServiceUnavailable
	}

	if err := r.client.Ingest(ctx, r.workspace.DocumentsDir(owner)); err != nil {
		return nil, fmt.Errorf("ingest documents: %w", err)
	}
	broken := r.client.BrokenFiles()
	if len(broken) > 0 {
		internal.GetLogger().Printf("%d document(s) failed to ingest", len(broken))
	}

	reqPath, err := r.workspace.ValidatePath(r.workspace.RequirementsDir(owner), requirementsFile)
	if err != nil {
		return nil, fmt.Errorf("locate requirements file: %w", err)
	}
	if err := r.client.LoadRequirements(ctx, reqPath); err != nil {
		return nil, fmt.Errorf("load requirements: %w", err)
	}

	count := analysis.CountRequirements(reqPath)
	extended := false
	if count > 0 {
		extended, err = r.locker.Extend(ctx, time.Duration(count)*r.perRequirement)
		if err != nil {
			return nil, fmt.Errorf("extend lock for %d requirements: %w", count, err)
		}
	}

	results, err := r.client.ProcessRequirements(ctx)
	if err != nil {
		r.deleteIngested(ctx)
		return nil, fmt.Errorf("process requirements: %w", err)
	}

	stamp := r.clock.Now().Format("2006-01-02-15:04:05")
	resultsFile := "NirmatAI_results_" + stamp + ".csv"
	resultsPath := filepath.Join(r.workspace.ResultsDir(owner), resultsFile)
	if err := analysis.SaveResults(results, resultsPath, true); err != nil {
		r.deleteIngested(ctx)
		return nil, err
	}

	reportFile := "Result_logs_" + stamp + ".txt"
	documents, err := r.workspace.ListDocuments(owner)
	if err != nil {
		internal.GetLogger().Printf("Failed to list uploaded documents for the report, err: %v", err)
	}
	logs, err := r.client.ProcessLogs(ctx)
	if err != nil {
		internal.GetLogger().Printf("Failed to fetch process logs, err: %v", err)
	}
	report := Report{
		GeneratedAt:      r.clock.Now(),
		Documents:        documents,
		RequirementsFile: requirementsFile,
		Logs:             logs,
	}
	reportPath := filepath.Join(r.workspace.ResultsDir(owner), reportFile)
	if err := report.WriteFile(reportPath); err != nil {
		internal.GetLogger().Printf("Failed to write processing report, err: %v", err)
		reportFile = ""
	}

	r.deleteIngested(ctx)

	internal.GetLogger().Printf("Processing complete for %s", owner)
	return &Outcome{
		Owner:            owner,
		RequirementCount: count,
		Extended:         extended,
		BrokenFiles:      broken,
		Results:          results,
		Statistics:       ComputeComplianceStatistics(results),
		ResultsFile:      resultsFile,
		ReportFile:       reportFile,
		Elapsed:          r.clock.Since(start),
	}, nil
}

// deleteIngested clears the service's document store so one submission
// never leaks into the next. Failures are logged, not fatal: the run's
// outcome is already decided at this point.
func (r *Runner) deleteIngested(ctx context.Context) {
	if err := r.client.DeleteAllDocuments(ctx); err != nil {
		internal.GetLogger().Printf("Failed to delete ingested documents, err: %v", err)
	}
}

package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeService is a minimal stand-in for the analysis service HTTP surface.
type fakeService struct {
	mu        sync.Mutex
	healthy   bool
	ingested  []string
	rejected  map[string]string
	reqsFile  string
	results   []Result
	logs      []ProcessLog
	processed int
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if !f.healthy {
			status = "ko"
		}
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	mux.HandleFunc("/v1/ingest/file", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file.Close()
		f.mu.Lock()
		defer f.mu.Unlock()
		if reason, ok := f.rejected[header.Filename]; ok {
			http.Error(w, reason, http.StatusUnprocessableEntity)
			return
		}
		f.ingested = append(f.ingested, header.Filename)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/requirements", func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.reqsFile = header.Filename
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/process", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.processed++
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"results": f.results})
	})
	mux.HandleFunc("/v1/process/logs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"logs": f.logs})
	})
	mux.HandleFunc("/v1/ingest/list", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		docs := make([]map[string]string, 0, len(f.ingested))
		for _, name := range f.ingested {
			docs = append(docs, map[string]string{"doc_id": name})
		}
		json.NewEncoder(w).Encode(map[string]any{"data": docs})
	})
	mux.HandleFunc("/v1/ingest/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		id := strings.TrimPrefix(r.URL.Path, "/v1/ingest/")
		kept := f.ingested[:0]
		for _, name := range f.ingested {
			if name != id {
				kept = append(kept, name)
			}
		}
		f.ingested = kept
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newFakeService(t *testing.T) (*fakeService, *Client) {
	t.Helper()
	svc := &fakeService{healthy: true}
	server := httptest.NewServer(svc.handler())
	t.Cleanup(server.Close)
	return svc, NewClient(server.URL, 5*time.Second)
}

func writeDocs(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("content of "+name), 0o644))
	}
	return dir
}

func TestHealthCheck(t *testing.T) {
	svc, client := newFakeService(t)

	status, err := client.HealthCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)

	svc.healthy = false
	status, err = client.HealthCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusKO, status)
}

func TestHealthCheckUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second)
	status, err := client.HealthCheck(context.Background())
	require.Error(t, err)
	require.Equal(t, StatusKO, status)
}

func TestIngest(t *testing.T) {
	svc, client := newFakeService(t)
	dir := writeDocs(t, "audit.pdf", "manual.docx", "notes.txt")

	require.NoError(t, client.Ingest(context.Background(), dir))
	require.ElementsMatch(t, []string{"audit.pdf", "manual.docx", "notes.txt"}, svc.ingested)
	require.Empty(t, client.BrokenFiles())
}

func TestIngestCollectsBrokenFiles(t *testing.T) {
	svc, client := newFakeService(t)
	svc.rejected = map[string]string{"scan.pdf": "file appears to be encrypted"}
	dir := writeDocs(t, "audit.pdf", "scan.pdf")

	require.NoError(t, client.Ingest(context.Background(), dir))
	require.Equal(t, []string{"audit.pdf"}, svc.ingested)

	broken := client.BrokenFiles()
	require.Len(t, broken, 1)
	require.Equal(t, filepath.Join(dir, "scan.pdf"), broken[0].Path)
	require.Contains(t, broken[0].Reason, "encrypted")
}

func TestLoadRequirements(t *testing.T) {
	svc, client := newFakeService(t)
	dir := writeDocs(t, "requirements.csv")

	require.NoError(t, client.LoadRequirements(context.Background(), filepath.Join(dir, "requirements.csv")))
	require.Equal(t, "requirements.csv", svc.reqsFile)
}

func TestProcessRequirements(t *testing.T) {
	svc, client := newFakeService(t)
	svc.results = []Result{
		{RequirementID: "REQ-1", Requirement: "The QMS shall be documented", ComplianceStatus: "full-compliance"},
		{RequirementID: "REQ-2", Requirement: "Records shall be retained", ComplianceStatus: "major non-conformity"},
	}

	results, err := client.ProcessRequirements(context.Background())
	require.NoError(t, err)
	require.Equal(t, svc.results, results)
	require.Equal(t, 1, svc.processed)
}

func TestProcessLogs(t *testing.T) {
	svc, client := newFakeService(t)
	svc.logs = []ProcessLog{
		{RequirementID: "REQ-1", ProcessingStatus: "Success", ProcessingTime: 12.5},
		{RequirementID: "REQ-2", ProcessingStatus: "Failure", Error: "context length exceeded"},
	}

	logs, err := client.ProcessLogs(context.Background())
	require.NoError(t, err)
	require.Equal(t, svc.logs, logs)
	require.True(t, logs[0].Succeeded())
	require.False(t, logs[1].Succeeded())
}

func TestDeleteAllDocuments(t *testing.T) {
	svc, client := newFakeService(t)
	dir := writeDocs(t, "audit.pdf", "manual.docx")
	require.NoError(t, client.Ingest(context.Background(), dir))
	require.Len(t, svc.ingested, 2)

	require.NoError(t, client.DeleteAllDocuments(context.Background()))
	require.Empty(t, svc.ingested)
}

func TestSaveAndLoadResults(t *testing.T) {
	results := []Result{
		{
			RequirementID:    "REQ-1",
			Requirement:      "The QMS shall be documented",
			PotentialMeans:   "Quality manual",
			Label:            "full-compliance",
			ComplianceStatus: "full-compliance",
			Rationale:        "Section 4.2 of the quality manual covers this",
			RefToDoc:         "quality_manual.pdf",
		},
		{
			RequirementID:    "REQ-2",
			Requirement:      "Records shall be retained",
			ComplianceStatus: "minor non-conformity",
		},
	}

	path := filepath.Join(t.TempDir(), "results", "NirmatAI_results.csv")
	require.NoError(t, SaveResults(results, path, true))

	loaded, err := LoadResults(path)
	require.NoError(t, err)
	require.Equal(t, results, loaded)
}

func TestSaveResultsWithoutRequirements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, SaveResults([]Result{{RequirementID: "REQ-1", ComplianceStatus: "full-compliance"}}, path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "Requirement ID,Compliance status,Rationale,Ref. to Doc")
	require.NotContains(t, string(data), "Potential Means")
	require.True(t, strings.HasPrefix(string(data), "Requirement ID"))
}

func TestCountRequirements(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requirements.csv")
	data := "Requirement ID,Requirement,Potential Means of Compliance\nREQ-1,text,means\nREQ-2,text,means\nREQ-3,text,means\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	require.Equal(t, 3, CountRequirements(path))
	require.Equal(t, 0, CountRequirements(filepath.Join(dir, "missing.csv")))
}

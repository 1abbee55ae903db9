package portal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	for input, want := range map[string]string{
		"report.pdf":          "report.pdf",
		"my file.docx":        "my_file.docx",
		"../../etc/passwd":    ".._.._etc_passwd",
		"reqs (final).xlsx":   "reqs__final_.xlsx",
		"Ünïcode.txt":         "_n_code.txt",
		"already_safe-01.csv": "already_safe-01.csv",
	} {
		require.Equal(t, want, SanitizeFilename(input), "input %q", input)
	}
}

func TestSaveDocument(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	path, err := ws.SaveDocument("alice123", "audit report.pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(ws.DocumentsDir("alice123"), "audit_report.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "pdf bytes", string(data))
}

func TestSaveDocumentTraversalStaysInside(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	path, err := ws.SaveDocument("alice123", "../../escape.txt", strings.NewReader("x"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(path, ws.DocumentsDir("alice123")))
}

func TestSaveRequirementsCreatesResultsDir(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	_, err = ws.SaveRequirements("alice123", "requirements.xlsx", strings.NewReader("sheet"))
	require.NoError(t, err)
	require.DirExists(t, ws.ResultsDir("alice123"))
}

func TestListDocuments(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	names, err := ws.ListDocuments("nobody12")
	require.NoError(t, err)
	require.Empty(t, names)

	_, err = ws.SaveDocument("alice123", "a.pdf", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = ws.SaveDocument("alice123", "b.txt", strings.NewReader("b"))
	require.NoError(t, err)

	names, err = ws.ListDocuments("alice123")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.pdf", "b.txt"}, names)
}

func TestRemoveDocument(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	path, err := ws.SaveDocument("alice123", "a.pdf", strings.NewReader("a"))
	require.NoError(t, err)

	require.NoError(t, ws.RemoveDocument("alice123", "a.pdf"))
	require.NoFileExists(t, path)
}

func TestRemoveOwner(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	require.Error(t, ws.RemoveOwner(""))
	require.Error(t, ws.RemoveOwner("   "))

	// A missing folder is not an error.
	require.NoError(t, ws.RemoveOwner("never-logged-in"))

	_, err = ws.SaveDocument("alice123", "a.pdf", strings.NewReader("a"))
	require.NoError(t, err)
	require.NoError(t, ws.RemoveOwner("alice123"))
	require.NoDirExists(t, filepath.Join(ws.Root(), "alice123"))
}

func TestValidatePath(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	saved, err := ws.SaveDocument("alice123", "a.pdf", strings.NewReader("a"))
	require.NoError(t, err)

	path, err := ws.ValidatePath(ws.DocumentsDir("alice123"), "a.pdf")
	require.NoError(t, err)
	require.Equal(t, saved, path)

	_, err = ws.ValidatePath(ws.DocumentsDir("alice123"), "../requirements/secret.xlsx")
	require.Error(t, err)

	_, err = ws.ValidatePath(ws.DocumentsDir("alice123"), "missing.pdf")
	require.Error(t, err)
}

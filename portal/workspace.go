package portal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/CertX-AI/NirmatAI-WebApp/internal"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_\-.]`)

// SanitizeFilename replaces every character that could smuggle a path
// component into an upload name. Only alphanumerics, dashes, underscores
// and dots survive.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// Workspace manages the per-owner upload tree:
//
//	<root>/<owner>/documents/
//	<root>/<owner>/requirements/
//	<root>/<owner>/results/
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace rooted at root, creating the root
// directory if needed.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		return nil, errors.New("workspace root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string {
	return w.root
}

// DocumentsDir returns the documents directory of an owner.
func (w *Workspace) DocumentsDir(owner string) string {
	return filepath.Join(w.root, SanitizeFilename(owner), "documents")
}

// RequirementsDir returns the requirements directory of an owner.
func (w *Workspace) RequirementsDir(owner string) string {
	return filepath.Join(w.root, SanitizeFilename(owner), "requirements")
}

// ResultsDir returns the results directory of an owner.
func (w *Workspace) ResultsDir(owner string) string {
	return filepath.Join(w.root, SanitizeFilename(owner), "results")
}

// SaveDocument stores an uploaded document under the owner's documents
// directory and returns the stored path.
func (w *Workspace) SaveDocument(owner, name string, data io.Reader) (string, error) {
	return w.save(w.DocumentsDir(owner), name, data)
}

// SaveRequirements stores the requirements spreadsheet under the owner's
// requirements directory. The results directory is created alongside so a
// later run can save there without further setup.
func (w *Workspace) SaveRequirements(owner, name string, data io.Reader) (string, error) {
	if err := os.MkdirAll(w.ResultsDir(owner), 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	return w.save(w.RequirementsDir(owner), name, data)
}

func (w *Workspace) save(dir, name string, data io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(dir, SanitizeFilename(name))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(file, data); err != nil {
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

// RemoveDocument deletes a stored document. A document that is already gone
// is not an error.
func (w *Workspace) RemoveDocument(owner, name string) error {
	path, err := w.ValidatePath(w.DocumentsDir(owner), name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}

// ListDocuments returns the file names currently stored in the owner's
// documents directory, sorted by os.ReadDir order.
func (w *Workspace) ListDocuments(owner string) ([]string, error) {
	entries, err := os.ReadDir(w.DocumentsDir(owner))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list documents: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// RemoveOwner deletes the owner's entire upload tree. An empty owner is
// rejected so a bad caller cannot wipe the workspace root. A missing tree
// is logged and ignored.
func (w *Workspace) RemoveOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return errors.New("owner cannot be empty")
	}
	dir := filepath.Join(w.root, SanitizeFilename(owner))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		internal.GetLogger().Printf("Folder for %s does not exist, nothing to remove", owner)
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove owner folder: %w", err)
	}
	return nil
}

// ValidatePath joins base and name and rejects results escaping base or
// pointing at nothing.
func (w *Workspace) ValidatePath(base, name string) (string, error) {
	full := filepath.Join(base, name)
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %q", name, base)
	}
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("stat %s: %w", full, err)
	}
	return full, nil
}

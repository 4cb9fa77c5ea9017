package history

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/reflectsonar/reflectsonar/internal/domain"
)

// maxEntries bounds each project's history file.
const maxEntries = 100

// FileHistory implements domain.ReportHistory using one JSON file per project.
type FileHistory struct {
	dir string
}

// New stores history below $XDG_STATE_HOME/reflectsonar/history.
func New() *FileHistory {
	return &FileHistory{dir: filepath.Join(xdg.StateHome, "reflectsonar", "history")}
}

// NewInDir stores history files in dir.
func NewInDir(dir string) *FileHistory {
	return &FileHistory{dir: dir}
}

func (h *FileHistory) Save(entry domain.ReportEntry) error {
	entries, err := h.Load(entry.ProjectKey)
	if err != nil {
		return err
	}

	entries = append(entries, entry)
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(h.path(entry.ProjectKey), data, 0o644)
}

func (h *FileHistory) Load(projectKey string) ([]domain.ReportEntry, error) {
	data, err := os.ReadFile(h.path(projectKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []domain.ReportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

func (h *FileHistory) path(projectKey string) string {
	return filepath.Join(h.dir, domain.SafeName(projectKey)+".json")
}

var _ domain.ReportHistory = (*FileHistory)(nil)

package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"chainblock/pkg/logger"
)

// Format is the file format of an export
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" or "json", case-insensitively
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

const csvHeader = "user_id"

// Blocklist is the content of one export file
type Blocklist struct {
	Executor   string    `json:"executor"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	UserIDs    []string  `json:"user_ids"`
}

// Manager writes blocklist exports into a directory
type Manager struct {
	dir    string
	format Format
	log    logger.Logger
}

// NewManager creates dir if needed and returns a manager writing format files into it
func NewManager(dir string, format Format, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{dir: dir, format: format, log: log}, nil
}

// Dir returns the export directory
func (m *Manager) Dir() string {
	return m.dir
}

// FileName is the name an export of executor taken at t is written under
func FileName(executor string, t time.Time, format Format) string {
	return fmt.Sprintf("blocklist-%s-%s.%s", executor, t.UTC().Format("20060102-150405"), format)
}

// Save writes b and returns the path of the new file
func (m *Manager) Save(b Blocklist) (string, error) {
	if b.ExportedAt.IsZero() {
		b.ExportedAt = time.Now()
	}
	b.Count = len(b.UserIDs)

	path := filepath.Join(m.dir, FileName(b.Executor, b.ExportedAt, m.format))
	err := writeAtomic(path, func(w io.Writer) error {
		return Encode(w, m.format, b)
	})
	if err != nil {
		return "", err
	}

	m.log.InfoWithFields("Blocklist exported", map[string]interface{}{
		"executor": b.Executor,
		"count":    b.Count,
		"path":     path,
	})
	return path, nil
}

// List returns the export files in the directory, oldest first
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "blocklist-") {
			continue
		}
		if _, err := formatOf(e.Name()); err == nil {
			files = append(files, filepath.Join(m.dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Encode writes b to w in format
func Encode(w io.Writer, format Format, b Blocklist) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{csvHeader}); err != nil {
			return err
		}
		for _, id := range b.UserIDs {
			if err := cw.Write([]string{id}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}


// ReadFile loads the user IDs of an export file, choosing the decoder by
// extension. It also accepts a plain CSV list without a header.
func ReadFile(path string) ([]string, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, format)
}

// Decode reads user IDs in format from r, skipping blanks and duplicates
func Decode(r io.Reader, format Format) ([]string, error) {
	var raw []string
	switch format {
	case FormatJSON:
		var b Blocklist
		if err := json.NewDecoder(r).Decode(&b); err != nil {
			return nil, fmt.Errorf("failed to parse export: %w", err)
		}
		raw = b.UserIDs
	case FormatCSV:
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to parse export: %w", err)
		}
		for i, row := range rows {
			if len(row) == 0 || (i == 0 && row[0] == csvHeader) {
				continue
			}
			raw = append(raw, row[0])
		}
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}

	seen := make(map[string]bool, len(raw))
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func formatOf(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "txt" {
		return FormatCSV, nil
	}
	return ParseFormat(ext)
}

// writeAtomic writes through a temporary file renamed into place
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	err = write(out)
	closeErr := out.Close()
	if err = errors.Join(err, closeErr); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write export: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chainblock/pkg/config"
	"chainblock/pkg/logger"
	"chainblock/pkg/request"
	"chainblock/pkg/session"
)

// DefaultLimit is the number of records a journal keeps
const DefaultLimit = 200

const journalVersion = 1

// Record describes one finished run of a session. A recurring session adds
// a record every time it goes back to waiting.
type Record struct {
	SessionID  string              `json:"session_id"`
	Purpose    request.PurposeKind `json:"purpose"`
	Target     string              `json:"target"`
	Executor   string              `json:"executor"`
	Status     session.Status      `json:"status"`
	Reason     session.StopReason  `json:"reason,omitempty"`
	Error      string              `json:"error,omitempty"`
	Progress   session.Progress    `json:"progress"`
	FinishedAt time.Time           `json:"finished_at"`
}

type journalFile struct {
	Version int      `json:"version"`
	Records []Record `json:"records"`
}

// Journal appends records to a JSON file, keeping the newest Limit of them
type Journal struct {
	path   string
	limit  int
	logger logger.Logger
	now    func() time.Time

	mu sync.Mutex
}

var _ session.Sink = (*Journal)(nil)

// NewJournal creates a journal at path. A limit of zero or less uses DefaultLimit.
func NewJournal(path string, limit int, log logger.Logger) *Journal {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Journal{path: path, limit: limit, logger: log, now: time.Now}
}

// DefaultPath returns history.json in the data directory
func DefaultPath() (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", fmt.Errorf("failed to get data directory: %w", err)
	}
	return filepath.Join(dir, "history.json"), nil
}

// Path returns the journal file
func (j *Journal) Path() string {
	return j.path
}

// Load returns every record, oldest first. A missing file is an empty journal.
func (j *Journal) Load() ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.load()
}

func (j *Journal) load() ([]Record, error) {
	file, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	var jf journalFile
	if err := json.NewDecoder(file).Decode(&jf); err != nil {
		return nil, fmt.Errorf("failed to decode history file: %w", err)
	}
	if jf.Version > journalVersion {
		return nil, fmt.Errorf("history file version %d is newer than supported version %d", jf.Version, journalVersion)
	}
	return jf.Records, nil
}

// Append adds r, dropping the oldest records beyond the limit
func (j *Journal) Append(r Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	records, err := j.load()
	if err != nil {
		return err
	}
	records = append(records, r)
	if over := len(records) - j.limit; over > 0 {
		records = records[over:]
	}
	return j.save(records)
}

// Clear removes the journal file
func (j *Journal) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	j.logger.Info("History cleared")
	return nil
}

// save writes records atomically
func (j *Journal) save(records []Record) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tempPath := j.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary history file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(journalFile{Version: journalVersion, Records: records}); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync history file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close history file: %w", err)
	}
	if err := os.Rename(tempPath, j.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	j.logger.DebugWithFields("History saved", map[string]interface{}{
		"path":    j.path,
		"records": len(records),
	})
	return nil
}

// HandleEvent records the end of every run
func (j *Journal) HandleEvent(e session.Event) {
	switch e.Kind {
	case session.EventComplete, session.EventStopped, session.EventError, session.EventRecurringWaiting:
	default:
		return
	}

	if err := j.Append(RecordOf(e, j.now())); err != nil {
		j.logger.WithError(err).WithField("session_id", e.Info.ID).Warn("Failed to record session history")
	}
}

// RecordOf builds the record for an event ending a run
func RecordOf(e session.Event, at time.Time) Record {
	info := e.Info
	r := Record{
		SessionID:  info.ID,
		Purpose:    info.Request.Purpose.Kind,
		Target:     info.Request.Target.String(),
		Executor:   info.Request.Executor.User.ScreenName,
		Status:     info.Status,
		Reason:     e.Reason,
		Progress:   info.Progress,
		FinishedAt: at,
	}
	if e.Err != nil {
		r.Error = e.Err.Error()
	}
	return r
}

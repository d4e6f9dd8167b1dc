package history

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainblock/pkg/logger"
	"chainblock/pkg/models"
	"chainblock/pkg/request"
	"chainblock/pkg/session"
)

func newTestJournal(t *testing.T, limit int) *Journal {
	t.Helper()
	return NewJournal(filepath.Join(t.TempDir(), "state", "history.json"), limit, logger.NewNopLogger())
}

func event(kind session.EventKind, id string) session.Event {
	target := models.User{ID: "100", ScreenName: "target"}
	return session.Event{
		Kind: kind,
		Info: session.Info{
			ID:     id,
			Status: session.StatusCompleted,
			Request: request.Request{
				Purpose:  request.Purpose{Kind: request.ChainBlock},
				Target:   request.Target{Kind: request.FollowerList, User: &target, List: request.Followers},
				Executor: request.Actor{User: models.User{ID: "1", ScreenName: "me"}},
			},
			Progress: session.Progress{
				Success: map[request.Verb]int{request.Block: 3},
				Skipped: 2,
				Scraped: 5,
			},
		},
	}
}

func TestJournalMissingFileIsEmpty(t *testing.T) {
	j := newTestJournal(t, 0)

	records, err := j.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, DefaultLimit, j.limit)
}

func TestJournalAppendAndLoad(t *testing.T) {
	j := newTestJournal(t, 10)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Append(RecordOf(event(session.EventComplete, "a"), at)))
	require.NoError(t, j.Append(RecordOf(event(session.EventComplete, "b"), at.Add(time.Minute))))

	records, err := j.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].SessionID)
	assert.Equal(t, "b", records[1].SessionID)
	assert.Equal(t, request.ChainBlock, records[0].Purpose)
	assert.Equal(t, "me", records[0].Executor)
	assert.Equal(t, 3, records[0].Progress.Success[request.Block])
	assert.True(t, at.Equal(records[0].FinishedAt))

	_, err = os.Stat(j.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file left behind")
}

func TestJournalKeepsNewestRecords(t *testing.T) {
	j := newTestJournal(t, 2)
	now := time.Now()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, j.Append(RecordOf(event(session.EventComplete, id), now)))
	}

	records, err := j.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[0].SessionID)
	assert.Equal(t, "c", records[1].SessionID)
}

func TestJournalHandleEvent(t *testing.T) {
	j := newTestJournal(t, 10)

	j.HandleEvent(event(session.EventStarted, "a"))
	j.HandleEvent(event(session.EventMarkUser, "a"))

	stopped := event(session.EventStopped, "a")
	stopped.Reason = session.ReasonBlockLimitationReached
	j.HandleEvent(stopped)

	failed := event(session.EventError, "b")
	failed.Err = errors.New("target vanished")
	j.HandleEvent(failed)

	records, err := j.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, session.ReasonBlockLimitationReached, records[0].Reason)
	assert.Equal(t, "target vanished", records[1].Error)
}

func TestJournalRejectsNewerVersion(t *testing.T) {
	j := newTestJournal(t, 10)
	require.NoError(t, os.MkdirAll(filepath.Dir(j.Path()), 0755))
	require.NoError(t, os.WriteFile(j.Path(), []byte(`{"version": 99, "records": []}`), 0644))

	_, err := j.Load()
	assert.ErrorContains(t, err, "newer")
}

func TestJournalClear(t *testing.T) {
	j := newTestJournal(t, 10)
	require.NoError(t, j.Append(RecordOf(event(session.EventComplete, "a"), time.Now())))

	require.NoError(t, j.Clear())
	records, err := j.Load()
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.NoError(t, j.Clear(), "clearing twice")
}

func TestDefaultPathUsesDataHome(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("XDG_DATA_HOME is not consulted on " + runtime.GOOS)
	}
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chainblock", "history.json"), path)
}

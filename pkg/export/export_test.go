package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chainblock/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndReadBack(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	for _, format := range []Format{FormatCSV, FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			dir := t.TempDir()
			m, err := NewManager(dir, format, logger.NewNopLogger())
			require.NoError(t, err)

			path, err := m.Save(Blocklist{Executor: "alice", ExportedAt: at, UserIDs: []string{"1", "2", "3"}})
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "blocklist-alice-20240301-123000."+string(format)), path)

			ids, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, []string{"1", "2", "3"}, ids)

			_, err = os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err))

			files, err := m.List()
			require.NoError(t, err)
			assert.Equal(t, []string{path}, files)
		})
	}
}

func TestEncodeCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, FormatCSV, Blocklist{UserIDs: []string{"10", "20"}}))
	assert.Equal(t, "user_id\n10\n20\n", buf.String())
}

func TestDecodeSkipsBlanksAndDuplicates(t *testing.T) {
	ids, err := Decode(strings.NewReader("5\n\n 6 \n5\n"), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "6"}, ids)
}

func TestDecodeRejectsBrokenJSON(t *testing.T) {
	_, err := Decode(strings.NewReader("{"), FormatJSON)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestListIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, FormatCSV, logger.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.csv"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocklist-a.xml"), []byte("x"), 0644))

	files, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

package spool

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSpoolFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReaderParsesEvents(t *testing.T) {
	path := writeSpoolFile(t, "events.ndjson",
		"{\"event\":\"one\"}\n{\"event\":\"two\",\"host\":\"db-1\"}\n")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "one", first["event"])

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "two", second["event"])
	assert.Equal(t, "db-1", second["host"])

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderSkipsBlankLines(t *testing.T) {
	path := writeSpoolFile(t, "padded.ndjson",
		"\n{\"event\":\"one\"}\n\n   \n{\"event\":\"two\"}\n\n")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	var events []string
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		events = append(events, e["event"].(string))
	}
	assert.Equal(t, []string{"one", "two"}, events)
}

func TestReaderContinuesAfterBadLine(t *testing.T) {
	path := writeSpoolFile(t, "mixed.ndjson",
		"{\"event\":\"one\"}\nnot json\n{\"event\":\"two\"}\n")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.NoError(t, err)

	_, err = r.Next()
	var lineErr *LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, path, lineErr.File)
	assert.Equal(t, 2, lineErr.Line)

	event, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "two", event["event"])

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderUnterminatedFinalLine(t *testing.T) {
	path := writeSpoolFile(t, "cut.ndjson",
		"{\"event\":\"one\"}\n{\"event\":\"two\"}")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.NoError(t, err)

	event, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "two", event["event"])

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderFromStream(t *testing.T) {
	r := NewReader(strings.NewReader("{\"event\":\"piped\"}\n"), "stdin")
	defer r.Close()

	event, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "piped", event["event"])

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.ndjson"))
	assert.Error(t, err)
}

func TestIsSpoolFile(t *testing.T) {
	assert.True(t, IsSpoolFile("events.ndjson"))
	assert.True(t, IsSpoolFile("/var/spool/hec/events.ndjson"))
	assert.False(t, IsSpoolFile(".staged.ndjson"))
	assert.False(t, IsSpoolFile("events.ndjson.tmp"))
	assert.False(t, IsSpoolFile("notes.txt"))
}

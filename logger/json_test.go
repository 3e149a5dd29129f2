package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []JSONLogEntry {
	t.Helper()
	var out []JSONLogEntry
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var e JSONLogEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		out = append(out, e)
	}
	return out
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	log := NewJSONWriterLogger(&buf, LevelInfo)
	log.(*jsonLogger).now = func() time.Time { return ts }

	log.Debug("hidden")
	log.WithPrefix("[cache]").WithPrefix("[store]").With(map[string]interface{}{"layer": "users"}).Warn("layer %q expired", "users")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "WARNING", e.Severity)
	assert.Equal(t, `layer "users" expired`, e.Message)
	assert.Equal(t, "cache, store", e.Component)
	assert.Equal(t, map[string]interface{}{"layer": "users"}, e.Metadata)
	assert.True(t, ts.Equal(e.Timestamp))
}

func TestJSONLoggerComponentMetadata(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONWriterLogger(&buf, LevelTrace).With(map[string]interface{}{"component": "cachectl"})
	log.Trace("hello")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "cachectl", entries[0].Component)
	assert.Empty(t, entries[0].Metadata)
}

func TestJSONLoggerSink(t *testing.T) {
	var buf, sink bytes.Buffer
	log := NewJSONWriterLogger(&buf, LevelError)
	log.SetSink(&sink, LevelDebug)

	log.Debug("\x1b[31mred\x1b[0m")
	assert.Empty(t, buf.String())
	entries := decodeLines(t, &sink)
	require.Len(t, entries, 1)
	assert.Equal(t, "red", entries[0].Message)
	assert.Equal(t, "DEBUG", entries[0].Severity)
}

package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogrusLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Options{Level: "info", Output: &buf})
	require.NoError(t, err)
	defer closeFn()

	log.Info("test message")

	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), "level=info")
}

func TestLogrusLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Options{Level: "warn", Output: &buf})
	require.NoError(t, err)
	defer closeFn()

	log.Info("hidden")
	log.Debug("hidden too")
	log.Warn("shown")

	output := buf.String()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, "shown")
}

func TestLogrusLogger_ErrorWithFields(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Options{Format: "json", Output: &buf})
	require.NoError(t, err)
	defer closeFn()

	log.WithFields(map[string]interface{}{
		"device": "sw1",
		"phase":  "connecting",
	}).WithField("operation", "compare").Error("device failed", errors.New("timeout"))

	output := buf.String()
	for _, want := range []string{`"device":"sw1"`, `"phase":"connecting"`, `"operation":"compare"`, `"error":"timeout"`} {
		assert.Contains(t, output, want)
	}
}

func TestNew_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ilmari.log")

	for _, msg := range []string{"first run", "second run"} {
		var buf bytes.Buffer
		log, closeFn, err := New(Options{File: path, Output: &buf})
		require.NoError(t, err)
		log.Info(msg)
		require.NoError(t, closeFn())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "first run")
	assert.Contains(t, content, "second run")
	assert.Equal(t, 2, strings.Count(content, "level=info"))
}

func TestNew_InvalidOptions(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, _, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Info("ignored")
	log.WithField("k", "v").Error("ignored", errors.New("x"))
}

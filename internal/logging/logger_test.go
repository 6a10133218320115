package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logrus.Level
		wantErr bool
	}{
		{"", logrus.InfoLevel, false},
		{"debug", logrus.DebugLevel, false},
		{"WARN", logrus.WarnLevel, false},
		{"error", logrus.ErrorLevel, false},
		{"loud", logrus.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestJSONLoggerWritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "mine.log")
	var console bytes.Buffer

	l, err := newLogger(Config{Level: "debug", OutputFile: path, JSONFormat: true}, &console)
	require.NoError(t, err)

	l.WithField("inconsistency", "safety_net").Warn("live method missing from registry, created")
	require.NoError(t, l.Close())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(console.Bytes(), &entry))
	assert.Equal(t, "safety_net", entry["inconsistency"])
	assert.Equal(t, "warning", entry["level"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "live method missing from registry")
	assert.Equal(t, path, l.FilePath())
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mine.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0644))

	l, err := newLogger(Config{OutputFile: path, MaxSize: 32, MaxBackups: 2}, &bytes.Buffer{})
	require.NoError(t, err)
	defer l.Close()

	rotated, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Len(t, rotated, 64)
}

func TestInvalidLevel(t *testing.T) {
	_, err := newLogger(Config{Level: "chatty"}, &bytes.Buffer{})
	assert.Error(t, err)
}

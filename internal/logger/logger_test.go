package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	log := NewWithWriter(DefaultConfig(), &buf)
	log.Debug("hidden")
	log.Info("stored", "chunks", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "stored", record["msg"])
	assert.Equal(t, float64(3), record["chunks"])
}

func TestNewWithWriter_TextSetsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	NewWithWriter(Config{Level: slog.LevelDebug, Format: "text"}, &buf)
	slog.Debug("via default", "k", "v")

	assert.Contains(t, buf.String(), "msg=\"via default\"")
	assert.Contains(t, buf.String(), "k=v")
}

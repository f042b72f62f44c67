package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAppliesLevelAndFormat(t *testing.T) {
	require.NoError(t, Init("warn", "json"))
	var buf bytes.Buffer
	get().SetOutput(&buf)

	Infof("dropped %d", 1)
	assert.Empty(t, buf.String())

	WithField("session", "abc").Warnf("kept %d", 2)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept 2", entry["msg"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "abc", entry["session"])
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init("loud", "text"))
	var buf bytes.Buffer
	get().SetOutput(&buf)

	Debug("hidden")
	Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

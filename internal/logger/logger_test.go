package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, newWithWriter(&bytes.Buffer{}, tt.in, false).GetLevel())
		})
	}
}

func TestNewJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "info", false)
	log.Debug().Msg("hidden")
	log.Info().Str("component", "scheduler").Msg("cycle done")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cycle done", line["message"])
	assert.Equal(t, "scheduler", line["component"])
	assert.Contains(t, line, "time")
}

func TestNewPretty(t *testing.T) {
	var buf bytes.Buffer
	newWithWriter(&buf, "info", true).Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}

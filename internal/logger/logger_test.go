package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONCarriesServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "json")

	compLog := log.With().Str("component", "catalog").Logger()
	compLog.Info().Msg("ready")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, ServiceName, line["service"])
	assert.Equal(t, "catalog", line["component"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "ready", line["message"])
}

func TestNewFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "verbose", "json")

	log.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}

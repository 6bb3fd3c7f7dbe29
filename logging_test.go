package main

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogging(t *testing.T) {
	previous := log.Logger
	previousLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = previous
		zerolog.SetGlobalLevel(previousLevel)
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		setupLoggingTo(LoggingConfig{Level: "warn", Format: "json"}, &buf)

		log.Info().Msg("hidden")
		log.Warn().Int64("user", 7).Msg("shown")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "shown", entry["message"])
		assert.EqualValues(t, 7, entry["user"])
		assert.Contains(t, entry, "time")
	})

	t.Run("console", func(t *testing.T) {
		var buf bytes.Buffer
		setupLoggingTo(LoggingConfig{Level: "debug", Format: "console"}, &buf)

		log.Debug().Msg("plain text")

		assert.Contains(t, buf.String(), "plain text")
		assert.NotContains(t, buf.String(), `"message"`)
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		setupLoggingTo(LoggingConfig{Level: "chatty"}, &buf)

		assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	})
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBackend(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	output := filepath.Join(dir, "out.mp4")
	require.NoError(t, os.WriteFile(input, []byte("video"), 0o644))

	t.Run("success", func(t *testing.T) {
		require.NoError(t, runBackend(copyBackend, input, output))

		data, err := os.ReadFile(output)
		require.NoError(t, err)
		assert.Equal(t, "video", string(data))
	})

	t.Run("non-zero exit", func(t *testing.T) {
		err := runBackend(failBackend, input, output)

		var transcodeErr *TranscodeError
		require.ErrorAs(t, err, &transcodeErr)
		assert.Contains(t, transcodeErr.Output, "Invalid data found when processing input")
		assert.Contains(t, err.Error(), "exit status 1")
	})

	t.Run("unavailable", func(t *testing.T) {
		err := runBackend(&scriptBackend{unavailable: true}, input, output)

		assert.ErrorIs(t, err, ErrBackendUnavailable)
	})
}

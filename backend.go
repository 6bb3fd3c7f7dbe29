package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

var ErrBackendUnavailable = errors.New("the selected backend is not available")

// Backend is the external transcoding tool. The command it builds runs to
// completion once started; the recipe itself caps the output duration.
type Backend interface {
	isAvailable() bool
	buildCmd(input, output string) (*exec.Cmd, error)
	setupLogOutput(cmd *exec.Cmd, buffer *bytes.Buffer)
}

// Prober reads stream metadata from a local media file.
type Prober interface {
	Probe(ctx context.Context, path string) (MediaInfo, error)
}

// TranscodeError is returned when the backend exits non-zero. Output holds
// whatever the tool wrote to its diagnostic stream.
type TranscodeError struct {
	Err    error
	Output string
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcoder failed: %v", e.Err)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

func runBackend(b Backend, input, output string) error {
	if !b.isAvailable() {
		return &TranscodeError{Err: ErrBackendUnavailable}
	}
	command, err := b.buildCmd(input, output)
	if err != nil {
		return &TranscodeError{Err: err}
	}
	var logBuffer bytes.Buffer
	b.setupLogOutput(command, &logBuffer)
	if err := command.Run(); err != nil {
		return &TranscodeError{Err: err, Output: logBuffer.String()}
	}
	return nil
}

package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"sync"

	"github.com/stretchr/testify/mock"
)

type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) MemberStatus(ctx context.Context, chat string, userID int64) (string, error) {
	args := m.Called(ctx, chat, userID)
	return args.String(0), args.Error(1)
}

func (m *MockPlatform) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	args := m.Called(ctx, chatID, text)
	return args.Int(0), args.Error(1)
}

func (m *MockPlatform) SendVideoNote(ctx context.Context, chatID int64, path string, length int) error {
	args := m.Called(ctx, chatID, path, length)
	return args.Error(0)
}

func (m *MockPlatform) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	args := m.Called(ctx, chatID, messageID)
	return args.Error(0)
}

func (m *MockPlatform) DownloadFile(ctx context.Context, fileID, dst string) error {
	args := m.Called(ctx, fileID, dst)
	return args.Error(0)
}

// writeDownload makes a mocked DownloadFile leave a file behind, the way a
// real download does.
func writeDownload(args mock.Arguments) {
	if err := os.WriteFile(args.String(2), []byte("video"), 0o644); err != nil {
		panic(err)
	}
}

// scriptBackend runs a shell script with the input and output paths as $1
// and $2.
type scriptBackend struct {
	script      string
	unavailable bool
}

func (b *scriptBackend) isAvailable() bool {
	return !b.unavailable
}

func (b *scriptBackend) buildCmd(input, output string) (*exec.Cmd, error) {
	return exec.Command("sh", "-c", b.script, "sh", input, output), nil
}

func (b *scriptBackend) setupLogOutput(cmd *exec.Cmd, buffer *bytes.Buffer) {
	cmd.Stderr = buffer
}

var (
	copyBackend = &scriptBackend{script: `cp "$1" "$2"`}
	failBackend = &scriptBackend{script: `echo "Invalid data found when processing input" >&2; exit 1`}
)

type fakeProber struct {
	info MediaInfo
	err  error
}

func (p fakeProber) Probe(ctx context.Context, path string) (MediaInfo, error) {
	return p.info, p.err
}

type fakeArchive struct {
	mu       sync.Mutex
	archived []string
	existed  bool
}

func (a *fakeArchive) Archive(ctx context.Context, userID int64, filePath string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := os.Stat(filePath)
	a.existed = err == nil
	a.archived = append(a.archived, filePath)
}

type fakeSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	closed bool
}

func (s *fakeSink) Publish(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.err
}

func (s *fakeSink) stages() []Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	stages := make([]Stage, 0, len(s.events))
	for _, event := range s.events {
		stages = append(stages, event.Stage)
	}
	return stages
}

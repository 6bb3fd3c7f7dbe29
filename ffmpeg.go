package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/goccy/go-json"
)

type FfmpegBackend struct {
	ffmpeg  string
	ffprobe string
	recipe  Recipe
}

func NewFfmpegBackend(cfg TranscodeConfig, recipe Recipe) *FfmpegBackend {
	return &FfmpegBackend{
		ffmpeg:  cfg.FFmpegPath,
		ffprobe: cfg.FFprobePath,
		recipe:  recipe,
	}
}

func (b *FfmpegBackend) setupLogOutput(cmd *exec.Cmd, buffer *bytes.Buffer) {
	cmd.Stderr = buffer
}

func (b *FfmpegBackend) isAvailable() bool {
	if _, err := exec.LookPath(b.ffmpeg); err != nil {
		return false
	}
	return true
}

func (b *FfmpegBackend) buildCmd(input, output string) (*exec.Cmd, error) {
	if input == "" || output == "" {
		return nil, errors.New("input and output paths are required")
	}
	return exec.Command(b.ffmpeg, b.recipe.Args(input, output)...), nil
}

// Args renders the recipe as an ffmpeg argument list: largest centered
// square, scaled to Size, H.264 video, AAC audio, capped at MaxSeconds.
func (r Recipe) Args(input, output string) []string {
	return []string{
		"-nostdin",
		"-i", input,
		"-vf", r.Filter(),
		"-c:v", "libx264",
		"-preset", r.Preset,
		"-crf", strconv.Itoa(r.CRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", r.AudioBitrate,
		"-t", strconv.Itoa(r.MaxSeconds),
		"-movflags", "+faststart",
		"-y", output,
	}
}

func (r Recipe) Filter() string {
	return fmt.Sprintf("crop='min(iw,ih)':'min(iw,ih)',scale=%d:%d,setsar=1", r.Size, r.Size)
}

func (b *FfmpegBackend) Probe(ctx context.Context, path string) (MediaInfo, error) {
	cmd := exec.CommandContext(ctx, b.ffprobe, "-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "format=duration:stream=width,height",
		"-of", "json", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return MediaInfo{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, stderr.String())
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &probe); err != nil {
		return MediaInfo{}, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return MediaInfo{}, errors.New("no video stream")
	}
	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("invalid duration %q: %w", probe.Format.Duration, err)
	}
	return MediaInfo{
		Duration: duration,
		Width:    probe.Streams[0].Width,
		Height:   probe.Streams[0].Height,
	}, nil
}

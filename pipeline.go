package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	processingText = "Processing your video, this takes a few seconds..."
	downloadText   = "Sorry, I could not download this video. Please try again later."
	transcodeText  = "Sorry, I could not process this video."
	deliveryText   = "Sorry, I could not send the result. Please try again later."

	// Telegram caps a message at 4096 characters.
	maxDiagnosticLength = 3500
)

func newFileID() string {
	return ulid.Make().String()
}

// sweepWorkDir removes transient files a previous process left behind. Only
// names produced by newFileID are touched.
func sweepWorkDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".mp4" {
			continue
		}
		if _, err := ulid.ParseStrict(strings.TrimSuffix(name, ".mp4")); err != nil {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Pipeline turns one uploaded video into a video note. Handle never returns
// an error: every failure becomes a user-facing reply, an optional operator
// report and an Outcome.
type Pipeline struct {
	Platform Platform
	Oracle   *MembershipOracle
	Notifier *Notifier
	Backend  Backend
	Prober   Prober
	// Archive is optional.
	Archive Archiver
	Events  *Events

	Policy            PolicyConfig
	NotifyEveryUpload bool
	WorkDir           string
	NoteSize          int
}

func (p *Pipeline) Handle(ctx context.Context, req Request) Outcome {
	if req.Media == nil {
		return OutcomeIgnored
	}
	media := *req.Media
	logger := log.With().Int64("user", req.UserID).Str("file", media.FileID).Logger()
	p.emit(ctx, req, StageReceived, string(media.Kind))

	if p.NotifyEveryUpload && p.Policy.SizeCheckOrder == SizeCheckAfterNotify {
		p.notifyUpload(ctx, req, media)
	}
	if reason := p.validate(media); reason != "" {
		return p.reject(ctx, req, &logger, reason)
	}
	if p.NotifyEveryUpload && p.Policy.SizeCheckOrder != SizeCheckAfterNotify {
		p.notifyUpload(ctx, req, media)
	}

	if !p.Oracle.IsMember(ctx, req.UserID) {
		p.reply(ctx, req.ChatID, fmt.Sprintf("Please subscribe to %s to use this bot 😊", p.Oracle.Channel()))
		p.emit(ctx, req, StageRejected, "not_member")
		return p.finish(&logger, OutcomeNotMember, StageRejected)
	}

	return p.process(ctx, req, media, &logger)
}

// validate returns the rejection text, or "" when the upload is acceptable.
func (p *Pipeline) validate(media Media) string {
	if media.durationKnown() && media.Duration > p.Policy.MaxDurationSeconds {
		return durationRejection(float64(media.Duration), p.Policy.MaxDurationSeconds)
	}
	if p.Policy.MaxSizeBytes > 0 && media.Size > p.Policy.MaxSizeBytes {
		return fmt.Sprintf("The file is too large (%s). The limit is %s.",
			formatSize(media.Size), formatSize(p.Policy.MaxSizeBytes))
	}
	return ""
}

func durationRejection(seconds float64, limit int) string {
	return fmt.Sprintf("The video is too long (%.0f s). Please send a video of at most %d seconds.", seconds, limit)
}

func (p *Pipeline) process(ctx context.Context, req Request, media Media, logger *zerolog.Logger) Outcome {
	p.emit(ctx, req, StageProcessing, "")

	statusID, err := p.Platform.SendText(ctx, req.ChatID, processingText)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to send the status message")
		statusID = 0
	}
	input := filepath.Join(p.WorkDir, newFileID()+".mp4")
	output := filepath.Join(p.WorkDir, newFileID()+".mp4")
	defer p.cleanup(ctx, req.ChatID, statusID, logger, input, output)

	start := time.Now()
	if err := p.Platform.DownloadFile(ctx, media.FileID, input); err != nil {
		p.reply(ctx, req.ChatID, downloadText)
		p.Notifier.Notify(ctx, fmt.Sprintf("Download failed\nUser: %s\nFile: %s\nError: %v", userLabel(req), media.FileID, err))
		p.emit(ctx, req, StageFailed, "download")
		logger.Error().Err(err).Msg("failed to download the video")
		return p.finish(logger, OutcomeDownloadFailed, StageFailed)
	}
	stageDuration.WithLabelValues("download").Observe(time.Since(start).Seconds())
	p.emit(ctx, req, StageDownloaded, "")

	if !media.durationKnown() {
		info, err := p.Prober.Probe(ctx, input)
		if err != nil {
			p.reply(ctx, req.ChatID, transcodeText)
			p.Notifier.Notify(ctx, fmt.Sprintf("Probe failed\nUser: %s\nFile: %s\nError: %v", userLabel(req), media.FileID, err))
			p.emit(ctx, req, StageFailed, "probe")
			logger.Error().Err(err).Msg("failed to probe the document")
			return p.finish(logger, OutcomeTranscodeFailed, StageFailed)
		}
		if info.Duration > float64(p.Policy.MaxDurationSeconds) {
			return p.reject(ctx, req, logger, durationRejection(info.Duration, p.Policy.MaxDurationSeconds))
		}
	}

	start = time.Now()
	if err := runBackend(p.Backend, input, output); err != nil {
		p.reply(ctx, req.ChatID, transcodeText)
		p.Notifier.Notify(ctx, fmt.Sprintf("Transcode failed\nUser: %s\nFile: %s\nError: %v\n%s", userLabel(req), media.FileID, err, diagnostics(err)))
		p.emit(ctx, req, StageFailed, "transcode")
		logger.Error().Err(err).Msg("failed to transcode the video")
		return p.finish(logger, OutcomeTranscodeFailed, StageFailed)
	}
	stageDuration.WithLabelValues("transcode").Observe(time.Since(start).Seconds())
	p.emit(ctx, req, StageTranscoded, "")

	start = time.Now()
	if err := p.Platform.SendVideoNote(ctx, req.ChatID, output, p.NoteSize); err != nil {
		p.reply(ctx, req.ChatID, deliveryText)
		p.Notifier.Notify(ctx, fmt.Sprintf("Delivery failed\nUser: %s\nFile: %s\nError: %v", userLabel(req), media.FileID, err))
		p.emit(ctx, req, StageFailed, "upload")
		logger.Error().Err(err).Msg("failed to send the video note")
		return p.finish(logger, OutcomeDeliveryFailed, StageFailed)
	}
	stageDuration.WithLabelValues("upload").Observe(time.Since(start).Seconds())

	if p.Archive != nil {
		p.Archive.Archive(ctx, req.UserID, output)
	}
	p.emit(ctx, req, StageDelivered, "")
	return p.finish(logger, OutcomeDelivered, StageDelivered)
}

// cleanup runs exactly once for every request that reached processing.
// Nothing here may fail the request.
func (p *Pipeline) cleanup(ctx context.Context, chatID int64, statusID int, logger *zerolog.Logger, paths ...string) {
	if statusID != 0 {
		if err := p.Platform.DeleteMessage(ctx, chatID, statusID); err != nil {
			logger.Debug().Err(err).Int("message", statusID).Msg("failed to delete the status message")
		}
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str("path", path).Msg("failed to remove the transient file")
		}
	}
}

func (p *Pipeline) reject(ctx context.Context, req Request, logger *zerolog.Logger, reason string) Outcome {
	p.reply(ctx, req.ChatID, reason)
	p.emit(ctx, req, StageRejected, reason)
	return p.finish(logger, OutcomeRejected, StageRejected)
}

func (p *Pipeline) reply(ctx context.Context, chatID int64, text string) {
	if _, err := p.Platform.SendText(ctx, chatID, text); err != nil {
		log.Warn().Err(err).Int64("chat", chatID).Msg("failed to reply")
	}
}

func (p *Pipeline) notifyUpload(ctx context.Context, req Request, media Media) {
	duration := "unknown"
	if media.durationKnown() {
		duration = fmt.Sprintf("%d s", media.Duration)
	}
	size := "unknown"
	if media.Size > 0 {
		size = formatSize(media.Size)
	}
	p.Notifier.Notify(ctx, fmt.Sprintf("New %s from %s\nFile: %s\nDuration: %s\nSize: %s",
		media.Kind, userLabel(req), media.FileID, duration, size))
}

func (p *Pipeline) emit(ctx context.Context, req Request, stage Stage, detail string) {
	event := Event{Stage: stage, UserID: req.UserID, ChatID: req.ChatID, Detail: detail}
	if req.Media != nil {
		event.FileID = req.Media.FileID
	}
	p.Events.Emit(ctx, event)
}

func (p *Pipeline) finish(logger *zerolog.Logger, outcome Outcome, stage Stage) Outcome {
	requestsTotal.WithLabelValues(outcome.String()).Inc()
	logger.Info().Str("outcome", outcome.String()).Str("stage", string(stage)).Msg("request finished")
	return outcome
}

func userLabel(req Request) string {
	if req.Username == "" {
		return fmt.Sprint(req.UserID)
	}
	return fmt.Sprintf("%d (@%s)", req.UserID, req.Username)
}

func formatSize(bytes int64) string {
	return fmt.Sprintf("%.1f MB", float64(bytes)/(1<<20))
}

// diagnostics keeps the tail of the tool output, where ffmpeg reports the
// actual failure.
func diagnostics(err error) string {
	var transcodeErr *TranscodeError
	if !errors.As(err, &transcodeErr) {
		return ""
	}
	output := strings.TrimSpace(transcodeErr.Output)
	if len(output) > maxDiagnosticLength {
		output = "..." + output[len(output)-maxDiagnosticLength:]
	}
	return strings.ToValidUTF8(output, "")
}

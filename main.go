package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	started := time.Now()
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load the configuration")
	}
	setupLogging(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegram, err := NewTelegram(cfg.Bot.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Telegram")
	}
	log.Info().Str("bot", telegram.Username()).Msg("authorized")

	log.Info().Msg("using ffmpeg backend")
	backend := NewFfmpegBackend(cfg.Transcode, cfg.Recipe())
	if !backend.isAvailable() {
		log.Warn().Str("path", cfg.Transcode.FFmpegPath).Msg("ffmpeg backend is not available, every video will fail")
	}
	if err := os.MkdirAll(cfg.Transcode.WorkDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("path", cfg.Transcode.WorkDir).Msg("failed to create the work directory")
	}
	if removed, err := sweepWorkDir(cfg.Transcode.WorkDir); err != nil {
		log.Warn().Err(err).Str("path", cfg.Transcode.WorkDir).Msg("failed to sweep the work directory")
	} else if removed > 0 {
		log.Info().Int("files", removed).Str("path", cfg.Transcode.WorkDir).Msg("removed leftover transient files")
	}

	events := NewEvents(eventSinks(cfg.Events)...)
	defer events.Close()

	notifier := NewNotifier(telegram, cfg.Notify.OperatorID)
	registry := NewRegistry(cfg.Registry.Path)
	registeredUsers.Set(float64(len(registry.Load())))

	pipeline := &Pipeline{
		Platform:          telegram,
		Oracle:            NewMembershipOracle(telegram, cfg.Policy.RequiredChannel),
		Notifier:          notifier,
		Backend:           backend,
		Prober:            backend,
		Events:            events,
		Policy:            cfg.Policy,
		NotifyEveryUpload: cfg.Notify.EveryUpload,
		WorkDir:           cfg.Transcode.WorkDir,
		NoteSize:          cfg.Transcode.Size,
	}
	if cfg.Archive.Bucket != "" {
		archive, err := NewS3Archive(ctx, cfg.Archive)
		if err != nil {
			log.Warn().Err(err).Msg("archiving disabled")
		} else {
			pipeline.Archive = archive
		}
	}
	dispatcher := NewDispatcher(telegram, registry, notifier, pipeline)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           newLivenessRouter(cfg.HTTP.StaticDir, started),
		ReadHeaderTimeout: 10 * time.Second,
	}

	supervisor := newSupervisor(shutdownTimeout)
	supervisor.Add(&httpService{server: server, shutdownTimeout: shutdownTimeout})
	supervisor.Add(&pollerService{source: telegram, dispatcher: dispatcher, timeout: cfg.Bot.PollTimeout})

	log.Info().Int("port", cfg.HTTP.Port).Str("channel", cfg.Policy.RequiredChannel).Msg("starting")
	if err := serveAndDrain(ctx, supervisor, dispatcher); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("supervisor stopped")
	}
	log.Info().Msg("stopped")
}

// eventSinks connects the configured event sinks. A sink that cannot be
// reached is skipped.
func eventSinks(cfg EventsConfig) []EventSink {
	var sinks []EventSink
	if redis := NewRedis(cfg.RedisDSN, cfg.RedisChannel); redis != nil {
		sinks = append(sinks, redis)
	}
	if cfg.AMQPURL != "" {
		amqp, err := NewAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ events disabled")
		} else {
			sinks = append(sinks, amqp)
		}
	}
	return sinks
}

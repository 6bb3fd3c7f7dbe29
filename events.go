package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

type EventSink interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Events fans stage events out to every configured sink. A nil *Events is
// valid and drops everything.
type Events struct {
	sinks []EventSink
}

func NewEvents(sinks ...EventSink) *Events {
	return &Events{sinks: sinks}
}

// Emit is best-effort: a failing sink is logged and skipped.
func (e *Events) Emit(ctx context.Context, event Event) {
	if e == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	for _, sink := range e.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Str("sink", fmt.Sprint(sink)).Str("stage", string(event.Stage)).Int64("user", event.UserID).Msg("failed to publish the event")
		}
	}
}

func (e *Events) Close() {
	if e == nil {
		return
	}
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil {
			log.Warn().Err(err).Str("sink", fmt.Sprint(sink)).Msg("failed to close the event sink")
		}
	}
}

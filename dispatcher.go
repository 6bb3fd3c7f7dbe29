package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

const startText = "Hi! Send me a video of up to %d seconds and I will turn it into a round video note.\n" +
	"You need to be subscribed to %s."

// Dispatcher routes each request to its handler in its own goroutine.
type Dispatcher struct {
	platform Platform
	registry *Registry
	notifier *Notifier
	pipeline *Pipeline

	wg sync.WaitGroup
}

func NewDispatcher(platform Platform, registry *Registry, notifier *Notifier, pipeline *Pipeline) *Dispatcher {
	return &Dispatcher{
		platform: platform,
		registry: registry,
		notifier: notifier,
		pipeline: pipeline,
	}
}

// Go handles req asynchronously. The handler outlives ctx cancellation so a
// request in flight during shutdown still runs its cleanup.
func (d *Dispatcher) Go(ctx context.Context, req Request) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Int64("user", req.UserID).Msg("request handler panicked")
			}
		}()
		d.Handle(ctx, req)
	}()
}

// Wait blocks until every handler started by Go has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) Handle(ctx context.Context, req Request) {
	switch {
	case req.Command == "start":
		d.start(ctx, req)
	case req.Media != nil:
		d.pipeline.Handle(ctx, req)
	}
}

func (d *Dispatcher) start(ctx context.Context, req Request) {
	added, total := d.registry.Register(req.UserID)
	if added {
		log.Info().Int64("user", req.UserID).Int("total", total).Msg("registered a new user")
		d.notifier.Notify(ctx, fmt.Sprintf("New user: %s\nTotal users: %d", userLabel(req), total))
	}
	text := fmt.Sprintf(startText, d.pipeline.Policy.MaxDurationSeconds, d.pipeline.Policy.RequiredChannel)
	if _, err := d.platform.SendText(ctx, req.ChatID, text); err != nil {
		log.Warn().Err(err).Int64("user", req.UserID).Msg("failed to send the greeting")
	}
}

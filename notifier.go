package main

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Notifier sends reports to the operator. It is fire-and-forget: a failed
// send is logged and dropped.
type Notifier struct {
	platform   Platform
	operatorID int64
}

// NewNotifier returns a notifier that drops everything when operatorID is 0.
func NewNotifier(platform Platform, operatorID int64) *Notifier {
	return &Notifier{platform: platform, operatorID: operatorID}
}

func (n *Notifier) Notify(ctx context.Context, text string) {
	if n == nil || n.operatorID == 0 {
		return
	}
	if _, err := n.platform.SendText(ctx, n.operatorID, text); err != nil {
		log.Warn().Err(err).Int64("operator", n.operatorID).Msg("failed to notify the operator")
	}
}

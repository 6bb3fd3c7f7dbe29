package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

// membershipRetryAfter is how long an open breaker answers "no" before the
// platform is asked again.
var membershipRetryAfter = 5 * time.Second

// MembershipOracle answers whether a user belongs to the required channel.
// Every failure collapses to "not a member"; there is no retry.
type MembershipOracle struct {
	platform Platform
	channel  string
	cb       *gobreaker.CircuitBreaker[string]
}

func NewMembershipOracle(platform Platform, channel string) *MembershipOracle {
	name := "membership"
	circuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     membershipRetryAfter,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			circuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
		// A user the platform does not know is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMemberUnknown)
		},
	})

	return &MembershipOracle{platform: platform, channel: channel, cb: cb}
}

func (o *MembershipOracle) Channel() string {
	return o.channel
}

func (o *MembershipOracle) IsMember(ctx context.Context, userID int64) bool {
	status, err := o.cb.Execute(func() (string, error) {
		return o.platform.MemberStatus(ctx, o.channel, userID)
	})
	if err != nil {
		result := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
		membershipLookups.WithLabelValues(result).Inc()
		log.Debug().Err(err).Int64("user", userID).Str("channel", o.channel).Msg("membership lookup failed")
		return false
	}

	switch status {
	case "member", "administrator", "creator":
		membershipLookups.WithLabelValues("member").Inc()
		return true
	default:
		membershipLookups.WithLabelValues("not_member").Inc()
		return false
	}
}

package realtime

import (
	"context"
	"errors"

	"travel-together-api/internal/models"
	"travel-together-api/internal/store"

	"github.com/rs/zerolog"
)

// TripMembership is the external capability answering trip membership questions.
type TripMembership interface {
	Lookup(ctx context.Context, tripID, userID string) (store.Membership, error)
}

// Outcome classifies an authorization decision.
type Outcome string

const (
	OutcomeAllowed      Outcome = "allowed"
	OutcomeTripNotFound Outcome = "trip_not_found"
	OutcomeNotMember    Outcome = "not_member"
	OutcomeUnavailable  Outcome = "unavailable"
)

// Authorization is the result of a trip join check.
type Authorization struct {
	Allowed bool
	Role    models.TripRole
	Outcome Outcome
}

// Reason is the message shown to a user whose join was refused.
func (a Authorization) Reason() string {
	switch a.Outcome {
	case OutcomeAllowed:
		return ""
	case OutcomeTripNotFound:
		return "Trip not found"
	case OutcomeNotMember:
		return "Not a collaborator on this trip"
	default:
		return "Unable to verify trip membership, try again later"
	}
}

// Authorizer decides whether a user may join a trip room.
type Authorizer interface {
	AuthorizeTripJoin(ctx context.Context, tripID, userID string) Authorization
}

// Gate authorizes trip room joins against the trip membership capability. It fails closed:
// a missing trip or a failing lookup both deny the join.
type Gate struct {
	trips  TripMembership
	logger zerolog.Logger
}

func NewGate(trips TripMembership, logger *zerolog.Logger) *Gate {
	return &Gate{
		trips:  trips,
		logger: logger.With().Str("component", "gate").Logger(),
	}
}

func (g *Gate) AuthorizeTripJoin(ctx context.Context, tripID, userID string) Authorization {
	m, err := g.trips.Lookup(ctx, tripID, userID)
	switch {
	case errors.Is(err, store.ErrTripNotFound):
		return Authorization{Outcome: OutcomeTripNotFound}
	case err != nil && ctx.Err() != nil:
		// abandoned or timed out
		g.logger.Debug().Err(err).Str("tripID", tripID).Msg("trip membership lookup cancelled")
		return Authorization{Outcome: OutcomeUnavailable}
	case err != nil:
		g.logger.Error().Err(err).
			Str("tripID", tripID).
			Str("userID", userID).
			Msg("trip membership lookup failed")
		return Authorization{Outcome: OutcomeUnavailable}
	case !m.Member:
		return Authorization{Outcome: OutcomeNotMember}
	}
	return Authorization{Allowed: true, Role: m.Role, Outcome: OutcomeAllowed}
}

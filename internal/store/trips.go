package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"travel-together-api/internal/cache"
	"travel-together-api/internal/models"

	"gorm.io/gorm"
)

var ErrTripNotFound = errors.New("trip not found")

// Membership is the answer to "is this user part of this trip".
type Membership struct {
	Member bool
	Role   models.TripRole
}

// tripAccess is the cached projection of a trip needed to answer membership questions.
type tripAccess struct {
	creatorID string
	roles     map[string]models.TripRole // accepted collaborators only
}

func (a tripAccess) membership(userID string) Membership {
	if userID == a.creatorID {
		return Membership{Member: true, Role: models.RoleOwner}
	}
	if role, ok := a.roles[userID]; ok {
		return Membership{Member: true, Role: role}
	}
	return Membership{}
}

// Trips answers trip membership lookups from the trips and trip_collaborators tables.
type Trips struct {
	db    *gorm.DB
	cache cache.Cache[string, tripAccess]
}

// NewTrips returns a Trips store. Positive lookups are cached for cacheTTL; zero disables caching.
func NewTrips(db *gorm.DB, cacheTTL time.Duration) *Trips {
	return &Trips{
		db:    db,
		cache: cache.NewExpiring[string, tripAccess](cacheTTL),
	}
}

// Lookup reports whether userID is the creator or an accepted collaborator of tripID.
// It returns ErrTripNotFound when the trip does not exist.
func (t *Trips) Lookup(ctx context.Context, tripID, userID string) (Membership, error) {
	if access, ok := t.cache.Get(tripID); ok {
		if m := access.membership(userID); m.Member {
			return m, nil
		}
		// a cached snapshot may predate an accepted invite
		t.cache.Delete(tripID)
	}

	access, err := t.load(ctx, tripID)
	if err != nil {
		return Membership{}, err
	}
	t.cache.Set(tripID, access)
	return access.membership(userID), nil
}

func (t *Trips) load(ctx context.Context, tripID string) (tripAccess, error) {
	var trip models.Trip
	err := t.db.WithContext(ctx).
		Preload("Collaborators", "status = ?", models.InviteAccepted).
		Where("id = ?", tripID).
		First(&trip).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tripAccess{}, ErrTripNotFound
		}
		return tripAccess{}, fmt.Errorf("load trip %s: %w", tripID, err)
	}

	access := tripAccess{
		creatorID: trip.CreatorID,
		roles:     make(map[string]models.TripRole, len(trip.Collaborators)),
	}
	for _, c := range trip.Collaborators {
		access.roles[c.UserID] = c.Role
	}
	return access, nil
}

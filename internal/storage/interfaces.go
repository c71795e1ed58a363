// Package storage provides composable storage interfaces for the matching
// engine.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. The engine depends only
// on these interfaces; concrete backends live in subpackages.
package storage

import (
	"context"
	"time"

	"github.com/duara-social/matchengine/pkg/types"
)

// ProfileStore provides read access to member profiles and preferences.
// The engine never writes through this interface.
type ProfileStore interface {
	// GetProfile retrieves a profile by ID.
	// Returns ErrNotFound if the profile doesn't exist.
	GetProfile(ctx context.Context, id string) (*types.Profile, error)

	// GetPreferences retrieves the preference set for a member.
	// Returns (nil, nil) when the member has not stated preferences yet;
	// absence is a neutral condition, not an error.
	GetPreferences(ctx context.Context, userID string) (*types.PreferenceSet, error)

	// BatchGetPreferences retrieves preference sets for many members in one
	// round trip, keyed by user ID. Members without stored preferences are
	// simply absent from the map.
	BatchGetPreferences(ctx context.Context, userIDs []string) (map[string]*types.PreferenceSet, error)

	// GetCandidatePool returns the raw candidate profiles for a member,
	// excluding the member themselves and anyone they have already rated.
	GetCandidatePool(ctx context.Context, userID string) ([]*types.Profile, error)

	// Close releases any resources held by the store.
	Close() error
}

// InteractionSource provides the swipe/match history used to train the
// collaborative model and to derive reciprocity signals.
type InteractionSource interface {
	// GetInteractionLog returns the full interaction log, oldest first.
	// An empty log is valid and leaves the collaborative model untrained.
	GetInteractionLog(ctx context.Context) ([]types.InteractionRecord, error)

	// GetReciprocityStats returns response-rate and response-latency stats
	// for a member. Returns (nil, nil) when the member has no inbound
	// history yet.
	GetReciprocityStats(ctx context.Context, userID string) (*types.ReciprocityStats, error)
}

// FactorStore persists trained latent factor vectors so a process restart
// does not force a cold retrain. Implementations may be absent entirely; the
// engine treats a nil FactorStore as "always retrain in memory".
type FactorStore interface {
	// StoreFactors upserts the latent factor vector and bias for one entity.
	// Kind is "user" or "item".
	StoreFactors(ctx context.Context, kind, entityID string, factors []float32, bias float64) error

	// LoadFactors returns all persisted factors of the given kind, keyed by
	// entity ID. Returns an empty map (not an error) when nothing is stored.
	LoadFactors(ctx context.Context, kind string) (map[string]StoredFactors, error)

	// StoreModelMeta upserts model-level metadata: the global rating bias
	// and the training timestamp.
	StoreModelMeta(ctx context.Context, globalBias float64, trainedAt time.Time) error

	// LoadModelMeta returns the persisted model metadata. ok is false when
	// no model has been persisted yet.
	LoadModelMeta(ctx context.Context) (globalBias float64, trainedAt time.Time, ok bool, err error)

	// Close releases the underlying connection.
	Close() error
}

// StoredFactors is one persisted latent embedding row.
type StoredFactors struct {
	Factors []float32
	Bias    float64
}

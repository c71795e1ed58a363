package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/duara-social/matchengine/internal/storage"
	"github.com/duara-social/matchengine/pkg/types"
)

// fakeStore is an in-memory ProfileStore and InteractionSource for tests.
type fakeStore struct {
	profiles     map[string]*types.Profile
	preferences  map[string]*types.PreferenceSet
	interactions []types.InteractionRecord
	reciprocity  map[string]*types.ReciprocityStats

	poolErr        error
	reciprocityErr error
	prefsErr       error

	logCalls atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles:    make(map[string]*types.Profile),
		preferences: make(map[string]*types.PreferenceSet),
		reciprocity: make(map[string]*types.ReciprocityStats),
	}
}

func (f *fakeStore) addProfile(p *types.Profile) {
	f.profiles[p.ID] = p
}

func (f *fakeStore) GetProfile(ctx context.Context, id string) (*types.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (f *fakeStore) GetPreferences(ctx context.Context, userID string) (*types.PreferenceSet, error) {
	if f.prefsErr != nil {
		return nil, f.prefsErr
	}
	return f.preferences[userID], nil
}

func (f *fakeStore) BatchGetPreferences(ctx context.Context, userIDs []string) (map[string]*types.PreferenceSet, error) {
	if f.prefsErr != nil {
		return nil, f.prefsErr
	}
	out := make(map[string]*types.PreferenceSet, len(userIDs))
	for _, id := range userIDs {
		if p, ok := f.preferences[id]; ok && p != nil {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeStore) GetCandidatePool(ctx context.Context, userID string) ([]*types.Profile, error) {
	if f.poolErr != nil {
		return nil, f.poolErr
	}
	var pool []*types.Profile
	for _, p := range f.profiles {
		if p.ID != userID {
			pool = append(pool, p)
		}
	}
	return pool, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) GetInteractionLog(ctx context.Context) ([]types.InteractionRecord, error) {
	f.logCalls.Add(1)
	return f.interactions, nil
}

func (f *fakeStore) GetReciprocityStats(ctx context.Context, userID string) (*types.ReciprocityStats, error) {
	if f.reciprocityErr != nil {
		return nil, f.reciprocityErr
	}
	return f.reciprocity[userID], nil
}

// testProfile builds a complete adult profile with sensible defaults.
func testProfile(id string, now time.Time) *types.Profile {
	return &types.Profile{
		ID:               id,
		CreatedAt:        now.AddDate(-1, 0, 0),
		DateOfBirth:      now.AddDate(-30, 0, 0),
		HeightCM:         170,
		Location:         "nairobi",
		CountryOfOrigin:  "kenya",
		Religion:         "christian",
		Ethnicity:        "kikuyu",
		BodyType:         "average",
		EducationLevel:   "bachelors",
		HasChildren:      "no",
		WantsChildren:    "yes",
		RelationshipGoal: "long term relationship",
		Profession:       "software engineer",
		Bio:              "love hiking and cooking on weekends",
		Interests:        []string{"hiking", "cooking", "travel"},
		LastActiveAt:     now.Add(-2 * time.Hour),
		Online:           true,
	}
}

// fakeFactorStore is an in-memory FactorStore for tests.
type fakeFactorStore struct {
	factors    map[string]map[string]storage.StoredFactors
	globalBias float64
	trainedAt  time.Time
	hasMeta    bool

	loadErr error
}

func newFakeFactorStore() *fakeFactorStore {
	return &fakeFactorStore{factors: map[string]map[string]storage.StoredFactors{}}
}

func (f *fakeFactorStore) StoreFactors(ctx context.Context, kind, entityID string, factors []float32, bias float64) error {
	if f.factors[kind] == nil {
		f.factors[kind] = map[string]storage.StoredFactors{}
	}
	f.factors[kind][entityID] = storage.StoredFactors{Factors: factors, Bias: bias}
	return nil
}

func (f *fakeFactorStore) LoadFactors(ctx context.Context, kind string) (map[string]storage.StoredFactors, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make(map[string]storage.StoredFactors, len(f.factors[kind]))
	for id, sf := range f.factors[kind] {
		out[id] = sf
	}
	return out, nil
}

func (f *fakeFactorStore) StoreModelMeta(ctx context.Context, globalBias float64, trainedAt time.Time) error {
	f.globalBias = globalBias
	f.trainedAt = trainedAt
	f.hasMeta = true
	return nil
}

func (f *fakeFactorStore) LoadModelMeta(ctx context.Context) (float64, time.Time, bool, error) {
	if f.loadErr != nil {
		return 0, time.Time{}, false, f.loadErr
	}
	return f.globalBias, f.trainedAt, f.hasMeta, nil
}

func (f *fakeFactorStore) Close() error { return nil }

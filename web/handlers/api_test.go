package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duara-social/matchengine/internal/config"
	"github.com/duara-social/matchengine/internal/engine"
	"github.com/duara-social/matchengine/internal/storage"
	"github.com/duara-social/matchengine/pkg/types"
	"github.com/duara-social/matchengine/web/handlers"
)

// stubStore is an in-memory ProfileStore and InteractionSource.
type stubStore struct {
	profiles     map[string]*types.Profile
	interactions []types.InteractionRecord
}

func (s *stubStore) GetProfile(ctx context.Context, id string) (*types.Profile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *stubStore) GetPreferences(ctx context.Context, userID string) (*types.PreferenceSet, error) {
	return nil, nil
}

func (s *stubStore) BatchGetPreferences(ctx context.Context, userIDs []string) (map[string]*types.PreferenceSet, error) {
	return map[string]*types.PreferenceSet{}, nil
}

func (s *stubStore) GetCandidatePool(ctx context.Context, userID string) ([]*types.Profile, error) {
	var pool []*types.Profile
	for _, p := range s.profiles {
		if p.ID != userID {
			pool = append(pool, p)
		}
	}
	return pool, nil
}

func (s *stubStore) Close() error { return nil }

func (s *stubStore) GetInteractionLog(ctx context.Context) ([]types.InteractionRecord, error) {
	return s.interactions, nil
}

func (s *stubStore) GetReciprocityStats(ctx context.Context, userID string) (*types.ReciprocityStats, error) {
	return nil, nil
}

func stubProfile(id string, now time.Time) *types.Profile {
	return &types.Profile{
		ID:           id,
		CreatedAt:    now.AddDate(-1, 0, 0),
		DateOfBirth:  now.AddDate(-30, 0, 0),
		Location:     "nairobi",
		Religion:     "christian",
		Bio:          "hiking and cooking",
		Interests:    []string{"hiking", "cooking"},
		LastActiveAt: now.Add(-time.Hour),
		Online:       true,
	}
}

func newTestAPI(t *testing.T, store *stubStore) *handlers.APIHandlers {
	t.Helper()

	model := engine.NewModelHandle(engine.DefaultLatentFactorConfig(), store, nil, rand.New(rand.NewSource(1)))
	ranker := engine.NewHybridRanker(engine.NewContentScorer(nil), model, engine.NewContextScorer(store))
	orch, err := engine.NewOrchestrator(store, nil, ranker, engine.NewDiversityInjector(nil, 0.15), engine.OrchestratorConfig{})
	require.NoError(t, err)

	return handlers.NewAPIHandlers(orch, model, &config.Config{})
}

func seedStubStore(now time.Time) *stubStore {
	store := &stubStore{profiles: map[string]*types.Profile{}}
	for _, id := range []string{"viewer", "c1", "c2", "c3"} {
		store.profiles[id] = stubProfile(id, now)
	}
	return store
}

func TestGetMatches_Success(t *testing.T) {
	now := time.Now()
	api := newTestAPI(t, seedStubStore(now))

	req := httptest.NewRequest("GET", "/api/matches?user_id=viewer", nil)
	w := httptest.NewRecorder()

	api.GetMatches(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.MatchesResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "viewer", resp.UserID)
	assert.Equal(t, "meet", resp.Mode)
	assert.False(t, resp.Fallback)
	assert.Len(t, resp.Matches, 3)
	assert.NotEmpty(t, resp.RequestID)

	for _, m := range resp.Matches {
		assert.GreaterOrEqual(t, m.FinalScore, 0.0)
		assert.LessOrEqual(t, m.FinalScore, 1.0)
		assert.NotEmpty(t, m.Reasons)
	}
}

func TestGetMatches_MissingUserID(t *testing.T) {
	api := newTestAPI(t, seedStubStore(time.Now()))

	req := httptest.NewRequest("GET", "/api/matches", nil)
	w := httptest.NewRecorder()

	api.GetMatches(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "user_id is required")
}

func TestGetMatches_UnknownMode(t *testing.T) {
	api := newTestAPI(t, seedStubStore(time.Now()))

	req := httptest.NewRequest("GET", "/api/matches?user_id=viewer&mode=speed-dating", nil)
	w := httptest.NewRecorder()

	api.GetMatches(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown mode")
}

func TestGetMatches_UnknownUser(t *testing.T) {
	api := newTestAPI(t, seedStubStore(time.Now()))

	req := httptest.NewRequest("GET", "/api/matches?user_id=ghost", nil)
	w := httptest.NewRecorder()

	api.GetMatches(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "user not found")
}

func TestGetMatches_RespectsLimit(t *testing.T) {
	now := time.Now()
	api := newTestAPI(t, seedStubStore(now))

	req := httptest.NewRequest("GET", "/api/matches?user_id=viewer&limit=2", nil)
	w := httptest.NewRecorder()

	api.GetMatches(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.MatchesResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Matches, 2)
}

func TestGetModelStats(t *testing.T) {
	now := time.Now()
	store := seedStubStore(now)
	api := newTestAPI(t, store)

	req := httptest.NewRequest("GET", "/api/model/stats", nil)
	w := httptest.NewRecorder()

	api.GetModelStats(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.ModelStatsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "untrained", resp.State)
}

func TestPostModelRetrain(t *testing.T) {
	now := time.Now()
	store := seedStubStore(now)
	store.interactions = []types.InteractionRecord{
		{ActorID: "viewer", TargetID: "c1", Rating: types.RatingLike, Timestamp: now},
		{ActorID: "viewer", TargetID: "c2", Rating: types.RatingDislike, Timestamp: now},
		{ActorID: "c1", TargetID: "viewer", Rating: types.RatingLike, Timestamp: now},
	}
	api := newTestAPI(t, store)

	req := httptest.NewRequest("POST", "/api/model/retrain", nil)
	w := httptest.NewRecorder()

	api.PostModelRetrain(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.ModelStatsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "trained", resp.State)
	assert.Positive(t, resp.Iterations)
}

func TestPostModelRetrain_EmptyLog(t *testing.T) {
	api := newTestAPI(t, seedStubStore(time.Now()))

	req := httptest.NewRequest("POST", "/api/model/retrain", nil)
	w := httptest.NewRecorder()

	api.PostModelRetrain(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

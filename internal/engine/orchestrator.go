// Package engine implements the hybrid matching engine: feature
// vectorization, content similarity, collaborative filtering, context
// scoring, diversity injection, and the orchestrator that ties the pipeline
// together.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/duara-social/matchengine/internal/storage"
	"github.com/duara-social/matchengine/pkg/types"
)

// Orchestrator defaults.
const (
	DefaultRankLimit      = 50
	defaultPipelineBudget = 3 * time.Second
	defaultScoreWorkers   = 8
)

// RankOptions configures one ranking request.
type RankOptions struct {
	// Mode selects the context-scoring profile ("meet" or "professional").
	// Empty defaults to "meet". Mode never changes the algorithm shape.
	Mode string

	// Limit bounds the output length (default: 50).
	Limit int
}

// OrchestratorConfig holds tunables for the matching pipeline.
type OrchestratorConfig struct {
	// PipelineBudget is the soft wall-clock budget for a whole ranking
	// request; on timeout the pipeline falls back to the hard-filtered
	// unranked pool (default: 3s).
	PipelineBudget time.Duration

	// ScoreWorkers is the size of the scoring worker pool (default: 8).
	ScoreWorkers int

	// DiversityFraction is the share of the ranked list re-injected as
	// diversity picks (default: 0.15).
	DiversityFraction float64
}

// Orchestrator coordinates the matching pipeline:
//
//	FetchCandidates -> HardFilter -> BatchScore -> Rank+Diversify -> Truncate -> Return
//
// Any stage after FetchCandidates failing degrades to FallbackReturn: the
// hard-filtered candidate pool in storage order, never an empty error
// response. Only FetchCandidates failing (persistence unreachable) yields an
// empty result.
type Orchestrator struct {
	store      storage.ProfileStore
	hardFilter HardFilterStage
	ranker     *HybridRanker
	injector   *DiversityInjector

	// breaker guards candidate-pool retrieval so a struggling store fails
	// fast instead of stacking up slow requests.
	breaker *gobreaker.CircuitBreaker

	budget  time.Duration
	workers int
}

// NewOrchestrator wires the pipeline. All collaborators are required except
// hardFilter, which defaults to the standard implementation with no block
// list.
func NewOrchestrator(store storage.ProfileStore, hardFilter HardFilterStage, ranker *HybridRanker, injector *DiversityInjector, cfg OrchestratorConfig) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	if ranker == nil {
		return nil, fmt.Errorf("ranker is required")
	}
	if injector == nil {
		return nil, fmt.Errorf("diversity injector is required")
	}
	if hardFilter == nil {
		hardFilter = NewStandardHardFilter(nil)
	}
	if cfg.PipelineBudget <= 0 {
		cfg.PipelineBudget = defaultPipelineBudget
	}
	if cfg.ScoreWorkers <= 0 {
		cfg.ScoreWorkers = defaultScoreWorkers
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "candidate-pool",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &Orchestrator{
		store:      store,
		hardFilter: hardFilter,
		ranker:     ranker,
		injector:   injector,
		breaker:    breaker,
		budget:     cfg.PipelineBudget,
		workers:    cfg.ScoreWorkers,
	}, nil
}

// Rank produces the scored, diversified, ordered candidate list for a user.
// It is the sole entry point consumed by the web layer.
func (o *Orchestrator) Rank(ctx context.Context, userID string, opts RankOptions) (*types.RankedResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultRankLimit
	}
	if opts.Mode == "" {
		opts.Mode = ModeMeet
	}

	ctx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()
	now := time.Now()

	// --- FetchCandidates -------------------------------------------------
	user, err := o.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, newScoringError(KindDataUnavailable, "orchestrator.fetch_user", err)
	}
	userPrefs, err := o.store.GetPreferences(ctx, userID)
	if err != nil {
		// Missing preferences degrade to neutral scoring; only a transport
		// failure is fatal here, and the store reports that as an error.
		return nil, newScoringError(KindDataUnavailable, "orchestrator.fetch_prefs", err)
	}

	pool, err := o.fetchCandidatePool(ctx, userID)
	if err != nil {
		return nil, newScoringError(KindDataUnavailable, "orchestrator.fetch_candidates", err)
	}
	if len(pool) == 0 {
		return &types.RankedResult{UserID: userID, Candidates: []types.RankedCandidate{}}, nil
	}

	// --- HardFilter ------------------------------------------------------
	filtered, err := o.hardFilter.Apply(ctx, pool, user, userPrefs)
	if err != nil {
		// The hard filter is a legal boundary: never serve an unfiltered
		// pool. This is the one post-fetch failure that surfaces.
		return nil, fmt.Errorf("hard filter failed: %w", err)
	}
	if len(filtered) == 0 {
		return &types.RankedResult{UserID: userID, Candidates: []types.RankedCandidate{}}, nil
	}

	// --- BatchScore ------------------------------------------------------
	candPrefs, err := o.store.BatchGetPreferences(ctx, profileIDs(filtered))
	if err != nil {
		log.Printf("WARNING: batch preference load failed for %s, scoring with neutral preferences: %v", userID, err)
		candPrefs = map[string]*types.PreferenceSet{}
	}

	scored, err := o.scoreCandidates(ctx, user, filtered, userPrefs, candPrefs, opts.Mode, now)
	if err != nil {
		log.Printf("WARNING: scoring aborted for %s (%v), falling back to unranked pool", userID, err)
		return o.fallbackResult(userID, filtered, opts.Limit), nil
	}

	// --- Rank + Diversify ------------------------------------------------
	SortByScore(scored)
	ranked := scored
	if len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}
	// The injector sees the ranked page against the full pre-limit pool, so
	// exploratory picks come from below the cut line.
	diversified := o.injector.Inject(ranked, filtered, user, userPrefs, now)

	// --- Truncate + Return ----------------------------------------------
	if len(diversified) > opts.Limit {
		diversified = diversified[:opts.Limit]
	}
	return &types.RankedResult{UserID: userID, Candidates: diversified}, nil
}

// fetchCandidatePool retrieves the raw pool through the circuit breaker.
func (o *Orchestrator) fetchCandidatePool(ctx context.Context, userID string) ([]*types.Profile, error) {
	result, err := o.breaker.Execute(func() (interface{}, error) {
		return o.store.GetCandidatePool(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*types.Profile), nil
}

// scoreCandidates fans candidate scoring out over a worker pool and collects
// the results by index, so output order is independent of scheduling. A
// single candidate's failure (panic included) assigns that candidate the
// floor score instead of dropping it; only budget exhaustion aborts the
// batch.
func (o *Orchestrator) scoreCandidates(ctx context.Context, user *types.Profile, candidates []*types.Profile, userPrefs *types.PreferenceSet, candPrefs map[string]*types.PreferenceSet, mode string, now time.Time) ([]types.RankedCandidate, error) {
	scored := make([]types.RankedCandidate, len(candidates))
	indexes := make(chan int)

	var wg sync.WaitGroup
	workers := o.workers
	if workers > len(candidates) {
		workers = len(candidates)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				cand := candidates[i]
				scored[i] = types.RankedCandidate{
					Profile: cand,
					Score:   o.scoreOne(ctx, user, cand, userPrefs, candPrefs[cand.ID], mode, now),
				}
			}
		}()
	}

feed:
	for i := range candidates {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scored, nil
}

// scoreOne scores a single candidate, converting a panic into the floor
// score so one bad profile never takes down the batch.
func (o *Orchestrator) scoreOne(ctx context.Context, user, cand *types.Profile, userPrefs, candPrefs *types.PreferenceSet, mode string, now time.Time) (score types.CandidateScore) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: scoring candidate %s panicked: %v", cand.ID, r)
			score = FloorScore(cand.ID, "scoring unavailable for this profile")
		}
	}()
	return o.ranker.ScoreCandidate(ctx, user, cand, userPrefs, candPrefs, mode, now)
}

// fallbackResult wraps the hard-filtered pool, unranked, with neutral floor
// scores and the fallback flag set.
func (o *Orchestrator) fallbackResult(userID string, filtered []*types.Profile, limit int) *types.RankedResult {
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	candidates := make([]types.RankedCandidate, 0, len(filtered))
	for _, p := range filtered {
		candidates = append(candidates, types.RankedCandidate{
			Profile: p,
			Score:   FloorScore(p.ID, "ranking temporarily unavailable"),
		})
	}
	return &types.RankedResult{UserID: userID, Candidates: candidates, Fallback: true}
}

// profileIDs extracts the IDs from a profile slice.
func profileIDs(profiles []*types.Profile) []string {
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	return ids
}

package engine

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/duara-social/matchengine/internal/storage"
)

// ModelState is the explicit lifecycle state of the collaborative model.
type ModelState int

const (
	// ModelUntrained means no training run has completed; predictions are
	// the neutral 0.5.
	ModelUntrained ModelState = iota

	// ModelTraining means a training run is in flight.
	ModelTraining

	// ModelTrained means a model is available for inference.
	ModelTrained
)

// String returns the state's stable label.
func (s ModelState) String() string {
	switch s {
	case ModelTraining:
		return "training"
	case ModelTrained:
		return "trained"
	default:
		return "untrained"
	}
}

// trainRetryCooldown bounds how often lazy cold-start calls retry after a
// failed training run.
const trainRetryCooldown = time.Minute

// ModelHandle owns the process-wide trained latent factor model. It is
// passed by dependency injection rather than held as package state, trains
// lazily on first use, and guards training with single-flight semantics so
// concurrent cold-start requests trigger exactly one training run.
//
// A nil factor store is valid: the model then lives only in process memory.
type ModelHandle struct {
	cfg          LatentFactorConfig
	interactions storage.InteractionSource
	factorStore  storage.FactorStore
	rng          *rand.Rand

	group singleflight.Group

	mu          sync.RWMutex
	model       *LatentFactorModel
	state       ModelState
	trainedAt   time.Time
	lastAttempt time.Time

	// onStateChange, when set, is invoked outside the lock on every state
	// transition (used to broadcast training events to the ops UI).
	onStateChange func(state ModelState)
}

// NewModelHandle creates a handle over the given interaction source.
// factorStore may be nil. rng may be nil; see NewLatentFactorModel.
func NewModelHandle(cfg LatentFactorConfig, interactions storage.InteractionSource, factorStore storage.FactorStore, rng *rand.Rand) *ModelHandle {
	if cfg.Factors <= 0 {
		cfg = DefaultLatentFactorConfig()
	}
	return &ModelHandle{
		cfg:          cfg,
		interactions: interactions,
		factorStore:  factorStore,
		rng:          rng,
		state:        ModelUntrained,
	}
}

// SetOnStateChange registers a callback fired on every model state
// transition.
func (h *ModelHandle) SetOnStateChange(fn func(state ModelState)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStateChange = fn
}

// State returns the current model state.
func (h *ModelHandle) State() ModelState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Stats returns training diagnostics for the current model, or zeros when
// untrained.
func (h *ModelHandle) Stats() (state ModelState, users, items, iterations int, rmse float64, trainedAt time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	state = h.state
	trainedAt = h.trainedAt
	if h.model != nil {
		users, items, iterations, rmse = h.model.Stats()
	}
	return
}

// Predict returns the collaborative affinity for (userID, candidateID),
// training lazily on first use. Training failure (including an empty
// interaction log) degrades to the neutral 0.5, never to an error: the
// collaborative signal is one leg of the blend, not a gate.
func (h *ModelHandle) Predict(ctx context.Context, userID, candidateID string, neighbors int) float64 {
	model := h.ensureTrained(ctx)
	if model == nil {
		return neutralCollaborative
	}
	if neighbors > 0 {
		return model.PredictWithBoost(userID, candidateID, neighbors)
	}
	return model.Predict(userID, candidateID)
}

// Retrain forces a new training run, replacing the current model on success.
// On failure the previous model (if any) stays in service.
func (h *ModelHandle) Retrain(ctx context.Context) error {
	_, err, _ := h.group.Do("train", func() (interface{}, error) {
		return nil, h.train(ctx)
	})
	return err
}

// ensureTrained returns the trained model, running a single-flight training
// pass when none exists yet. Returns nil when training is impossible.
func (h *ModelHandle) ensureTrained(ctx context.Context) *LatentFactorModel {
	h.mu.RLock()
	model := h.model
	state := h.state
	lastAttempt := h.lastAttempt
	h.mu.RUnlock()

	if state == ModelTrained && model != nil {
		return model
	}
	// A recently failed run stays neutral until the cooldown elapses;
	// without this, every prediction in a ranking pass would hit the
	// interaction log again. An explicit Retrain bypasses the cooldown.
	if !lastAttempt.IsZero() && time.Since(lastAttempt) < trainRetryCooldown {
		return nil
	}

	// Cold start: exactly one goroutine restores or trains, the rest share
	// the result.
	h.group.Do("train", func() (interface{}, error) {
		if h.restore(ctx) {
			return nil, nil
		}
		return nil, h.train(ctx)
	})

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state == ModelTrained {
		return h.model
	}
	return nil
}

// train runs one training pass and swaps the model in on success.
func (h *ModelHandle) train(ctx context.Context) error {
	h.mu.Lock()
	h.lastAttempt = time.Now()
	h.mu.Unlock()
	h.setState(ModelTraining)

	records, err := h.interactions.GetInteractionLog(ctx)
	if err != nil {
		h.restorePostTrainingState()
		log.Printf("WARNING: model training skipped, interaction log unavailable: %v", err)
		return newScoringError(KindDataUnavailable, "model.train", err)
	}

	model := NewLatentFactorModel(h.cfg, h.rng)
	if err := model.Train(records); err != nil {
		h.restorePostTrainingState()
		log.Printf("WARNING: model training failed: %v", err)
		return err
	}

	h.mu.Lock()
	h.model = model
	h.state = ModelTrained
	h.trainedAt = time.Now()
	fn := h.onStateChange
	h.mu.Unlock()
	if fn != nil {
		fn(ModelTrained)
	}

	h.persistFactors(ctx, model)
	return nil
}

// restore rebuilds the model from persisted factors, skipping the cold
// retrain after a restart. Returns false when no factor store is configured
// or nothing usable is stored; the caller then trains from the log.
func (h *ModelHandle) restore(ctx context.Context) bool {
	if h.factorStore == nil {
		return false
	}

	globalBias, trainedAt, ok, err := h.factorStore.LoadModelMeta(ctx)
	if err != nil {
		log.Printf("WARNING: failed to load persisted model metadata: %v", err)
		return false
	}
	if !ok {
		return false
	}
	users, err := h.factorStore.LoadFactors(ctx, "user")
	if err != nil {
		log.Printf("WARNING: failed to load persisted user factors: %v", err)
		return false
	}
	items, err := h.factorStore.LoadFactors(ctx, "item")
	if err != nil {
		log.Printf("WARNING: failed to load persisted item factors: %v", err)
		return false
	}

	model := ImportFactors(h.cfg, users, items, globalBias)
	if model == nil {
		return false
	}

	h.mu.Lock()
	h.model = model
	h.state = ModelTrained
	h.trainedAt = trainedAt
	fn := h.onStateChange
	h.mu.Unlock()
	if fn != nil {
		fn(ModelTrained)
	}
	log.Printf("latent: restored model from factor store (%d users, %d items)", len(users), len(items))
	return true
}

// restorePostTrainingState returns the handle to its pre-training state
// after a failed run: trained if an older model exists, untrained otherwise.
func (h *ModelHandle) restorePostTrainingState() {
	h.mu.Lock()
	if h.model != nil {
		h.state = ModelTrained
	} else {
		h.state = ModelUntrained
	}
	state := h.state
	fn := h.onStateChange
	h.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

// setState transitions the handle and fires the state-change callback.
func (h *ModelHandle) setState(state ModelState) {
	h.mu.Lock()
	h.state = state
	fn := h.onStateChange
	h.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

// persistFactors writes the trained factors to the factor store when one is
// configured. Persistence failures are logged, never propagated: the
// in-memory model is already serving.
func (h *ModelHandle) persistFactors(ctx context.Context, model *LatentFactorModel) {
	if h.factorStore == nil {
		return
	}
	for kind, factors := range map[string]map[string]storage.StoredFactors{
		"user": model.ExportFactors("user"),
		"item": model.ExportFactors("item"),
	} {
		for id, f := range factors {
			if err := h.factorStore.StoreFactors(ctx, kind, id, f.Factors, f.Bias); err != nil {
				log.Printf("WARNING: failed to persist %s factors for %s: %v", kind, id, err)
				return
			}
		}
	}

	h.mu.RLock()
	trainedAt := h.trainedAt
	h.mu.RUnlock()
	if err := h.factorStore.StoreModelMeta(ctx, model.globalBias, trainedAt); err != nil {
		log.Printf("WARNING: failed to persist model metadata: %v", err)
		return
	}
	log.Printf("latent: persisted trained factors to factor store")
}

// Warm triggers lazy training if no model exists yet. Regular ranking calls
// warm implicitly via Predict; this is for startup hooks that want to pay
// the cold-start cost before serving.
func (h *ModelHandle) Warm(ctx context.Context) {
	h.ensureTrained(ctx)
}

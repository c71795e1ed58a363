package engine

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/duara-social/matchengine/internal/storage"
	"github.com/duara-social/matchengine/pkg/types"
)

// LatentFactorConfig holds hyperparameters for matrix factorization training.
type LatentFactorConfig struct {
	// Factors is the latent dimensionality k (default: 12).
	Factors int

	// LearningRate for the SGD updates (default: 0.01).
	LearningRate float64

	// Regularization strength applied to factors and biases (default: 0.05).
	Regularization float64

	// MaxIterations caps the number of full passes over the interaction set
	// (default: 100).
	MaxIterations int

	// ConvergenceThreshold is the minimum RMSE improvement per iteration;
	// training stops early after Patience consecutive iterations below it
	// (default: 1e-4).
	ConvergenceThreshold float64

	// Patience is the number of consecutive low-improvement iterations
	// tolerated before early stop (default: 3).
	Patience int

	// Seed seeds the random source used for factor initialization and
	// interaction shuffling when no explicit source is injected, keeping
	// training reproducible.
	Seed int64
}

// DefaultLatentFactorConfig returns the standard hyperparameters.
func DefaultLatentFactorConfig() LatentFactorConfig {
	return LatentFactorConfig{
		Factors:              12,
		LearningRate:         0.01,
		Regularization:       0.05,
		MaxIterations:        100,
		ConvergenceThreshold: 1e-4,
		Patience:             3,
		Seed:                 42,
	}
}

// Rating bounds used to map raw predictions into [0.0, 1.0].
const (
	ratingMin = -1.0
	ratingMax = 2.0
)

// neutralCollaborative is returned for any prediction from an untrained model.
const neutralCollaborative = 0.5

// maxNeighborBoost bounds the secondary similar-user signal.
const maxNeighborBoost = 0.2

// interaction is one deduplicated training example.
type interaction struct {
	user, item int
	rating     float64
}

// LatentFactorModel is a bias-aware matrix factorization model trained by
// stochastic gradient descent over the interaction log.
//
// Training mutates the model; after Train returns the model is read-only and
// safe for concurrent Predict calls. The ModelHandle enforces this lifecycle.
type LatentFactorModel struct {
	cfg LatentFactorConfig
	rng *rand.Rand

	userIndex map[string]int
	itemIndex map[string]int
	userIDs   []string
	itemIDs   []string

	userFactors [][]float64
	itemFactors [][]float64
	userBias    []float64
	itemBias    []float64
	globalBias  float64

	// itemRaters maps item index -> user indices and ratings, kept for the
	// neighbor-opinion boost.
	itemRaters map[int][]interaction

	trained    bool
	finalRMSE  float64
	iterations int
}

// NewLatentFactorModel creates an untrained model. rng may be nil, in which
// case a source seeded from cfg.Seed is used; injecting a seeded source makes
// training reproducible in tests.
func NewLatentFactorModel(cfg LatentFactorConfig, rng *rand.Rand) *LatentFactorModel {
	if cfg.Factors <= 0 {
		cfg = DefaultLatentFactorConfig()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	return &LatentFactorModel{cfg: cfg, rng: rng}
}

// Trained reports whether the model has completed a successful training run.
func (m *LatentFactorModel) Trained() bool { return m.trained }

// Stats returns training diagnostics: entity counts, iterations run, and the
// final training RMSE.
func (m *LatentFactorModel) Stats() (users, items, iterations int, rmse float64) {
	return len(m.userIDs), len(m.itemIDs), m.iterations, m.finalRMSE
}

// Train builds the interaction matrix from the log and fits factors and
// biases by SGD. A log with no usable interactions leaves the model
// untrained and returns KindModelUntrained; every prediction then scores the
// neutral 0.5.
func (m *LatentFactorModel) Train(records []types.InteractionRecord) error {
	entries := m.buildInteractions(records)
	if len(entries) == 0 {
		return newScoringError(KindModelUntrained, "latent.train", fmt.Errorf("no interactions"))
	}

	k := m.cfg.Factors
	m.userFactors = m.initFactors(len(m.userIDs), k)
	m.itemFactors = m.initFactors(len(m.itemIDs), k)
	m.userBias = make([]float64, len(m.userIDs))
	m.itemBias = make([]float64, len(m.itemIDs))

	var sum float64
	for _, e := range entries {
		sum += e.rating
	}
	m.globalBias = sum / float64(len(entries))

	m.itemRaters = make(map[int][]interaction)
	for _, e := range entries {
		m.itemRaters[e.item] = append(m.itemRaters[e.item], e)
	}

	lr := m.cfg.LearningRate
	reg := m.cfg.Regularization
	prevRMSE := math.Inf(1)
	lowImprovement := 0

	for iter := 0; iter < m.cfg.MaxIterations; iter++ {
		m.rng.Shuffle(len(entries), func(i, j int) {
			entries[i], entries[j] = entries[j], entries[i]
		})

		var sqErr float64
		for _, e := range entries {
			uf := m.userFactors[e.user]
			vf := m.itemFactors[e.item]

			pred := m.globalBias + m.userBias[e.user] + m.itemBias[e.item] + floats.Dot(uf, vf)
			err := e.rating - pred
			sqErr += err * err

			m.userBias[e.user] += lr * (err - reg*m.userBias[e.user])
			m.itemBias[e.item] += lr * (err - reg*m.itemBias[e.item])

			for f := 0; f < k; f++ {
				u, v := uf[f], vf[f]
				uf[f] += lr * (err*v - reg*u)
				vf[f] += lr * (err*u - reg*v)
			}
		}

		rmse := math.Sqrt(sqErr / float64(len(entries)))
		m.iterations = iter + 1
		m.finalRMSE = rmse

		if prevRMSE-rmse < m.cfg.ConvergenceThreshold {
			lowImprovement++
			if lowImprovement >= m.cfg.Patience {
				break
			}
		} else {
			lowImprovement = 0
		}
		prevRMSE = rmse
	}

	m.trained = true
	log.Printf("latent: trained on %d interactions (%d users, %d items) in %d iterations, rmse=%.4f",
		len(entries), len(m.userIDs), len(m.itemIDs), m.iterations, m.finalRMSE)
	return nil
}

// buildInteractions deduplicates the raw log and assigns dense indices.
// For duplicate (actor, target) pairs the most recent record wins; on equal
// timestamps the strongest-magnitude rating wins. Matches are recorded
// bidirectionally.
func (m *LatentFactorModel) buildInteractions(records []types.InteractionRecord) []interaction {
	type key struct{ actor, target string }
	latest := make(map[key]types.InteractionRecord)

	consider := func(r types.InteractionRecord) {
		k := key{r.ActorID, r.TargetID}
		prev, ok := latest[k]
		if !ok || r.Timestamp.After(prev.Timestamp) ||
			(r.Timestamp.Equal(prev.Timestamp) && math.Abs(r.Rating) > math.Abs(prev.Rating)) {
			latest[k] = r
		}
	}

	for _, r := range records {
		if r.ActorID == "" || r.TargetID == "" || r.ActorID == r.TargetID {
			continue
		}
		consider(r)
		if r.Match {
			reverse := r
			reverse.ActorID, reverse.TargetID = r.TargetID, r.ActorID
			reverse.Rating = types.RatingMatch
			consider(reverse)
		}
	}

	m.userIndex = make(map[string]int)
	m.itemIndex = make(map[string]int)
	m.userIDs = m.userIDs[:0]
	m.itemIDs = m.itemIDs[:0]

	// Deterministic ordering of entries regardless of map iteration.
	keys := make([]key, 0, len(latest))
	for k := range latest {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].actor != keys[j].actor {
			return keys[i].actor < keys[j].actor
		}
		return keys[i].target < keys[j].target
	})

	entries := make([]interaction, 0, len(keys))
	for _, k := range keys {
		r := latest[k]
		u, ok := m.userIndex[r.ActorID]
		if !ok {
			u = len(m.userIDs)
			m.userIndex[r.ActorID] = u
			m.userIDs = append(m.userIDs, r.ActorID)
		}
		it, ok := m.itemIndex[r.TargetID]
		if !ok {
			it = len(m.itemIDs)
			m.itemIndex[r.TargetID] = it
			m.itemIDs = append(m.itemIDs, r.TargetID)
		}
		entries = append(entries, interaction{user: u, item: it, rating: r.Rating})
	}
	return entries
}

// initFactors allocates n factor vectors with small random initialization.
func (m *LatentFactorModel) initFactors(n, k int) [][]float64 {
	factors := make([][]float64, n)
	for i := range factors {
		vec := make([]float64, k)
		for f := range vec {
			vec[f] = (m.rng.Float64() - 0.5) * 0.1
		}
		factors[i] = vec
	}
	return factors
}

// Predict returns the model's affinity estimate for (userID, itemID), mapped
// into [0.0, 1.0]. An untrained model always returns 0.5; an unknown user or
// item falls back to the global bias rather than erroring.
func (m *LatentFactorModel) Predict(userID, itemID string) float64 {
	if !m.trained {
		return neutralCollaborative
	}

	u, haveUser := m.userIndex[userID]
	it, haveItem := m.itemIndex[itemID]
	if !haveUser || !haveItem {
		return mapRating(m.globalBias)
	}

	raw := m.globalBias + m.userBias[u] + m.itemBias[it] +
		floats.Dot(m.userFactors[u], m.itemFactors[it])
	return mapRating(raw)
}

// PredictWithBoost returns Predict plus the bounded neighbor-opinion boost.
func (m *LatentFactorModel) PredictWithBoost(userID, itemID string, neighbors int) float64 {
	base := m.Predict(userID, itemID)
	return clamp01(base + m.neighborBoost(userID, itemID, neighbors))
}

// neighborBoost finds the top-k users most similar to userID by factor-vector
// cosine similarity and blends their average opinion of the item as a bounded
// secondary signal (at most +maxNeighborBoost).
func (m *LatentFactorModel) neighborBoost(userID, itemID string, k int) float64 {
	if !m.trained || k <= 0 {
		return 0
	}
	u, haveUser := m.userIndex[userID]
	it, haveItem := m.itemIndex[itemID]
	if !haveUser || !haveItem {
		return 0
	}
	raters := m.itemRaters[it]
	if len(raters) == 0 {
		return 0
	}

	type neighbor struct {
		sim    float64
		rating float64
	}
	neighbors := make([]neighbor, 0, len(raters))
	for _, r := range raters {
		if r.user == u {
			continue
		}
		sim := cosineSimilarity(m.userFactors[u], m.userFactors[r.user])
		if sim <= 0 {
			continue
		}
		neighbors = append(neighbors, neighbor{sim: sim, rating: r.rating})
	}
	if len(neighbors) == 0 {
		return 0
	}

	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].sim > neighbors[j].sim })
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}

	var sum float64
	for _, n := range neighbors {
		sum += mapRating(n.rating)
	}
	avg := sum / float64(len(neighbors))

	// Center the neighbor opinion around neutral and bound the contribution.
	boost := (avg - neutralCollaborative) * maxNeighborBoost * 2
	if boost > maxNeighborBoost {
		boost = maxNeighborBoost
	}
	if boost < -maxNeighborBoost {
		boost = -maxNeighborBoost
	}
	return boost
}

// mapRating maps a raw rating-scale value into [0.0, 1.0].
func mapRating(raw float64) float64 {
	return clamp01((raw - ratingMin) / (ratingMax - ratingMin))
}

// ExportFactors returns the trained per-entity factors for persistence.
// kind is "user" or "item". Returns nil for an untrained model.
func (m *LatentFactorModel) ExportFactors(kind string) map[string]storage.StoredFactors {
	if !m.trained {
		return nil
	}
	var ids []string
	var factors [][]float64
	var biases []float64
	switch kind {
	case "user":
		ids, factors, biases = m.userIDs, m.userFactors, m.userBias
	case "item":
		ids, factors, biases = m.itemIDs, m.itemFactors, m.itemBias
	default:
		return nil
	}
	out := make(map[string]storage.StoredFactors, len(ids))
	for i, id := range ids {
		f32 := make([]float32, len(factors[i]))
		for j, v := range factors[i] {
			f32[j] = float32(v)
		}
		out[id] = storage.StoredFactors{Factors: f32, Bias: biases[i]}
	}
	return out
}

// ImportFactors rebuilds a trained model from persisted factors. The
// per-item rater lists are not persisted, so a restored model serves base
// predictions without the neighbor-opinion boost until the next training
// run. Returns nil when either side is empty.
func ImportFactors(cfg LatentFactorConfig, users, items map[string]storage.StoredFactors, globalBias float64) *LatentFactorModel {
	if len(users) == 0 || len(items) == 0 {
		return nil
	}
	m := NewLatentFactorModel(cfg, nil)
	m.userIDs, m.userIndex, m.userFactors, m.userBias = importEntities(users)
	m.itemIDs, m.itemIndex, m.itemFactors, m.itemBias = importEntities(items)
	m.globalBias = globalBias
	m.trained = true
	return m
}

func importEntities(stored map[string]storage.StoredFactors) ([]string, map[string]int, [][]float64, []float64) {
	ids := make([]string, 0, len(stored))
	for id := range stored {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	index := make(map[string]int, len(ids))
	factors := make([][]float64, len(ids))
	biases := make([]float64, len(ids))
	for i, id := range ids {
		index[id] = i
		f := stored[id]
		vec := make([]float64, len(f.Factors))
		for j, v := range f.Factors {
			vec[j] = float64(v)
		}
		factors[i] = vec
		biases[i] = f.Bias
	}
	return ids, index, factors, biases
}

package engine

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/duara-social/matchengine/pkg/types"
)

// syntheticLog builds a log with two taste clusters: users a1/a2 like items
// x1/x2 and dislike y1/y2; users b1/b2 do the opposite.
func syntheticLog(now time.Time) []types.InteractionRecord {
	var records []types.InteractionRecord
	add := func(actor, target string, rating float64) {
		records = append(records, types.InteractionRecord{
			ActorID: actor, TargetID: target, Rating: rating, Timestamp: now,
		})
	}
	for _, a := range []string{"a1", "a2"} {
		add(a, "x1", types.RatingLike)
		add(a, "x2", types.RatingStar)
		add(a, "y1", types.RatingDislike)
		add(a, "y2", types.RatingDislike)
	}
	for _, b := range []string{"b1", "b2"} {
		add(b, "x1", types.RatingDislike)
		add(b, "x2", types.RatingDislike)
		add(b, "y1", types.RatingLike)
		add(b, "y2", types.RatingStar)
	}
	return records
}

func newTestModel() *LatentFactorModel {
	cfg := DefaultLatentFactorConfig()
	cfg.Factors = 4
	return NewLatentFactorModel(cfg, rand.New(rand.NewSource(42)))
}

func TestUntrainedModelPredictsNeutral(t *testing.T) {
	m := newTestModel()
	if got := m.Predict("a1", "x1"); got != 0.5 {
		t.Errorf("untrained Predict = %f, want neutral 0.5", got)
	}
}

func TestTrainEmptyLogLeavesModelUntrained(t *testing.T) {
	m := newTestModel()
	err := m.Train(nil)
	if err == nil {
		t.Fatal("expected an error for an empty log")
	}
	if !IsKind(err, KindModelUntrained) {
		t.Errorf("error kind = %v, want KindModelUntrained", err)
	}
	if m.Trained() {
		t.Error("model must stay untrained after an empty log")
	}
}

func TestTrainLearnsTasteClusters(t *testing.T) {
	m := newTestModel()
	if err := m.Train(syntheticLog(time.Now())); err != nil {
		t.Fatalf("Train: %v", err)
	}

	liked := m.Predict("a1", "x2")
	disliked := m.Predict("a1", "y1")
	if liked <= disliked {
		t.Errorf("liked item %f should outrank disliked item %f", liked, disliked)
	}

	for _, got := range []float64{liked, disliked} {
		if got < 0 || got > 1 {
			t.Errorf("prediction %f is outside [0,1]", got)
		}
	}
}

func TestTrainIsDeterministicForFixedSeed(t *testing.T) {
	now := time.Now()
	a := newTestModel()
	b := newTestModel()
	if err := a.Train(syntheticLog(now)); err != nil {
		t.Fatal(err)
	}
	if err := b.Train(syntheticLog(now)); err != nil {
		t.Fatal(err)
	}

	if pa, pb := a.Predict("a1", "x1"), b.Predict("a1", "x1"); pa != pb {
		t.Errorf("same seed produced different predictions: %f vs %f", pa, pb)
	}
}

func TestPredictUnknownEntityUsesGlobalBias(t *testing.T) {
	m := newTestModel()
	if err := m.Train(syntheticLog(time.Now())); err != nil {
		t.Fatal(err)
	}

	got := m.Predict("stranger", "x1")
	want := mapRating(m.globalBias)
	if got != want {
		t.Errorf("unknown user prediction = %f, want global-bias fallback %f", got, want)
	}
}

func TestBuildInteractionsDedupAndMatchExpansion(t *testing.T) {
	m := newTestModel()
	now := time.Now()

	records := []types.InteractionRecord{
		{ActorID: "u", TargetID: "v", Rating: types.RatingDislike, Timestamp: now.Add(-time.Hour)},
		{ActorID: "u", TargetID: "v", Rating: types.RatingLike, Timestamp: now, Match: true},
		{ActorID: "u", TargetID: "u", Rating: types.RatingLike, Timestamp: now}, // self, dropped
	}

	entries := m.buildInteractions(records)
	// One deduplicated forward record plus the bidirectional match record.
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.rating < types.RatingLike {
			t.Errorf("stale dislike survived dedup: rating %f", e.rating)
		}
	}
}

func TestMapRating(t *testing.T) {
	if got := mapRating(types.RatingDislike); got != 0 {
		t.Errorf("mapRating(dislike) = %f, want 0", got)
	}
	if got := mapRating(types.RatingStar); got != 1 {
		t.Errorf("mapRating(star) = %f, want 1", got)
	}
	if got := mapRating(0.5); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("mapRating(0.5) = %f, want 0.5", got)
	}
}

func TestPredictWithBoostStaysBounded(t *testing.T) {
	m := newTestModel()
	if err := m.Train(syntheticLog(time.Now())); err != nil {
		t.Fatal(err)
	}

	base := m.Predict("a1", "x1")
	boosted := m.PredictWithBoost("a1", "x1", 5)
	if boosted < 0 || boosted > 1 {
		t.Errorf("boosted prediction %f is outside [0,1]", boosted)
	}
	if math.Abs(boosted-base) > maxNeighborBoost+1e-9 {
		t.Errorf("neighbor boost exceeded cap: base %f, boosted %f", base, boosted)
	}
}

func TestExportFactors(t *testing.T) {
	m := newTestModel()
	if got := m.ExportFactors("user"); got != nil {
		t.Error("untrained model must export nil factors")
	}

	if err := m.Train(syntheticLog(time.Now())); err != nil {
		t.Fatal(err)
	}

	users := m.ExportFactors("user")
	items := m.ExportFactors("item")
	if len(users) != 4 || len(items) != 4 {
		t.Errorf("exported %d users and %d items, want 4 and 4", len(users), len(items))
	}
	for id, sf := range users {
		if len(sf.Factors) != m.cfg.Factors {
			t.Errorf("user %s has %d factors, want %d", id, len(sf.Factors), m.cfg.Factors)
		}
	}
}

func TestImportFactorsRoundTrip(t *testing.T) {
	m := newTestModel()
	if err := m.Train(syntheticLog(time.Now())); err != nil {
		t.Fatal(err)
	}

	restored := ImportFactors(m.cfg, m.ExportFactors("user"), m.ExportFactors("item"), m.globalBias)
	if restored == nil {
		t.Fatal("ImportFactors returned nil for a trained export")
	}
	if !restored.Trained() {
		t.Fatal("restored model must report trained")
	}

	// Factors round-trip through float32; predictions agree to within that
	// precision loss.
	pairs := [][2]string{{"a1", "x2"}, {"a1", "y1"}, {"b1", "y2"}, {"b2", "x1"}}
	for _, p := range pairs {
		want := m.Predict(p[0], p[1])
		got := restored.Predict(p[0], p[1])
		if diff := got - want; diff > 1e-3 || diff < -1e-3 {
			t.Errorf("Predict(%s, %s) restored = %f, original = %f", p[0], p[1], got, want)
		}
	}
	if got, want := restored.Predict("stranger", "x1"), m.Predict("stranger", "x1"); got != want {
		t.Errorf("unknown-entity fallback restored = %f, original = %f", got, want)
	}
}

func TestImportFactorsEmptySideReturnsNil(t *testing.T) {
	m := newTestModel()
	if err := m.Train(syntheticLog(time.Now())); err != nil {
		t.Fatal(err)
	}
	if got := ImportFactors(m.cfg, nil, m.ExportFactors("item"), 0); got != nil {
		t.Error("ImportFactors with no users must return nil")
	}
	if got := ImportFactors(m.cfg, m.ExportFactors("user"), nil, 0); got != nil {
		t.Error("ImportFactors with no items must return nil")
	}
}

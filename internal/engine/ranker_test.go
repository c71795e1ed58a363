package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/duara-social/matchengine/pkg/types"
)

func newTestRanker(store *fakeStore) *HybridRanker {
	return NewHybridRanker(
		NewContentScorer(nil),
		newTestHandle(store),
		NewContextScorer(store),
	)
}

func TestScoreCandidateBlend(t *testing.T) {
	store := newFakeStore()
	ranker := newTestRanker(store)
	now := time.Now()

	user := testProfile("a", now)
	cand := testProfile("b", now)

	score := ranker.ScoreCandidate(context.Background(), user, cand, nil, nil, ModeMeet, now)

	want := 0.40*score.ContentScore + 0.35*score.CollaborativeScore + 0.25*score.ContextScore
	if math.Abs(score.FinalScore-want) > 1e-9 {
		t.Errorf("final = %f, want blend %f", score.FinalScore, want)
	}
	if score.CandidateID != "b" {
		t.Errorf("candidate ID = %q, want b", score.CandidateID)
	}
	if len(score.ReasonCodes) == 0 {
		t.Error("every score carries at least one reason")
	}

	for name, v := range map[string]float64{
		"content":       score.ContentScore,
		"collaborative": score.CollaborativeScore,
		"context":       score.ContextScore,
		"final":         score.FinalScore,
	} {
		if v < 0 || v > 1 {
			t.Errorf("%s score %f is outside [0,1]", name, v)
		}
	}
}

func TestScoreCandidateUntrainedModelIsNeutral(t *testing.T) {
	store := newFakeStore() // empty interaction log
	ranker := newTestRanker(store)
	now := time.Now()

	score := ranker.ScoreCandidate(context.Background(), testProfile("a", now), testProfile("b", now), nil, nil, ModeMeet, now)
	if score.CollaborativeScore != 0.5 {
		t.Errorf("collaborative leg = %f, want neutral 0.5 without training data", score.CollaborativeScore)
	}
}

func TestFloorScore(t *testing.T) {
	score := FloorScore("b", "scoring failed")
	if score.FinalScore != floorScore {
		t.Errorf("floor final = %f, want %f", score.FinalScore, floorScore)
	}
	if len(score.ReasonCodes) != 1 || score.ReasonCodes[0] != "scoring failed" {
		t.Errorf("floor reasons = %v", score.ReasonCodes)
	}
}

func TestBuildReasonCodes(t *testing.T) {
	cases := []struct {
		name          string
		content       float64
		collaborative float64
		context       float64
		want          string
	}{
		{"strong_content", 0.9, 0.1, 0.1, "strong content match"},
		{"moderate_content", 0.6, 0.1, 0.1, "moderate content match"},
		{"strong_affinity", 0.1, 0.9, 0.1, "strong predicted affinity"},
		{"strong_context", 0.1, 0.1, 0.9, "very active and nearby"},
		{"all_weak", 0.1, 0.1, 0.1, "suggested for you"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reasons := buildReasonCodes(tc.content, tc.collaborative, tc.context, ContentBreakdown{}, ContextBreakdown{})
			found := false
			for _, r := range reasons {
				if r == tc.want {
					found = true
				}
			}
			if !found {
				t.Errorf("reasons %v missing %q", reasons, tc.want)
			}
		})
	}
}

func TestSortByScoreDeterministicTies(t *testing.T) {
	ranked := []types.RankedCandidate{
		{Score: types.CandidateScore{CandidateID: "c", FinalScore: 0.5}},
		{Score: types.CandidateScore{CandidateID: "a", FinalScore: 0.5}},
		{Score: types.CandidateScore{CandidateID: "b", FinalScore: 0.9}},
	}

	SortByScore(ranked)

	wantOrder := []string{"b", "a", "c"}
	for i, want := range wantOrder {
		if ranked[i].Score.CandidateID != want {
			t.Errorf("position %d = %q, want %q", i, ranked[i].Score.CandidateID, want)
		}
	}
}

package engine

import (
	"context"
	"sort"
	"time"

	"github.com/duara-social/matchengine/pkg/types"
)

// Hybrid blend weights (content / collaborative / context).
const (
	blendWeightContent       = 0.40
	blendWeightCollaborative = 0.35
	blendWeightContext       = 0.25
)

// Reason-code thresholds.
const (
	strongSignal   = 0.7
	moderateSignal = 0.5
)

// floorScore is assigned to a candidate whose scoring failed; the candidate
// stays in the list with an explanatory reason rather than being dropped.
const floorScore = 0.05

// neighborCount is the k used for the collaborative neighbor-opinion boost.
const neighborCount = 5

// HybridRanker blends content, collaborative, and context scores into the
// final per-candidate score. Scoring each candidate is independent and
// side-effect-free, so candidates may be scored concurrently.
type HybridRanker struct {
	content *ContentScorer
	model   *ModelHandle
	context *ContextScorer
}

// NewHybridRanker creates a ranker over the three scoring legs.
func NewHybridRanker(content *ContentScorer, model *ModelHandle, contextScorer *ContextScorer) *HybridRanker {
	return &HybridRanker{content: content, model: model, context: contextScorer}
}

// ScoreCandidate produces the full CandidateScore for one candidate.
func (r *HybridRanker) ScoreCandidate(ctx context.Context, user, cand *types.Profile, userPrefs, candPrefs *types.PreferenceSet, mode string, now time.Time) types.CandidateScore {
	contentScore, contentBreakdown := r.content.Score(user, cand, userPrefs, candPrefs, now)
	collaborative := r.model.Predict(ctx, user.ID, cand.ID, neighborCount)
	contextScore, contextBreakdown := r.context.Score(ctx, user, cand, mode, now)

	final := blendWeightContent*contentScore +
		blendWeightCollaborative*collaborative +
		blendWeightContext*contextScore

	return types.CandidateScore{
		CandidateID:        cand.ID,
		ContentScore:       clamp01(contentScore),
		CollaborativeScore: clamp01(collaborative),
		ContextScore:       clamp01(contextScore),
		FinalScore:         clamp01(final),
		ReasonCodes:        buildReasonCodes(contentScore, collaborative, contextScore, contentBreakdown, contextBreakdown),
	}
}

// FloorScore returns the minimal score assigned to a candidate whose scoring
// failed, with an explanatory reason.
func FloorScore(candidateID, reason string) types.CandidateScore {
	return types.CandidateScore{
		CandidateID:        candidateID,
		ContentScore:       floorScore,
		CollaborativeScore: neutralCollaborative,
		ContextScore:       floorScore,
		FinalScore:         floorScore,
		ReasonCodes:        []string{reason},
	}
}

// buildReasonCodes produces the human-readable explanation for a score.
func buildReasonCodes(content, collaborative, contextScore float64, cb ContentBreakdown, xb ContextBreakdown) []string {
	var reasons []string

	switch {
	case content > strongSignal:
		reasons = append(reasons, "strong content match")
	case content > moderateSignal:
		reasons = append(reasons, "moderate content match")
	}
	switch {
	case collaborative > strongSignal:
		reasons = append(reasons, "strong predicted affinity")
	case collaborative > moderateSignal:
		reasons = append(reasons, "moderate predicted affinity")
	}
	switch {
	case contextScore > strongSignal:
		reasons = append(reasons, "very active and nearby")
	case contextScore > moderateSignal:
		reasons = append(reasons, "active recently")
	}

	if cb.Categorical > strongSignal {
		reasons = append(reasons, "shares your background")
	}
	if cb.Text > strongSignal {
		reasons = append(reasons, "similar interests and bio")
	}
	if xb.Reciprocity > strongSignal {
		reasons = append(reasons, "responds to messages")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "suggested for you")
	}
	return reasons
}

// SortByScore orders ranked candidates by final score descending, breaking
// ties by candidate ID for deterministic output.
func SortByScore(ranked []types.RankedCandidate) {
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score.FinalScore != ranked[j].Score.FinalScore {
			return ranked[i].Score.FinalScore > ranked[j].Score.FinalScore
		}
		return ranked[i].Score.CandidateID < ranked[j].Score.CandidateID
	})
}

package types

// CandidateScore is the per-candidate scoring breakdown produced by the hybrid
// ranker. All component scores are in [0.0, 1.0]. Recomputed per request.
type CandidateScore struct {
	CandidateID string `json:"candidate_id"`

	ContentScore       float64 `json:"content_score"`
	CollaborativeScore float64 `json:"collaborative_score"`
	ContextScore       float64 `json:"context_score"`
	DiversityBonus     float64 `json:"diversity_bonus,omitempty"`
	FinalScore         float64 `json:"final_score"`

	// ReasonCodes are human-readable explanations for the ranking
	// (e.g. "strong content match", "diversity pick: different location").
	ReasonCodes []string `json:"reason_codes,omitempty"`
}

// RankedCandidate pairs a candidate profile with its score.
type RankedCandidate struct {
	Profile *Profile       `json:"profile"`
	Score   CandidateScore `json:"score"`
}

// RankedResult is the ordered output of one ranking request. Length is
// bounded by the caller-supplied limit. Fallback is true when the pipeline
// degraded to the unranked hard-filtered pool (see the orchestrator).
type RankedResult struct {
	UserID     string            `json:"user_id"`
	Candidates []RankedCandidate `json:"candidates"`
	Fallback   bool              `json:"fallback,omitempty"`
}

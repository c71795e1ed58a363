package types

import "time"

// Interaction ratings. A match is recorded bidirectionally at training time.
const (
	RatingDislike float64 = -1
	RatingLike    float64 = 1
	RatingStar    float64 = 2
	RatingMatch   float64 = 2
)

// InteractionRecord is one swipe/match event from the interaction log.
// Multiple records for the same (actor, target) pair are deduplicated by the
// model builder, keeping the most recent record and, on equal timestamps, the
// strongest-magnitude rating.
type InteractionRecord struct {
	ActorID   string    `json:"actor_id"`
	TargetID  string    `json:"target_id"`
	Rating    float64   `json:"rating"` // one of -1, 0, +1, +2
	Match     bool      `json:"match,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReciprocityStats summarizes how responsive a member historically is to
// others' outreach. Derived from the interaction log by the storage layer.
type ReciprocityStats struct {
	UserID          string  `json:"user_id"`
	ResponseRate    float64 `json:"response_rate"`     // fraction of received likes answered, [0,1]
	AvgResponseSecs float64 `json:"avg_response_secs"` // mean latency of answers, seconds
}

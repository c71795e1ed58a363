package engine

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/duara-social/matchengine/internal/storage"
	"github.com/duara-social/matchengine/pkg/types"
)

const (
	// recencyHalfLife is the half-life for the temporal sub-signal.
	recencyHalfLife = 24 * time.Hour

	// responseLatencyScale normalizes response latency in the reciprocity
	// formula (one hour, in seconds).
	responseLatencyScale = 3600.0
)

// Mode selects the context-scoring profile. It shifts how geographic
// proximity is weighted but does not change the algorithm shape.
const (
	ModeMeet         = "meet"
	ModeProfessional = "professional"
)

// ContextBreakdown itemizes the context sub-signals, each in [0.0, 1.0].
type ContextBreakdown struct {
	Temporal    float64 `json:"temporal"`
	Geographic  float64 `json:"geographic"`
	Health      float64 `json:"health"`
	Reciprocity float64 `json:"reciprocity"`

	// Degraded is true when a sub-signal failed and the basic fallback
	// formula produced the score instead of the full blend.
	Degraded bool `json:"degraded,omitempty"`
}

// ContextScorer scores temporal, geographic, profile-health, and reciprocity
// context for a candidate. Reciprocity is its only I/O dependency; any
// failure there degrades to the basic score rather than propagating.
type ContextScorer struct {
	interactions storage.InteractionSource
}

// NewContextScorer creates a context scorer backed by the given interaction
// source (may be nil, which always degrades reciprocity to neutral).
func NewContextScorer(interactions storage.InteractionSource) *ContextScorer {
	return &ContextScorer{interactions: interactions}
}

// Score returns the context score for the candidate as seen by user at the
// request time, with the per-signal breakdown. The four sub-signals are
// equally weighted. Never returns an error: sub-signal failures fall back to
// the basic formula (recency + online flag + completeness).
func (s *ContextScorer) Score(ctx context.Context, user, cand *types.Profile, mode string, now time.Time) (float64, ContextBreakdown) {
	breakdown := ContextBreakdown{
		Temporal:   recencyScore(cand.LastActiveAt, now),
		Geographic: geographicScore(user, cand, mode),
		Health:     healthScore(cand),
	}

	reciprocity, err := s.reciprocityScore(ctx, cand.ID)
	if err != nil {
		log.Printf("WARNING: reciprocity signal failed for %s, using basic context score: %v", cand.ID, err)
		breakdown.Degraded = true
		return s.basicScore(cand, now, &breakdown), breakdown
	}
	breakdown.Reciprocity = reciprocity

	score := 0.25*breakdown.Temporal +
		0.25*breakdown.Geographic +
		0.25*breakdown.Health +
		0.25*breakdown.Reciprocity
	return clamp01(score), breakdown
}

// basicScore is the degraded formula used when a sub-signal fails:
// recency, the online flag, and completeness, equally weighted.
func (s *ContextScorer) basicScore(cand *types.Profile, now time.Time, breakdown *ContextBreakdown) float64 {
	online := 0.0
	if cand.Online {
		online = 1.0
	}
	score := (breakdown.Temporal + online + healthScore(cand)) / 3
	return clamp01(score)
}

// recencyScore applies exponential decay with a 24-hour half-life to the
// candidate's last-active timestamp. A profile never seen active scores 0.
func recencyScore(lastActive time.Time, now time.Time) float64 {
	if lastActive.IsZero() {
		return 0
	}
	elapsed := now.Sub(lastActive)
	if elapsed < 0 {
		elapsed = 0
	}
	return clamp01(math.Pow(0.5, elapsed.Hours()/recencyHalfLife.Hours()))
}

// geographicScore scores location compatibility. With coordinates on both
// sides it uses haversine distance under exponential decay; otherwise it
// compares location buckets. Professional mode flattens the curve: distance
// matters less when the goal is networking rather than meeting.
func geographicScore(user, cand *types.Profile, mode string) float64 {
	decayKM := 50.0
	bucketMismatch := 0.2
	if mode == ModeProfessional {
		decayKM = 400.0
		bucketMismatch = 0.5
	}

	if hasCoordinates(user) && hasCoordinates(cand) {
		dist := haversineKM(user.Latitude, user.Longitude, cand.Latitude, cand.Longitude)
		return clamp01(math.Exp(-dist / decayKM))
	}

	if user.Location == "" || cand.Location == "" {
		return 0.5
	}
	if equalsFold(user.Location, cand.Location) {
		return 1.0
	}
	if user.CountryOfOrigin != "" && equalsFold(user.CountryOfOrigin, cand.CountryOfOrigin) {
		return 0.6
	}
	return bucketMismatch
}

// hasCoordinates reports whether a profile carries usable coordinates.
func hasCoordinates(p *types.Profile) bool {
	return p.Latitude != 0 || p.Longitude != 0
}

// haversineKM returns the great-circle distance between two points in km.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKM = 6371.0

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusKM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// healthScore is profile completeness dampened by a square root, giving
// diminishing returns: a half-complete profile is worth more than half of a
// complete one.
func healthScore(p *types.Profile) float64 {
	return clamp01(math.Sqrt(profileCompleteness(p)))
}

// reciprocityScore combines the candidate's historical response rate and
// response latency: (responseRate + exp(-avgResponseSecs/3600)) / 2.
// A candidate with no inbound history scores neutral 0.5.
func (s *ContextScorer) reciprocityScore(ctx context.Context, candidateID string) (float64, error) {
	if s.interactions == nil {
		return 0.5, nil
	}
	stats, err := s.interactions.GetReciprocityStats(ctx, candidateID)
	if err != nil {
		return 0, newScoringError(KindDataUnavailable, "context.reciprocity", err)
	}
	if stats == nil {
		return 0.5, nil
	}
	latency := math.Exp(-stats.AvgResponseSecs / responseLatencyScale)
	return clamp01((stats.ResponseRate + latency) / 2), nil
}

package engine

import (
	"strings"
	"time"

	"github.com/duara-social/matchengine/pkg/types"
)

const (
	// Age normalization bounds.
	minAge = 18
	maxAge = 80

	// heightDecayCM is the distance outside the preferred height range at
	// which height compatibility reaches zero.
	heightDecayCM = 20.0

	// recentActivityWindow is how long after last activity a profile still
	// counts as "recently active".
	recentActivityWindow = 72 * time.Hour
)

// FeatureVector is the derived numeric representation of one profile,
// recomputed per scoring batch and discarded afterwards.
//
// Values returns the components flattened into a single []float64 with fixed
// dimensionality: all profiles in a batch produce vectors of identical length.
type FeatureVector struct {
	AgeNorm       float64   // age mapped onto [0,1] over the 18-80 range
	HeightCompat  float64   // compatibility with the viewer's height preference
	Location      []float64 // one-hot over locationVocab
	Interests     []float64 // one-hot over interestVocab
	Religion      []float64 // one-hot over religionVocab
	Ethnicity     []float64 // one-hot over ethnicityVocab
	Completeness  float64   // fraction of the field checklist that is filled
	ActivityScore float64   // 1.0 online, 0.5 recently active, 0.1 otherwise
}

// Values flattens the vector into a fixed-length []float64.
func (v *FeatureVector) Values() []float64 {
	out := make([]float64, 0, 3+len(v.Location)+len(v.Interests)+len(v.Religion)+len(v.Ethnicity))
	out = append(out, v.AgeNorm, v.HeightCompat)
	out = append(out, v.Location...)
	out = append(out, v.Interests...)
	out = append(out, v.Religion...)
	out = append(out, v.Ethnicity...)
	out = append(out, v.Completeness, v.ActivityScore)
	return out
}

// Vectorize converts a profile into a FeatureVector. prefs is the preference
// set of the member the vector will be compared against (used only for the
// height-compatibility component) and may be nil. Pure function: no side
// effects, no I/O.
func Vectorize(p *types.Profile, prefs *types.PreferenceSet, now time.Time) FeatureVector {
	return FeatureVector{
		AgeNorm:       normalizeAge(p.Age(now)),
		HeightCompat:  heightCompatibility(p.HeightCM, prefs),
		Location:      oneHot(locationIndex, len(locationVocab), strings.ToLower(p.Location)),
		Interests:     multiHot(interestIndex, len(interestVocab), p.Interests),
		Religion:      oneHot(religionIndex, len(religionVocab), strings.ToLower(p.Religion)),
		Ethnicity:     oneHot(ethnicityIndex, len(ethnicityVocab), strings.ToLower(p.Ethnicity)),
		Completeness:  profileCompleteness(p),
		ActivityScore: activityScore(p, now),
	}
}

// normalizeAge maps an age in years onto [0,1] over the 18-80 range.
func normalizeAge(age int) float64 {
	if age <= 0 {
		return 0
	}
	n := float64(age-minAge) / float64(maxAge-minAge)
	return clamp01(n)
}

// heightCompatibility scores a candidate height against the viewer's stated
// bounds: 1.0 inside the range, linear decay to 0 at heightDecayCM outside,
// and neutral 0.5 when either side has no height data.
func heightCompatibility(heightCM int, prefs *types.PreferenceSet) float64 {
	if heightCM <= 0 || prefs == nil || prefs.MinHeightCM <= 0 || prefs.MaxHeightCM <= 0 {
		return 0.5
	}
	h := float64(heightCM)
	lo, hi := float64(prefs.MinHeightCM), float64(prefs.MaxHeightCM)
	if h >= lo && h <= hi {
		return 1.0
	}
	var outside float64
	if h < lo {
		outside = lo - h
	} else {
		outside = h - hi
	}
	if outside >= heightDecayCM {
		return 0
	}
	return 1.0 - outside/heightDecayCM
}

// oneHot encodes a single value against a vocabulary. Unknown or empty
// values produce the all-zero vector.
func oneHot(index map[string]int, size int, value string) []float64 {
	vec := make([]float64, size)
	if i, ok := index[value]; ok {
		vec[i] = 1
	}
	return vec
}

// multiHot encodes a tag list against a vocabulary. Unknown tags are skipped;
// an empty or entirely unknown list yields the zero vector, never an error.
func multiHot(index map[string]int, size int, values []string) []float64 {
	vec := make([]float64, size)
	for _, v := range values {
		if i, ok := index[strings.ToLower(strings.TrimSpace(v))]; ok {
			vec[i] = 1
		}
	}
	return vec
}

// completenessChecklist is the fixed field checklist used for the profile
// completeness fraction.
const completenessFields = 10

// profileCompleteness returns the fraction of the checklist that is filled.
func profileCompleteness(p *types.Profile) float64 {
	filled := 0
	if !p.DateOfBirth.IsZero() {
		filled++
	}
	if p.HeightCM > 0 {
		filled++
	}
	if p.Location != "" {
		filled++
	}
	if p.Religion != "" {
		filled++
	}
	if p.Ethnicity != "" {
		filled++
	}
	if p.EducationLevel != "" {
		filled++
	}
	if p.Profession != "" {
		filled++
	}
	if p.RelationshipGoal != "" {
		filled++
	}
	if p.Bio != "" {
		filled++
	}
	if len(p.Interests) > 0 {
		filled++
	}
	return float64(filled) / float64(completenessFields)
}

// activityScore buckets a profile's recency of activity.
func activityScore(p *types.Profile, now time.Time) float64 {
	if p.Online {
		return 1.0
	}
	if !p.LastActiveAt.IsZero() && now.Sub(p.LastActiveAt) <= recentActivityWindow {
		return 0.5
	}
	return 0.1
}

// clamp01 clamps v into [0.0, 1.0].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

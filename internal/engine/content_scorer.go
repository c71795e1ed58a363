package engine

import (
	"strings"
	"time"

	"github.com/duara-social/matchengine/pkg/types"
)

// Content score blend weights.
const (
	contentWeightCosine      = 0.30
	contentWeightCategorical = 0.25
	contentWeightText        = 0.20
	contentWeightPreference  = 0.25
)

// Tolerance-matrix floors. A soft signal must never hard-exclude a candidate,
// so even a deal-breaker mismatch keeps a small non-zero floor: hard filtering
// should already have excluded the candidate, but is not assumed infallible.
const (
	mismatchFloor    = 0.2
	dealBreakerFloor = 0.1
)

// Priority rank-decay weights: first priority 0.40, second 0.30, third 0.20,
// fourth and beyond 0.10 each, normalized over the declared list.
var priorityRankWeights = []float64{0.40, 0.30, 0.20, 0.10}

// ContentBreakdown itemizes the content similarity sub-scores.
type ContentBreakdown struct {
	Cosine      float64 `json:"cosine"`      // numeric feature-vector similarity
	Categorical float64 `json:"categorical"` // weighted bidirectional categorical score
	Text        float64 `json:"text"`        // TF-IDF free-text similarity
	Preference  float64 `json:"preference"`  // priority-weighted preference alignment
}

// ContentScorer blends four similarity signals between a viewer and a
// candidate profile. It is stateless apart from the shared compatibility
// tables and safe for concurrent use.
type ContentScorer struct {
	tables *CompatTables
}

// NewContentScorer creates a content scorer using the given tables.
func NewContentScorer(tables *CompatTables) *ContentScorer {
	if tables == nil {
		tables = defaultCompatTables()
	}
	return &ContentScorer{tables: tables}
}

// Score returns the blended content similarity of candidate cand for viewer
// user, in [0.0, 1.0], with the per-signal breakdown. Either preference set
// may be nil; absence degrades every affected signal to neutral.
func (s *ContentScorer) Score(user, cand *types.Profile, userPrefs, candPrefs *types.PreferenceSet, now time.Time) (float64, ContentBreakdown) {
	userVec := Vectorize(user, candPrefs, now)
	candVec := Vectorize(cand, userPrefs, now)

	breakdown := ContentBreakdown{
		Cosine:      cosineSimilarity(userVec.Values(), candVec.Values()),
		Categorical: s.categoricalScore(user, cand, userPrefs, candPrefs),
		Text:        tfidfSimilarity(profileText(user), profileText(cand)),
		Preference:  s.preferenceAlignment(user, cand, userPrefs, now),
	}

	score := contentWeightCosine*breakdown.Cosine +
		contentWeightCategorical*breakdown.Categorical +
		contentWeightText*breakdown.Text +
		contentWeightPreference*breakdown.Preference

	return clamp01(score), breakdown
}

// profileText concatenates the free-text fields compared under TF-IDF.
func profileText(p *types.Profile) string {
	parts := []string{p.Bio, p.Profession, p.RelationshipGoal}
	parts = append(parts, p.Interests...)
	parts = append(parts, p.EducationInstitutions...)
	return strings.Join(parts, " ")
}

// categoricalFeature is one weighted bidirectional categorical check.
type categoricalFeature struct {
	weight  float64
	score   float64
	present bool
}

// categoricalScore computes the weighted bidirectional categorical score over
// the eight feature families, normalized by the total weight of features for
// which any data was present on either side.
func (s *ContentScorer) categoricalScore(user, cand *types.Profile, userPrefs, candPrefs *types.PreferenceSet) float64 {
	features := []categoricalFeature{
		s.setFeature(0.20, religionSet(userPrefs), religionSet(candPrefs), cand.Religion, user.Religion),
		s.ethnicityFeature(0.15, user, cand, userPrefs, candPrefs),
		s.setFeature(0.15, educationSet(userPrefs), educationSet(candPrefs), cand.EducationLevel, user.EducationLevel),
		s.childrenFeature(0.15, acceptsChildren(userPrefs), acceptsChildren(candPrefs), cand.HasChildren, user.HasChildren),
		s.childrenFeature(0.15, wantsChildren(userPrefs), wantsChildren(candPrefs), cand.WantsChildren, user.WantsChildren),
		s.setFeature(0.10, bodyTypeSet(userPrefs), bodyTypeSet(candPrefs), cand.BodyType, user.BodyType),
		s.goalFeature(0.10, user.RelationshipGoal, cand.RelationshipGoal),
		s.originFeature(0.10, user, cand, userPrefs, candPrefs),
	}

	var weighted, totalWeight float64
	for _, f := range features {
		if !f.present {
			continue
		}
		weighted += f.weight * f.score
		totalWeight += f.weight
	}
	if totalWeight == 0 {
		return 0.5
	}
	return clamp01(weighted / totalWeight)
}

// setFeature evaluates a set-valued preference bidirectionally: does the
// candidate satisfy the viewer's stated set, and does the viewer satisfy the
// candidate's. The feature score is the average of both directions.
func (s *ContentScorer) setFeature(weight float64, userSet, candSet []string, candValue, userValue string) categoricalFeature {
	present := len(userSet) > 0 || len(candSet) > 0 || candValue != "" || userValue != ""
	forward := directionScore(userSet, candValue, userValue)
	backward := directionScore(candSet, userValue, candValue)
	return categoricalFeature{weight: weight, score: (forward + backward) / 2, present: present}
}

// directionScore checks whether otherValue satisfies the stated preference
// set. An explicit "anywhere"/"any" token is a perfect match regardless of
// value; missing data on either side is neutral 0.5. When no preference is
// stated, a direct equality check against ownValue lifts neutral to 1.0.
func directionScore(prefSet []string, otherValue, ownValue string) float64 {
	otherValue = strings.ToLower(strings.TrimSpace(otherValue))
	ownValue = strings.ToLower(strings.TrimSpace(ownValue))

	if containsAnyToken(prefSet) {
		return 1.0
	}
	if len(prefSet) > 0 {
		if otherValue == "" {
			return 0.5
		}
		for _, v := range prefSet {
			if strings.EqualFold(strings.TrimSpace(v), otherValue) {
				return 1.0
			}
		}
		return 0
	}
	// No stated preference: fall back to direct equality, then neutral.
	if otherValue == "" || ownValue == "" {
		return 0.5
	}
	if otherValue == ownValue {
		return 1.0
	}
	return 0.5
}

// containsAnyToken reports whether a preference set contains the explicit
// "no restriction" token.
func containsAnyToken(set []string) bool {
	for _, v := range set {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == types.PreferenceAny || v == "any" {
			return true
		}
	}
	return false
}

// ethnicityFeature matches the candidate's ethnicity or secondary tribe
// against the viewer's ethnicity preference set, and vice versa.
func (s *ContentScorer) ethnicityFeature(weight float64, user, cand *types.Profile, userPrefs, candPrefs *types.PreferenceSet) categoricalFeature {
	userSet := ethnicitySet(userPrefs)
	candSet := ethnicitySet(candPrefs)
	present := len(userSet) > 0 || len(candSet) > 0 || cand.Ethnicity != "" || user.Ethnicity != ""

	forward := ethnicityDirection(userSet, cand, user)
	backward := ethnicityDirection(candSet, user, cand)
	return categoricalFeature{weight: weight, score: (forward + backward) / 2, present: present}
}

// ethnicityDirection scores one direction of the ethnicity check, accepting a
// match on either the primary ethnicity or the secondary tribe.
func ethnicityDirection(prefSet []string, other, own *types.Profile) float64 {
	primary := directionScore(prefSet, other.Ethnicity, own.Ethnicity)
	if other.SecondaryTribe == "" {
		return primary
	}
	secondary := directionScore(prefSet, other.SecondaryTribe, own.Ethnicity)
	if secondary > primary {
		return secondary
	}
	return primary
}

// childrenFeature handles the "yes"/"no"/"either" children preferences,
// where "either" behaves like the any-token.
func (s *ContentScorer) childrenFeature(weight float64, userPref, candPref, candValue, userValue string) categoricalFeature {
	present := userPref != "" || candPref != "" || candValue != "" || userValue != ""
	forward := childrenDirection(userPref, candValue, userValue)
	backward := childrenDirection(candPref, userValue, candValue)
	return categoricalFeature{weight: weight, score: (forward + backward) / 2, present: present}
}

// childrenDirection scores one direction of a children preference.
func childrenDirection(pref, otherValue, ownValue string) float64 {
	pref = strings.ToLower(strings.TrimSpace(pref))
	if pref == "either" || pref == "any" {
		return 1.0
	}
	if pref == "" {
		return directionScore(nil, otherValue, ownValue)
	}
	otherValue = strings.ToLower(strings.TrimSpace(otherValue))
	if otherValue == "" {
		return 0.5
	}
	if pref == otherValue {
		return 1.0
	}
	// "maybe" is half-compatible with a definite preference.
	if otherValue == "maybe" {
		return 0.5
	}
	return 0
}

// goalFeature scores relationship-goal compatibility as token overlap
// between the two free-text goal statements.
func (s *ContentScorer) goalFeature(weight float64, userGoal, candGoal string) categoricalFeature {
	present := userGoal != "" || candGoal != ""
	if userGoal == "" || candGoal == "" {
		return categoricalFeature{weight: weight, score: 0.5, present: present}
	}
	return categoricalFeature{weight: weight, score: tokenOverlap(userGoal, candGoal), present: true}
}

// tokenOverlap returns the fraction of the smaller token set shared by both
// texts. Identical statements score 1.0.
func tokenOverlap(a, b string) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
			return 1.0
		}
		return 0.5
	}
	setA := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		setA[t] = true
	}
	setB := make(map[string]bool, len(tokensB))
	shared := 0
	for _, t := range tokensB {
		if setB[t] {
			continue
		}
		setB[t] = true
		if setA[t] {
			shared++
		}
	}
	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	return clamp01(float64(shared) / float64(smaller))
}

// originFeature checks location/origin cultural alignment: the candidate's
// location or country of origin against the viewer's location preference.
func (s *ContentScorer) originFeature(weight float64, user, cand *types.Profile, userPrefs, candPrefs *types.PreferenceSet) categoricalFeature {
	present := locationPref(userPrefs) != "" || locationPref(candPrefs) != "" ||
		user.Location != "" || cand.Location != ""
	forward := originDirection(locationPref(userPrefs), cand, user)
	backward := originDirection(locationPref(candPrefs), user, cand)
	return categoricalFeature{weight: weight, score: (forward + backward) / 2, present: present}
}

// originDirection scores one direction of the location/origin check.
func originDirection(pref string, other, own *types.Profile) float64 {
	pref = strings.ToLower(strings.TrimSpace(pref))
	if pref == types.PreferenceAny || pref == "any" {
		return 1.0
	}
	if pref != "" {
		if equalsFold(pref, other.Location) || equalsFold(pref, other.CountryOfOrigin) {
			return 1.0
		}
		if other.Location == "" && other.CountryOfOrigin == "" {
			return 0.5
		}
		return 0
	}
	// No stated preference: shared location or origin is a cultural signal.
	if own.Location != "" && equalsFold(own.Location, other.Location) {
		return 1.0
	}
	if own.CountryOfOrigin != "" && equalsFold(own.CountryOfOrigin, other.CountryOfOrigin) {
		return 1.0
	}
	if own.Location == "" || other.Location == "" {
		return 0.5
	}
	return 0.5
}

// equalsFold is a trimming, case-insensitive string comparison.
func equalsFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Preference helpers tolerate a nil preference set.

func religionSet(p *types.PreferenceSet) []string {
	if p == nil {
		return nil
	}
	return p.Religions
}

func ethnicitySet(p *types.PreferenceSet) []string {
	if p == nil {
		return nil
	}
	return p.Ethnicities
}

func educationSet(p *types.PreferenceSet) []string {
	if p == nil {
		return nil
	}
	return p.EducationLevels
}

func bodyTypeSet(p *types.PreferenceSet) []string {
	if p == nil {
		return nil
	}
	return p.BodyTypes
}

func acceptsChildren(p *types.PreferenceSet) string {
	if p == nil {
		return ""
	}
	return p.AcceptsChildren
}

func wantsChildren(p *types.PreferenceSet) string {
	if p == nil {
		return ""
	}
	return p.WantsChildren
}

func locationPref(p *types.PreferenceSet) string {
	if p == nil {
		return ""
	}
	return p.LocationPreference
}

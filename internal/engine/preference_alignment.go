package engine

import (
	"strings"
	"time"

	"github.com/duara-social/matchengine/pkg/types"
)

// priorityScorer scores one matching-priority category for a (user, candidate)
// pair. Implementations return a value in [0.0, 1.0].
type priorityScorer func(s *ContentScorer, user, cand *types.Profile, userPrefs *types.PreferenceSet, now time.Time) float64

// priorityScorers is the static dispatch table mapping each priority kind to
// its scoring function. The set of kinds is closed; unknown kinds are skipped
// by the alignment loop.
var priorityScorers = map[types.PriorityKind]priorityScorer{
	types.PriorityValues:      scoreValuesPriority,
	types.PriorityPersonality: scorePersonalityPriority,
	types.PriorityLooks:       scoreLooksPriority,
	types.PriorityCareer:      scoreCareerPriority,
	types.PriorityReligion:    scoreReligionPriority,
	types.PriorityTribe:       scoreTribePriority,
	types.PriorityIntellect:   scoreIntellectPriority,
}

// preferenceAlignment scores how well the candidate aligns with the viewer's
// declared matching priorities. Each declared priority is scored
// independently and combined under rank-decay weighting (0.40, 0.30, 0.20,
// then 0.10 each), normalized over the declared list. With no declared
// priorities it falls back to basic age-range + location alignment.
func (s *ContentScorer) preferenceAlignment(user, cand *types.Profile, userPrefs *types.PreferenceSet, now time.Time) float64 {
	if userPrefs == nil || len(userPrefs.MatchingPriorities) == 0 {
		return s.basicAlignment(cand, userPrefs, now)
	}

	var weighted, totalWeight float64
	for rank, kind := range userPrefs.MatchingPriorities {
		scorer, ok := priorityScorers[kind]
		if !ok {
			continue
		}
		w := priorityRankWeights[len(priorityRankWeights)-1]
		if rank < len(priorityRankWeights) {
			w = priorityRankWeights[rank]
		}
		weighted += w * scorer(s, user, cand, userPrefs, now)
		totalWeight += w
	}
	if totalWeight == 0 {
		return s.basicAlignment(cand, userPrefs, now)
	}
	return clamp01(weighted / totalWeight)
}

// basicAlignment is the fallback used when no priority list is declared:
// the average of age-range fit and location preference fit.
func (s *ContentScorer) basicAlignment(cand *types.Profile, userPrefs *types.PreferenceSet, now time.Time) float64 {
	age := ageRangeScore(cand.Age(now), userPrefs)
	loc := 0.5
	if pref := locationPref(userPrefs); pref != "" {
		if strings.EqualFold(pref, types.PreferenceAny) || strings.EqualFold(pref, "any") {
			loc = 1.0
		} else if equalsFold(pref, cand.Location) {
			loc = 1.0
		} else if cand.Location != "" {
			loc = mismatchFloor
		}
	}
	return clamp01((age + loc) / 2)
}

// ageRangeScore scores a candidate age against the viewer's stated range:
// 1.0 inside, linear decay to the floor at 10 years outside, neutral 0.5
// when either side lacks data.
func ageRangeScore(age int, prefs *types.PreferenceSet) float64 {
	if age <= 0 || prefs == nil || !prefs.HasAgeRange() {
		return 0.5
	}
	if age >= prefs.MinAge && age <= prefs.MaxAge {
		return 1.0
	}
	var outside int
	if age < prefs.MinAge {
		outside = prefs.MinAge - age
	} else {
		outside = age - prefs.MaxAge
	}
	const decayYears = 10.0
	score := 1.0 - float64(outside)/decayYears
	if score < mismatchFloor {
		return mismatchFloor
	}
	return score
}

// scoreValuesPriority uses interest diversity: shared interests matter most,
// but a candidate who also brings some interests of their own scores better
// than a pure echo of the viewer.
func scoreValuesPriority(s *ContentScorer, user, cand *types.Profile, _ *types.PreferenceSet, _ time.Time) float64 {
	return interestDiversity(user.Interests, cand.Interests)
}

// interestDiversity combines the overlap ratio (shared interests over the
// smaller set, weight 0.6) with a complementary ratio (the candidate's unique
// interests over their total, weight 0.4). Empty interest data on either
// side scores neutral 0.5.
func interestDiversity(userInterests, candInterests []string) float64 {
	if len(userInterests) == 0 || len(candInterests) == 0 {
		return 0.5
	}

	userSet := make(map[string]bool, len(userInterests))
	for _, it := range userInterests {
		userSet[normalizeTag(it)] = true
	}
	candSet := make(map[string]bool, len(candInterests))
	for _, it := range candInterests {
		candSet[normalizeTag(it)] = true
	}

	shared := 0
	for it := range candSet {
		if userSet[it] {
			shared++
		}
	}

	smaller := len(userSet)
	if len(candSet) < smaller {
		smaller = len(candSet)
	}
	if smaller == 0 {
		return 0.5
	}

	overlap := float64(shared) / float64(smaller)
	complementary := float64(len(candSet)-shared) / float64(len(candSet))

	return clamp01(0.6*overlap + 0.4*complementary)
}

// normalizeTag canonicalizes an interest tag for set comparison.
func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// scorePersonalityPriority compares bios under TF-IDF as a proxy for
// personality alignment. Missing bios score neutral.
func scorePersonalityPriority(s *ContentScorer, user, cand *types.Profile, _ *types.PreferenceSet, _ time.Time) float64 {
	if user.Bio == "" || cand.Bio == "" {
		return 0.5
	}
	return tfidfSimilarity(user.Bio, cand.Bio)
}

// scoreLooksPriority blends body-type tolerance with height compatibility.
// Body type applies the tolerance-expansion matrix unless the viewer lists
// looks as a deal-breaker, in which case mismatches score the strict floor.
func scoreLooksPriority(s *ContentScorer, user, cand *types.Profile, userPrefs *types.PreferenceSet, _ time.Time) float64 {
	floor := mismatchFloor
	if userPrefs.IsDealBreaker(types.PriorityLooks) {
		floor = dealBreakerFloor
	}

	body := 0.5
	if len(bodyTypeSet(userPrefs)) > 0 && cand.BodyType != "" {
		body = floor
		for _, want := range bodyTypeSet(userPrefs) {
			v := tolerance(s.tables.BodyType, want, cand.BodyType, floor)
			if userPrefs.IsDealBreaker(types.PriorityLooks) && v < 1.0 {
				v = floor
			}
			if v > body {
				body = v
			}
		}
	} else if user.BodyType != "" && cand.BodyType != "" {
		body = tolerance(s.tables.BodyType, user.BodyType, cand.BodyType, floor)
	}

	height := heightCompatibility(cand.HeightCM, userPrefs)
	return clamp01((body + height) / 2)
}

// scoreCareerPriority compares profession categories via the keyword table:
// same category 1.0, different categories the mismatch floor, missing data
// neutral.
func scoreCareerPriority(s *ContentScorer, user, cand *types.Profile, _ *types.PreferenceSet, _ time.Time) float64 {
	userCat := s.tables.professionCategory(user.Profession)
	candCat := s.tables.professionCategory(cand.Profession)
	if userCat == "" || candCat == "" {
		return 0.5
	}
	if userCat == candCat {
		return 1.0
	}
	return mismatchFloor + 0.1
}

// scoreReligionPriority applies the religion tolerance-expansion matrix,
// falling back to strict matching when religion is a deal-breaker. The
// deal-breaker mismatch keeps a small non-zero floor: hard filtering should
// already have excluded the candidate, but is not assumed infallible.
func scoreReligionPriority(s *ContentScorer, user, cand *types.Profile, userPrefs *types.PreferenceSet, _ time.Time) float64 {
	if user.Religion == "" || cand.Religion == "" {
		return 0.5
	}
	if userPrefs.IsDealBreaker(types.PriorityReligion) {
		if equalsFold(user.Religion, cand.Religion) {
			return 1.0
		}
		return dealBreakerFloor
	}
	return tolerance(s.tables.Religion, user.Religion, cand.Religion, mismatchFloor)
}

// scoreTribePriority scores ethnic/tribal affinity: same primary ethnicity
// 1.0, a secondary-tribe link 0.8, otherwise the mismatch floor.
func scoreTribePriority(s *ContentScorer, user, cand *types.Profile, userPrefs *types.PreferenceSet, _ time.Time) float64 {
	if user.Ethnicity == "" || cand.Ethnicity == "" {
		return 0.5
	}
	if equalsFold(user.Ethnicity, cand.Ethnicity) {
		return 1.0
	}
	if (cand.SecondaryTribe != "" && equalsFold(user.Ethnicity, cand.SecondaryTribe)) ||
		(user.SecondaryTribe != "" && equalsFold(cand.Ethnicity, user.SecondaryTribe)) {
		return 0.8
	}
	if userPrefs.IsDealBreaker(types.PriorityTribe) {
		return dealBreakerFloor
	}
	return mismatchFloor
}

// educationRank orders education levels for adjacency scoring.
var educationRank = map[string]int{
	"high-school": 1,
	"diploma":     2,
	"bachelors":   3,
	"masters":     4,
	"doctorate":   5,
}

// scoreIntellectPriority scores education-level alignment: equal levels 1.0,
// adjacent 0.7, otherwise 0.4; unknown levels neutral.
func scoreIntellectPriority(s *ContentScorer, user, cand *types.Profile, _ *types.PreferenceSet, _ time.Time) float64 {
	userRank, okA := educationRank[strings.ToLower(user.EducationLevel)]
	candRank, okB := educationRank[strings.ToLower(cand.EducationLevel)]
	if !okA || !okB {
		return 0.5
	}
	diff := userRank - candRank
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 1.0
	case 1:
		return 0.7
	default:
		return 0.4
	}
}

package engine

import (
	"sort"
	"time"

	"github.com/duara-social/matchengine/pkg/types"
)

const (
	// DefaultDiversityFraction is the default share of the ranked list
	// re-injected as diversity picks.
	DefaultDiversityFraction = 0.15

	// ageExpansionYears widens the viewer's stated age range for the
	// age-expansion lens.
	ageExpansionYears = 4

	// maxPerLens caps how many candidates each demographic lens contributes.
	maxPerLens = 3

	// diversityBaseScore is the synthetic moderate score assigned to an
	// injected candidate before its diversity bonus.
	diversityBaseScore = 0.45
)

// DiversityInjector re-injects demographically under-represented candidates
// into a ranked list to counter filter-bubble effects. It only ever inserts:
// existing ranked entries are never displaced or removed.
type DiversityInjector struct {
	tables   *CompatTables
	fraction float64
}

// NewDiversityInjector creates an injector with the given fraction; a
// non-positive fraction selects the default 0.15.
func NewDiversityInjector(tables *CompatTables, fraction float64) *DiversityInjector {
	if tables == nil {
		tables = defaultCompatTables()
	}
	if fraction <= 0 {
		fraction = DefaultDiversityFraction
	}
	return &DiversityInjector{tables: tables, fraction: fraction}
}

// Inject returns the ranked list with diversity picks interpolated at
// roughly even intervals. The number of picks is floor(len(ranked) *
// fraction); when that is zero, or the pool offers nothing beyond the ranked
// list, the input is returned unchanged (no-op policy, not an error). No
// candidate ID appears twice in the output.
func (d *DiversityInjector) Inject(ranked []types.RankedCandidate, pool []*types.Profile, user *types.Profile, userPrefs *types.PreferenceSet, now time.Time) []types.RankedCandidate {
	diversityCount := int(float64(len(ranked)) * d.fraction)
	if diversityCount == 0 || len(pool) <= len(ranked) {
		return ranked
	}

	seen := make(map[string]bool, len(ranked))
	for _, rc := range ranked {
		seen[rc.Score.CandidateID] = true
	}

	// Pool candidates not already ranked, in the order the lenses consider
	// them.
	var unranked []*types.Profile
	for _, p := range pool {
		if p.ID == user.ID || seen[p.ID] {
			continue
		}
		unranked = append(unranked, p)
	}
	if len(unranked) == 0 {
		return ranked
	}

	picks := d.selectPicks(unranked, user, userPrefs, now)
	if len(picks) > diversityCount {
		picks = picks[:diversityCount]
	}
	if len(picks) == 0 {
		return ranked
	}

	injected := make([]types.RankedCandidate, 0, len(picks))
	for _, p := range picks {
		bonus := d.diversityBonus(p, user, now)
		injected = append(injected, types.RankedCandidate{
			Profile: p,
			Score: types.CandidateScore{
				CandidateID:        p.ID,
				ContentScore:       0.5,
				CollaborativeScore: 0.5,
				ContextScore:       0.5,
				DiversityBonus:     bonus,
				FinalScore:         clamp01(diversityBaseScore + 0.1*bonus),
				ReasonCodes:        []string{"diversity pick: someone outside your usual matches"},
			},
		})
	}

	return interpolate(ranked, injected)
}

// selectPicks runs the five demographic lenses over the unranked pool and
// returns the deduplicated union.
func (d *DiversityInjector) selectPicks(pool []*types.Profile, user *types.Profile, userPrefs *types.PreferenceSet, now time.Time) []*types.Profile {
	lenses := []func([]*types.Profile, *types.Profile, *types.PreferenceSet, time.Time) []*types.Profile{
		d.ageExpansionLens,
		d.ethnicityLens,
		d.educationLens,
		d.professionLens,
		d.locationLens,
	}

	var picks []*types.Profile
	chosen := make(map[string]bool)
	for _, lens := range lenses {
		for _, p := range lens(pool, user, userPrefs, now) {
			if chosen[p.ID] {
				continue
			}
			chosen[p.ID] = true
			picks = append(picks, p)
		}
	}
	return picks
}

// ageExpansionLens selects candidates just outside the viewer's stated age
// range, up to ageExpansionYears beyond either bound, preferring
// newer accounts.
func (d *DiversityInjector) ageExpansionLens(pool []*types.Profile, _ *types.Profile, prefs *types.PreferenceSet, now time.Time) []*types.Profile {
	if prefs == nil || !prefs.HasAgeRange() {
		return nil
	}
	var matches []*types.Profile
	for _, p := range pool {
		age := p.Age(now)
		if age == 0 {
			continue
		}
		belowBy := prefs.MinAge - age
		aboveBy := age - prefs.MaxAge
		if (belowBy > 0 && belowBy <= ageExpansionYears) || (aboveBy > 0 && aboveBy <= ageExpansionYears) {
			matches = append(matches, p)
		}
	}
	// Newer accounts first.
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return capLens(matches)
}

// ethnicityLens selects candidates of a different ethnicity and secondary
// tribe than the viewer.
func (d *DiversityInjector) ethnicityLens(pool []*types.Profile, user *types.Profile, _ *types.PreferenceSet, _ time.Time) []*types.Profile {
	if user.Ethnicity == "" {
		return nil
	}
	var matches []*types.Profile
	for _, p := range pool {
		if p.Ethnicity == "" || equalsFold(p.Ethnicity, user.Ethnicity) {
			continue
		}
		if p.SecondaryTribe != "" && equalsFold(p.SecondaryTribe, user.Ethnicity) {
			continue
		}
		matches = append(matches, p)
	}
	return capLens(matches)
}

// educationLens selects candidates with a different education level.
func (d *DiversityInjector) educationLens(pool []*types.Profile, user *types.Profile, _ *types.PreferenceSet, _ time.Time) []*types.Profile {
	if user.EducationLevel == "" {
		return nil
	}
	var matches []*types.Profile
	for _, p := range pool {
		if p.EducationLevel != "" && !equalsFold(p.EducationLevel, user.EducationLevel) {
			matches = append(matches, p)
		}
	}
	return capLens(matches)
}

// professionLens selects candidates in a different profession category under
// the keyword table.
func (d *DiversityInjector) professionLens(pool []*types.Profile, user *types.Profile, _ *types.PreferenceSet, _ time.Time) []*types.Profile {
	userCat := d.tables.professionCategory(user.Profession)
	if userCat == "" {
		return nil
	}
	var matches []*types.Profile
	for _, p := range pool {
		candCat := d.tables.professionCategory(p.Profession)
		if candCat != "" && candCat != userCat {
			matches = append(matches, p)
		}
	}
	return capLens(matches)
}

// locationLens selects candidates in a different location bucket.
func (d *DiversityInjector) locationLens(pool []*types.Profile, user *types.Profile, _ *types.PreferenceSet, _ time.Time) []*types.Profile {
	if user.Location == "" {
		return nil
	}
	var matches []*types.Profile
	for _, p := range pool {
		if p.Location != "" && !equalsFold(p.Location, user.Location) {
			matches = append(matches, p)
		}
	}
	return capLens(matches)
}

// capLens truncates a lens result to maxPerLens.
func capLens(matches []*types.Profile) []*types.Profile {
	if len(matches) > maxPerLens {
		return matches[:maxPerLens]
	}
	return matches
}

// diversityBonus quantifies how far the pick sits from the viewer across the
// demographic attributes: age gap, ethnicity, education, profession category,
// and location, each capped at 1.0 and averaged.
func (d *DiversityInjector) diversityBonus(p, user *types.Profile, now time.Time) float64 {
	var factors []float64

	if userAge, candAge := user.Age(now), p.Age(now); userAge > 0 && candAge > 0 {
		gap := float64(userAge - candAge)
		if gap < 0 {
			gap = -gap
		}
		factors = append(factors, clamp01(gap/10.0))
	}
	factors = append(factors, mismatchFactor(user.Ethnicity, p.Ethnicity))
	factors = append(factors, mismatchFactor(user.EducationLevel, p.EducationLevel))
	factors = append(factors, mismatchFactor(d.tables.professionCategory(user.Profession), d.tables.professionCategory(p.Profession)))
	factors = append(factors, mismatchFactor(user.Location, p.Location))

	var sum float64
	for _, f := range factors {
		sum += f
	}
	return clamp01(sum / float64(len(factors)))
}

// mismatchFactor is 1.0 for differing non-empty values, 0 otherwise.
func mismatchFactor(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if equalsFold(a, b) {
		return 0
	}
	return 1.0
}

// interpolate inserts the injected picks into the ranked list at roughly
// even positional intervals, preserving the relative order of all existing
// entries.
func interpolate(ranked, injected []types.RankedCandidate) []types.RankedCandidate {
	total := len(ranked) + len(injected)
	interval := total / (len(injected) + 1)
	if interval < 1 {
		interval = 1
	}

	out := make([]types.RankedCandidate, 0, total)
	nextInsert := interval
	j := 0
	for i := 0; i < len(ranked); i++ {
		out = append(out, ranked[i])
		if j < len(injected) && len(out) >= nextInsert {
			out = append(out, injected[j])
			j++
			nextInsert += interval
		}
	}
	// Any picks not yet placed go at the end.
	for ; j < len(injected); j++ {
		out = append(out, injected[j])
	}
	return out
}

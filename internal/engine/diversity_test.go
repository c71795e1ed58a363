package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/duara-social/matchengine/pkg/types"
)

// rankedList builds n ranked entries with descending scores.
func rankedList(n int, now time.Time) ([]types.RankedCandidate, []*types.Profile) {
	ranked := make([]types.RankedCandidate, 0, n)
	pool := make([]*types.Profile, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("r%02d", i)
		p := testProfile(id, now)
		pool = append(pool, p)
		ranked = append(ranked, types.RankedCandidate{
			Profile: p,
			Score: types.CandidateScore{
				CandidateID: id,
				FinalScore:  1.0 - float64(i)*0.01,
			},
		})
	}
	return ranked, pool
}

// diversePool extends the ranked pool with candidates that differ from the
// viewer across every lens attribute.
func diversePool(pool []*types.Profile, n int, now time.Time) []*types.Profile {
	out := append([]*types.Profile{}, pool...)
	for i := 0; i < n; i++ {
		p := testProfile(fmt.Sprintf("d%02d", i), now)
		p.Ethnicity = "luo"
		p.EducationLevel = "masters"
		p.Profession = "nurse"
		p.Location = "mombasa"
		out = append(out, p)
	}
	return out
}

func TestInjectCountAndDedup(t *testing.T) {
	injector := NewDiversityInjector(nil, 0.15)
	now := time.Now()
	user := testProfile("viewer", now)

	ranked, rankedPool := rankedList(20, now)
	pool := diversePool(rankedPool, 10, now)

	out := injector.Inject(ranked, pool, user, nil, now)

	// floor(20 * 0.15) = 3 picks.
	if len(out) != 23 {
		t.Fatalf("output length = %d, want 23", len(out))
	}

	seen := make(map[string]bool)
	for _, rc := range out {
		if seen[rc.Score.CandidateID] {
			t.Errorf("candidate %s appears twice", rc.Score.CandidateID)
		}
		seen[rc.Score.CandidateID] = true
	}
}

func TestInjectNeverDisplacesRankedEntries(t *testing.T) {
	injector := NewDiversityInjector(nil, 0.15)
	now := time.Now()
	user := testProfile("viewer", now)

	ranked, rankedPool := rankedList(20, now)
	pool := diversePool(rankedPool, 10, now)

	out := injector.Inject(ranked, pool, user, nil, now)

	// Every original entry survives, in its original relative order.
	i := 0
	for _, rc := range out {
		if i < len(ranked) && rc.Score.CandidateID == ranked[i].Score.CandidateID {
			i++
		}
	}
	if i != len(ranked) {
		t.Errorf("only %d of %d ranked entries kept their relative order", i, len(ranked))
	}
}

func TestInjectNoOpCases(t *testing.T) {
	injector := NewDiversityInjector(nil, 0.15)
	now := time.Now()
	user := testProfile("viewer", now)

	// Too few ranked entries for a single pick.
	small, smallPool := rankedList(3, now)
	out := injector.Inject(small, diversePool(smallPool, 5, now), user, nil, now)
	if len(out) != len(small) {
		t.Errorf("small list was modified: %d entries, want %d", len(out), len(small))
	}

	// Pool offers nothing beyond the ranked list.
	ranked, rankedPool := rankedList(20, now)
	out = injector.Inject(ranked, rankedPool, user, nil, now)
	if len(out) != len(ranked) {
		t.Errorf("exhausted pool changed the list: %d entries, want %d", len(out), len(ranked))
	}
}

func TestInjectSyntheticScores(t *testing.T) {
	injector := NewDiversityInjector(nil, 0.15)
	now := time.Now()
	user := testProfile("viewer", now)

	ranked, rankedPool := rankedList(20, now)
	pool := diversePool(rankedPool, 10, now)

	out := injector.Inject(ranked, pool, user, nil, now)
	for _, rc := range out {
		if rc.Score.DiversityBonus == 0 {
			continue
		}
		if rc.Score.FinalScore < diversityBaseScore || rc.Score.FinalScore > 1 {
			t.Errorf("injected score %f is outside [%f, 1]", rc.Score.FinalScore, diversityBaseScore)
		}
		if len(rc.Score.ReasonCodes) == 0 {
			t.Errorf("injected pick %s carries no reason", rc.Score.CandidateID)
		}
	}
}

func TestAgeExpansionLens(t *testing.T) {
	injector := NewDiversityInjector(nil, 0.15)
	now := time.Now()
	prefs := &types.PreferenceSet{MinAge: 28, MaxAge: 32}

	justOutside := testProfile("a", now)
	justOutside.DateOfBirth = now.AddDate(-34, 0, 0)
	farOutside := testProfile("b", now)
	farOutside.DateOfBirth = now.AddDate(-45, 0, 0)
	inRange := testProfile("c", now)
	inRange.DateOfBirth = now.AddDate(-30, 0, 0)

	picks := injector.ageExpansionLens([]*types.Profile{justOutside, farOutside, inRange}, nil, prefs, now)

	if len(picks) != 1 || picks[0].ID != "a" {
		t.Errorf("age expansion picked %v, want only the just-outside candidate", ids(picks))
	}

	if got := injector.ageExpansionLens([]*types.Profile{justOutside}, nil, nil, now); got != nil {
		t.Errorf("no stated age range must disable the lens, got %v", ids(got))
	}
}

func TestLensesCapContribution(t *testing.T) {
	injector := NewDiversityInjector(nil, 0.15)
	now := time.Now()
	user := testProfile("viewer", now)

	var pool []*types.Profile
	for i := 0; i < 10; i++ {
		p := testProfile(fmt.Sprintf("p%d", i), now)
		p.Ethnicity = "luo"
		pool = append(pool, p)
	}

	picks := injector.ethnicityLens(pool, user, nil, now)
	if len(picks) > maxPerLens {
		t.Errorf("lens contributed %d picks, cap is %d", len(picks), maxPerLens)
	}
}

func TestDiversityBonus(t *testing.T) {
	injector := NewDiversityInjector(nil, 0.15)
	now := time.Now()
	user := testProfile("viewer", now)

	twin := testProfile("twin", now)
	if got := injector.diversityBonus(twin, user, now); got != 0 {
		t.Errorf("identical profile bonus = %f, want 0", got)
	}

	opposite := testProfile("opposite", now)
	opposite.DateOfBirth = now.AddDate(-45, 0, 0)
	opposite.Ethnicity = "luo"
	opposite.EducationLevel = "masters"
	opposite.Profession = "nurse"
	opposite.Location = "mombasa"
	if got := injector.diversityBonus(opposite, user, now); got != 1.0 {
		t.Errorf("fully different profile bonus = %f, want 1.0", got)
	}
}

func ids(profiles []*types.Profile) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.ID)
	}
	return out
}

func TestInjectSinglePickLandsInsideThePage(t *testing.T) {
	injector := NewDiversityInjector(nil, 0.15)
	now := time.Now()
	user := testProfile("viewer", now)

	ranked, rankedPool := rankedList(10, now)
	pool := diversePool(rankedPool, 8, now)

	out := injector.Inject(ranked, pool, user, nil, now)
	if len(out) != 11 {
		t.Fatalf("got %d entries, want 10 ranked + 1 pick", len(out))
	}

	pickAt := -1
	for i, rc := range out {
		if rc.Score.DiversityBonus > 0 {
			pickAt = i
		}
	}
	// A pick parked past the original page length would vanish when the
	// caller truncates back to its limit.
	if pickAt < 0 || pickAt >= len(ranked) {
		t.Errorf("pick at position %d, must sit inside the first %d entries", pickAt, len(ranked))
	}
}

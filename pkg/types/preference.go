package types

// Preference token recognized as "no restriction" for set-valued preferences.
// A candidate always satisfies a preference containing this token.
const PreferenceAny = "anywhere"

// PriorityKind enumerates the closed set of matching-priority categories a
// member can rank. String-keyed priorities from storage are mapped onto this
// enum at the boundary; unknown strings map to PriorityUnknown and are skipped.
type PriorityKind int

const (
	PriorityUnknown PriorityKind = iota
	PriorityValues
	PriorityPersonality
	PriorityLooks
	PriorityCareer
	PriorityReligion
	PriorityTribe
	PriorityIntellect
)

// ParsePriorityKind maps a stored priority label onto the closed enum.
func ParsePriorityKind(s string) PriorityKind {
	switch s {
	case "values":
		return PriorityValues
	case "personality":
		return PriorityPersonality
	case "looks":
		return PriorityLooks
	case "career":
		return PriorityCareer
	case "religion":
		return PriorityReligion
	case "tribe":
		return PriorityTribe
	case "intellect":
		return PriorityIntellect
	default:
		return PriorityUnknown
	}
}

// String returns the stored label for the priority kind.
func (k PriorityKind) String() string {
	switch k {
	case PriorityValues:
		return "values"
	case PriorityPersonality:
		return "personality"
	case PriorityLooks:
		return "looks"
	case PriorityCareer:
		return "career"
	case PriorityReligion:
		return "religion"
	case PriorityTribe:
		return "tribe"
	case PriorityIntellect:
		return "intellect"
	default:
		return "unknown"
	}
}

// PreferenceSet holds a member's stated partner preferences. It may be absent
// entirely for a new member; every consumer must degrade to neutral scoring
// when the set (or any field within it) is missing, never to an error.
type PreferenceSet struct {
	UserID string `json:"user_id"`

	// Age and physical ranges. Zero values mean "not stated".
	MinAge      int `json:"min_age,omitempty"`
	MaxAge      int `json:"max_age,omitempty"`
	MinHeightCM int `json:"min_height_cm,omitempty"`
	MaxHeightCM int `json:"max_height_cm,omitempty"`

	// Set-valued preferences. Empty slice means "not stated" (neutral);
	// a slice containing PreferenceAny means "no restriction" (perfect match).
	Religions       []string `json:"religions,omitempty"`
	Ethnicities     []string `json:"ethnicities,omitempty"`
	BodyTypes       []string `json:"body_types,omitempty"`
	EducationLevels []string `json:"education_levels,omitempty"`

	// Children preferences: "yes", "no", "either", "".
	AcceptsChildren string `json:"accepts_children,omitempty"`
	WantsChildren   string `json:"wants_children,omitempty"`

	// Location / pool preference: a location bucket key or PreferenceAny.
	LocationPreference string `json:"location_preference,omitempty"`

	// MatchingPriorities is the ordered list of what matters most to this
	// member. An empty list selects the basic age+location alignment path.
	MatchingPriorities []PriorityKind `json:"matching_priorities,omitempty"`

	// DealBreakers lists priority categories where tolerance expansion must
	// not apply: mismatches score the strict floor instead of the matrix value.
	DealBreakers []PriorityKind `json:"deal_breakers,omitempty"`
}

// IsDealBreaker reports whether the given category is in the deal-breaker set.
func (p *PreferenceSet) IsDealBreaker(kind PriorityKind) bool {
	if p == nil {
		return false
	}
	for _, d := range p.DealBreakers {
		if d == kind {
			return true
		}
	}
	return false
}

// HasAgeRange reports whether both age bounds are stated.
func (p *PreferenceSet) HasAgeRange() bool {
	return p != nil && p.MinAge > 0 && p.MaxAge >= p.MinAge
}

package engine

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// CompatTables holds the tolerance-expansion matrices and the profession
// keyword categorization table. The built-in defaults can be overridden from
// a YAML file (see LoadCompatTables), which lets product tune compatibility
// without a code change.
type CompatTables struct {
	// Religion maps pairs of religion values to a compatibility in [0,1].
	// The table is symmetric; lookups try both orderings.
	Religion map[string]map[string]float64 `yaml:"religion"`

	// BodyType maps pairs of body-type values to a compatibility in [0,1].
	BodyType map[string]map[string]float64 `yaml:"body_type"`

	// ProfessionCategories maps a category name to keywords matched against
	// the free-text profession field (substring, case-insensitive).
	ProfessionCategories map[string][]string `yaml:"profession_categories"`
}

// defaultCompatTables returns the built-in tables.
func defaultCompatTables() *CompatTables {
	return &CompatTables{
		Religion: map[string]map[string]float64{
			"christian": {
				"catholic": 0.8, "protestant": 0.9, "spiritual": 0.6, "traditional": 0.4,
			},
			"catholic": {
				"protestant": 0.7, "spiritual": 0.5,
			},
			"protestant": {
				"spiritual": 0.5,
			},
			"muslim": {
				"spiritual": 0.4, "traditional": 0.4,
			},
			"spiritual": {
				"traditional": 0.6, "agnostic": 0.5,
			},
			"agnostic": {
				"atheist": 0.8, "spiritual": 0.5,
			},
		},
		BodyType: map[string]map[string]float64{
			"slim": {
				"athletic": 0.8, "average": 0.7,
			},
			"athletic": {
				"average": 0.7, "muscular": 0.8,
			},
			"average": {
				"curvy": 0.7, "a-few-extra": 0.6,
			},
			"curvy": {
				"a-few-extra": 0.8, "full-figured": 0.7,
			},
			"full-figured": {
				"a-few-extra": 0.8,
			},
		},
		ProfessionCategories: map[string][]string{
			"healthcare":  {"nurse", "doctor", "dentist", "pharmacist", "therapist", "medic"},
			"technology":  {"engineer", "developer", "software", "data", "it ", "analyst", "tech"},
			"business":    {"manager", "entrepreneur", "founder", "sales", "marketing", "consultant", "account"},
			"finance":     {"banker", "finance", "accountant", "auditor", "investment", "actuar"},
			"education":   {"teacher", "lecturer", "professor", "tutor", "educator"},
			"legal":       {"lawyer", "advocate", "attorney", "paralegal", "judge"},
			"creative":    {"designer", "artist", "musician", "writer", "photographer", "producer"},
			"public":      {"government", "civil servant", "police", "military", "ngo", "diplomat"},
			"trades":      {"driver", "chef", "mechanic", "electrician", "plumber", "builder"},
		},
	}
}

// LoadCompatTables returns the compatibility tables, applying overrides from
// path when it is non-empty. An override file only replaces the sections it
// declares; missing sections keep the defaults. A missing or malformed file
// is an error so a bad deploy is caught at startup rather than silently
// scoring with defaults.
func LoadCompatTables(path string) (*CompatTables, error) {
	tables := defaultCompatTables()
	if path == "" {
		return tables, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compat tables: %w", err)
	}

	var override CompatTables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("compat tables: failed to parse %s: %w", path, err)
	}

	if len(override.Religion) > 0 {
		tables.Religion = override.Religion
	}
	if len(override.BodyType) > 0 {
		tables.BodyType = override.BodyType
	}
	if len(override.ProfessionCategories) > 0 {
		tables.ProfessionCategories = override.ProfessionCategories
	}
	return tables, nil
}

// tolerance looks up the compatibility of two values in a symmetric matrix.
// Identical values score 1.0. Pairs absent from the matrix score the
// mismatch floor: a soft signal must never hard-exclude, so the floor is a
// small non-zero value even for "incompatible" pairs.
func tolerance(matrix map[string]map[string]float64, a, b string, floor float64) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0.5
	}
	if a == b {
		return 1.0
	}
	if row, ok := matrix[a]; ok {
		if v, ok := row[b]; ok {
			return v
		}
	}
	if row, ok := matrix[b]; ok {
		if v, ok := row[a]; ok {
			return v
		}
	}
	return floor
}

// professionCategory maps a free-text profession onto a category key, or ""
// when no keyword matches. Categories are checked in sorted order so the
// result is deterministic when keywords from several categories match.
func (t *CompatTables) professionCategory(profession string) string {
	p := strings.ToLower(profession)
	if p == "" {
		return ""
	}
	categories := make([]string, 0, len(t.ProfessionCategories))
	for category := range t.ProfessionCategories {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		for _, kw := range t.ProfessionCategories[category] {
			if strings.Contains(p, kw) {
				return category
			}
		}
	}
	return ""
}

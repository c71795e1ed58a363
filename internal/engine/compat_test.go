package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestToleranceLookup(t *testing.T) {
	tables := defaultCompatTables()

	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"same_value", "christian", "christian", 1.0},
		{"case_insensitive", "Christian", "CHRISTIAN", 1.0},
		{"known_pair", "christian", "spiritual", 0.6},
		{"reversed_pair", "spiritual", "christian", 0.6},
		{"missing_value", "", "christian", 0.5},
		{"unknown_pair_floor", "christian", "atheist", mismatchFloor},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tolerance(tables.Religion, tc.a, tc.b, mismatchFloor)
			if got != tc.want {
				t.Errorf("tolerance(%q, %q) = %f, want %f", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestProfessionCategory(t *testing.T) {
	tables := defaultCompatTables()

	if got := tables.professionCategory("senior software engineer"); got != "technology" {
		t.Errorf("professionCategory(engineer) = %q, want technology", got)
	}
	if got := tables.professionCategory(""); got != "" {
		t.Errorf("professionCategory(empty) = %q, want empty", got)
	}
	if got := tables.professionCategory("competitive yodeler"); got != "" {
		t.Errorf("professionCategory(unmatched) = %q, want empty", got)
	}
}

func TestProfessionCategoryDeterministic(t *testing.T) {
	tables := defaultCompatTables()

	first := tables.professionCategory("nurse turned teacher")
	for i := 0; i < 20; i++ {
		if got := tables.professionCategory("nurse turned teacher"); got != first {
			t.Fatalf("professionCategory is not deterministic: %q vs %q", got, first)
		}
	}
}

func TestLoadCompatTablesDefault(t *testing.T) {
	tables, err := LoadCompatTables("")
	if err != nil {
		t.Fatalf("LoadCompatTables with no path: %v", err)
	}
	if len(tables.Religion) == 0 || len(tables.ProfessionCategories) == 0 {
		t.Error("default tables are missing built-in entries")
	}
}

func TestLoadCompatTablesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compat.yaml")
	yaml := `religion:
  christian:
    muslim: 0.9
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	tables, err := LoadCompatTables(path)
	if err != nil {
		t.Fatalf("LoadCompatTables with override: %v", err)
	}
	if got := tolerance(tables.Religion, "christian", "muslim", mismatchFloor); got != 0.9 {
		t.Errorf("overridden tolerance = %f, want 0.9", got)
	}
}

func TestLoadCompatTablesMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compat.yaml")
	if err := os.WriteFile(path, []byte("not: [valid: yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadCompatTables(path); err == nil {
		t.Error("expected an error for malformed YAML override")
	}
}

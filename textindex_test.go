package geosearch

import (
	"reflect"
	"strings"
	"testing"
)

func buildTestTextIndex(t *testing.T) *TextIndex {
	t.Helper()
	entities, _, err := ParseDataset(strings.NewReader(dataset(testRows...)))
	if err != nil {
		t.Fatal(err)
	}
	idx := NewTextIndex()
	for _, e := range entities {
		idx.Add(e)
	}
	idx.Finalize()
	return idx
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"São Paulo", []string{"sao", "paulo"}},
		{"Île-de-France", []string{"ile", "de", "france"}},
		{"NEW YORK", []string{"new", "york"}},
		{"  ", nil},
		{"", nil},
		{"Zürich", []string{"zurich"}},
		{"San José, CR", []string{"san", "jose", "cr"}},
	}
	for _, tt := range tests {
		if got := tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("tokenize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSearchDiacriticInsensitive(t *testing.T) {
	idx := buildTestTextIndex(t)

	// Query without diacritics must rank the accented record first.
	hits := idx.Search("Sao Paulo", 10)
	if len(hits) == 0 {
		t.Fatal("no hits for Sao Paulo")
	}
	if hits[0].ID != 3448439 {
		t.Errorf("top hit = %d, want São Paulo (3448439)", hits[0].ID)
	}

	// And the accented query works the same way.
	accented := idx.Search("São Paulo", 10)
	if len(accented) == 0 || accented[0].ID != 3448439 {
		t.Errorf("accented query top hit = %v, want 3448439", accented)
	}
}

func TestSearchFuzzyTypos(t *testing.T) {
	idx := buildTestTextIndex(t)
	tests := []struct {
		query  string
		wantID int
	}{
		{"Londn", 2643743},  // missing 'o', distance 1
		{"Lnodon", 2643743}, // transposition, distance 2
		{"Tokio", 1850144},  // alternate spelling is even indexed
		{"Austn", 4671654},  // missing 'i'
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			hits := idx.Search(tt.query, 5)
			if len(hits) == 0 {
				t.Fatalf("no hits for %q", tt.query)
			}
			if hits[0].ID != tt.wantID {
				t.Errorf("top hit = %d, want %d", hits[0].ID, tt.wantID)
			}
		})
	}
}

func TestSearchShortTokenNoFuzzy(t *testing.T) {
	idx := NewTextIndex()
	idx.Add(Entity{ID: 1, Name: "Po"})
	idx.Finalize()

	// Two-rune queries are below the fuzzy threshold: "Pa" must not
	// reach "Po" through edit distance.
	if hits := idx.Search("Pa", 5); len(hits) != 0 {
		t.Errorf("short token fuzzy-matched: %v", hits)
	}
	// Exact still works.
	if hits := idx.Search("Po", 5); len(hits) != 1 {
		t.Errorf("exact short token: %v", hits)
	}
}

func TestSearchPrefix(t *testing.T) {
	idx := buildTestTextIndex(t)
	hits := idx.Search("Lond", 5)
	if len(hits) == 0 || hits[0].ID != 2643743 {
		t.Errorf("prefix query: %v, want London first", hits)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	idx := buildTestTextIndex(t)
	for _, q := range []string{"", "   ", "\t\n", ",,,"} {
		if hits := idx.Search(q, 5); len(hits) != 0 {
			t.Errorf("Search(%q) = %v, want empty", q, hits)
		}
	}
}

func TestSearchExactBeatsFuzzy(t *testing.T) {
	idx := NewTextIndex()
	idx.Add(Entity{ID: 1, Name: "Paris", Population: 10})
	idx.Add(Entity{ID: 2, Name: "Parys", Population: 1_000_000})
	idx.Finalize()

	hits := idx.Search("Paris", 5)
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	// The fuzzy match has a far larger population but must not outrank
	// the exact match.
	if hits[0].ID != 1 {
		t.Errorf("top hit = %d, want exact match 1", hits[0].ID)
	}
}

func TestSearchPopulationTieBreak(t *testing.T) {
	idx := NewTextIndex()
	idx.Add(Entity{ID: 7, Name: "Springfield", Population: 5000})
	idx.Add(Entity{ID: 3, Name: "Springfield", Population: 150000})
	idx.Add(Entity{ID: 9, Name: "Springfield", Population: 150000})
	idx.Finalize()

	hits := idx.Search("Springfield", 5)
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	if hits[0].ID != 3 || hits[1].ID != 9 || hits[2].ID != 7 {
		t.Errorf("order = %v, want population desc then id asc (3, 9, 7)", hits)
	}
}

func TestSearchNameWeightBeatsAlternate(t *testing.T) {
	idx := NewTextIndex()
	idx.Add(Entity{ID: 1, Name: "Kyoto", Population: 1_000_000})
	idx.Add(Entity{ID: 2, Name: "Somewhere", AlternateNames: []string{"Kyoto"}, Population: 9_000_000})
	idx.Finalize()

	hits := idx.Search("Kyoto", 5)
	if len(hits) != 2 || hits[0].ID != 1 {
		t.Errorf("order = %v, want primary-name match first", hits)
	}
}

func TestSearchIdempotent(t *testing.T) {
	idx := buildTestTextIndex(t)
	first := idx.Search("sao", 10)
	for i := 0; i < 5; i++ {
		if got := idx.Search("sao", 10); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestSearchLimit(t *testing.T) {
	idx := buildTestTextIndex(t)
	hits := idx.Search("the Line", 1)
	if len(hits) > 1 {
		t.Errorf("limit ignored: %d hits", len(hits))
	}
}

package db

import (
	"testing"
)

func TestDeriveDisplayFields_FallbackChain(t *testing.T) {
	cases := []struct {
		name       string
		payload    string
		wantTitle  string
		wantYear   int
		wantNoYear bool
		wantPoster string
	}{
		{
			name:      "primary fields",
			payload:   `{"metadata": {"primaryTitle": "Inception", "startYear": 2010, "poster_url": "https://img/p.jpg"}}`,
			wantTitle: "Inception",
			wantYear:  2010, wantPoster: "https://img/p.jpg",
		},
		{
			name:      "nested poster fallback",
			payload:   `{"metadata": {"primaryTitle": "Inception", "startYear": 2010, "primaryImage": {"url": "https://img/n.jpg"}}}`,
			wantTitle: "Inception",
			wantYear:  2010, wantPoster: "https://img/n.jpg",
		},
		{
			name:      "root title and metadata year fallback",
			payload:   `{"title": "Inception", "metadata": {"year": 2010}}`,
			wantTitle: "Inception",
			wantYear:  2010,
		},
		{
			name:       "empty payload is total",
			payload:    `{}`,
			wantNoYear: true,
		},
		{
			name:       "wrong types are skipped",
			payload:    `{"metadata": {"primaryTitle": 42, "startYear": "2010"}, "title": "Inception"}`,
			wantTitle:  "Inception",
			wantNoYear: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			title, year, poster := deriveDisplayFields([]byte(tc.payload))

			if title != tc.wantTitle {
				t.Errorf("title = %q, want %q", title, tc.wantTitle)
			}

			if tc.wantNoYear {
				if year != nil {
					t.Errorf("year = %d, want nil", *year)
				}
			} else if year == nil || *year != tc.wantYear {
				t.Errorf("year = %v, want %d", year, tc.wantYear)
			}

			if poster != tc.wantPoster {
				t.Errorf("poster = %q, want %q", poster, tc.wantPoster)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate() = %q, want unchanged", got)
	}

	if got := Truncate("0123456789abc", 10); got != "0123456789" {
		t.Errorf("Truncate() = %q", got)
	}

	// Never splits a multi-byte rune.
	got := Truncate("ααααα", 7)
	if len(got) > 7 {
		t.Errorf("Truncate() exceeded bound: %d bytes", len(got))
	}

	for _, r := range got {
		if r != 'α' {
			t.Errorf("Truncate() produced invalid rune %q", r)
		}
	}
}

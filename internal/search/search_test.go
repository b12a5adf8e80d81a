package search

import (
	"context"
	"testing"

	"turbopix/internal/store"
)

func TestIsStructured(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"single type filter", "type:video", true},
		{"single favorite filter", "is_favorite:true", true},
		{"multiple filters", "type:video is_favorite:true", true},
		{"year and month", "year:2024 month:07", true},
		{"free text", "sunset over the lake", false},
		{"mixed filter and text", "type:video sunset", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isStructured(tt.query); got != tt.want {
				t.Errorf("isStructured(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestParseFilters(t *testing.T) {
	f := parseFilters("type:video is_favorite:true year:2024 month:7")

	if f.Type == nil || *f.Type != store.MediaTypeVideo {
		t.Errorf("expected type=video, got %+v", f.Type)
	}
	if f.IsFavorite == nil || !*f.IsFavorite {
		t.Errorf("expected is_favorite=true, got %+v", f.IsFavorite)
	}
	if f.Year == nil || *f.Year != 2024 {
		t.Errorf("expected year=2024, got %+v", f.Year)
	}
	if f.Month == nil || *f.Month != 7 {
		t.Errorf("expected month=7, got %+v", f.Month)
	}
}

func TestParseFiltersIgnoresMalformedTokens(t *testing.T) {
	f := parseFilters("type:video year:not-a-number")
	if f.Type == nil {
		t.Error("expected type to still be parsed")
	}
	if f.Year != nil {
		t.Errorf("expected malformed year to be skipped, got %+v", f.Year)
	}
}

type fakeEncoder struct {
	vec []float32
	err error
}

func (f fakeEncoder) EncodeText(string) ([]float32, error) { return f.vec, f.err }

func TestSearchShortQueryReturnsEmptyWithoutEncoding(t *testing.T) {
	e := New(nil, fakeEncoder{})
	results, err := e.Search(context.Background(), "a", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for a too-short query, got %d", len(results))
	}
}

func TestSearchSemanticWithNilEncoderReturnsEmpty(t *testing.T) {
	e := New(nil, nil)
	results, err := e.Search(context.Background(), "a tall mountain range", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results with no encoder configured, got %+v", results)
	}
}

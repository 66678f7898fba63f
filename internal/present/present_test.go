package present

import (
	"testing"

	"github.com/hyperjump/boutique/internal/models"
	"github.com/hyperjump/boutique/internal/session"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{0, "0,00\u00a0€"},
		{9.5, "9,50\u00a0€"},
		{999.999, "1\u202f000,00\u00a0€"},
		{2500, "2\u202f500,00\u00a0€"},
		{1234567.891, "1\u202f234\u202f567,89\u00a0€"},
		{100000, "100\u202f000,00\u00a0€"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.price); got != tt.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", tt.price, got, tt.want)
		}
	}
}

func TestFormatScore(t *testing.T) {
	tests := []struct {
		name string
		p    models.ProductResult
		want string
	}{
		{"score", models.ProductResult{Score: models.Float64(0.95)}, "95%"},
		{"similarity", models.ProductResult{Similarity: models.Float64(0.876)}, "88%"},
		{"score preferred", models.ProductResult{Score: models.Float64(0.5), Similarity: models.Float64(0.9)}, "50%"},
		{"rounds half up", models.ProductResult{Score: models.Float64(0.125)}, "13%"},
		{"full match", models.ProductResult{Similarity: models.Float64(1)}, "100%"},
		{"neither", models.ProductResult{}, NotAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatScore(&tt.p); got != tt.want {
				t.Errorf("FormatScore = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImageURL(t *testing.T) {
	if got := ImageURL(&models.ProductResult{ImageURL: "https://cdn.example.com/a.jpg"}); got != "https://cdn.example.com/a.jpg" {
		t.Errorf("got %q", got)
	}
	if got := ImageURL(&models.ProductResult{ImageURL: " "}); got != PlaceholderImageURL {
		t.Errorf("got %q, want placeholder", got)
	}
}

func TestRender(t *testing.T) {
	results := []models.ProductResult{
		{ProductID: "LUX-002", Name: "Montre", Price: 12000, Score: models.Float64(0.9)},
		{ProductID: "LUX-001", Name: "Sac", Price: 2500, Description: "Cuir italien"},
	}
	tests := []struct {
		name     string
		surface  models.SearchType
		state    session.State
		wantKind ViewKind
		wantMsg  string
	}{
		{"idle", models.SearchTypeKeyword, session.State{}, ViewIdle, ""},
		{"loading", models.SearchTypeKeyword, session.State{Phase: session.Loading, HasSearched: true}, ViewLoading, "Searching..."},
		{"loading keeps stale results hidden", models.SearchTypeImage, session.State{Phase: session.Loading, HasSearched: true, Results: results}, ViewLoading, "Analyzing image..."},
		{"error", models.SearchTypeKeyword, session.State{Phase: session.Failed, HasSearched: true, Error: "boom"}, ViewError, "boom"},
		{"error over stale results", models.SearchTypeKeyword, session.State{Phase: session.Failed, HasSearched: true, Error: "boom", Results: results}, ViewError, "boom"},
		{"empty", models.SearchTypeKeyword, session.State{Phase: session.Success, HasSearched: true, Results: []models.ProductResult{}}, ViewEmpty, "No results found"},
		{"empty image", models.SearchTypeImage, session.State{Phase: session.Success, HasSearched: true}, ViewEmpty, "No similar products found"},
		{"results", models.SearchTypeKeyword, session.State{Phase: session.Success, HasSearched: true, Results: results}, ViewResults, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Render(tt.surface, tt.state)
			if v.Kind != tt.wantKind || v.Message != tt.wantMsg {
				t.Errorf("Render = (%s, %q), want (%s, %q)", v.Kind, v.Message, tt.wantKind, tt.wantMsg)
			}
			if v.Kind != ViewResults && len(v.Cards) != 0 {
				t.Errorf("cards rendered for %s view", v.Kind)
			}
		})
	}
}

func TestRender_ResultsKeepOrder(t *testing.T) {
	st := session.State{Phase: session.Success, HasSearched: true, Results: []models.ProductResult{
		{ProductID: "C", Score: models.Float64(0.1)},
		{ProductID: "A", Score: models.Float64(0.9)},
		{ProductID: "B", Similarity: models.Float64(0.5)},
	}}
	v := Render(models.SearchTypeKeyword, st)
	if v.Heading != "3 results found" {
		t.Errorf("Heading = %q", v.Heading)
	}
	want := []string{"C", "A", "B"}
	for i, id := range want {
		if v.Cards[i].ProductID != id || v.Cards[i].Rank != i+1 {
			t.Errorf("card %d = %+v, want %s", i, v.Cards[i], id)
		}
	}
	if v.Cards[1].Badge != "90%" || v.Cards[2].Badge != "50%" {
		t.Errorf("badges = %q %q", v.Cards[1].Badge, v.Cards[2].Badge)
	}
	if v.Cards[0].ImageURL != PlaceholderImageURL || v.Cards[0].FallbackImageURL != PlaceholderImageURL {
		t.Errorf("image fallback not applied: %+v", v.Cards[0])
	}
}

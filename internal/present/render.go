// Package present maps session state to what a search surface displays.
package present

import (
	"fmt"

	"github.com/hyperjump/boutique/internal/models"
	"github.com/hyperjump/boutique/internal/session"
)

// ViewKind is the single condition a surface displays.
type ViewKind string

const (
	ViewIdle    ViewKind = "idle"
	ViewLoading ViewKind = "loading"
	ViewError   ViewKind = "error"
	ViewEmpty   ViewKind = "empty"
	ViewResults ViewKind = "results"
)

// Card is one formatted product, in backend rank order.
type Card struct {
	Rank             int    `json:"rank"`
	ProductID        string `json:"product_id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	Price            string `json:"price"`
	Badge            string `json:"badge"`
	ImageURL         string `json:"image_url"`
	FallbackImageURL string `json:"fallback_image_url"`
}

// View is the renderable output for a surface.
type View struct {
	Kind    ViewKind          `json:"kind"`
	Surface models.SearchType `json:"surface"`
	Message string            `json:"message,omitempty"`
	Heading string            `json:"heading,omitempty"`
	Cards   []Card            `json:"cards,omitempty"`
}

type surfaceText struct {
	loading string
	empty   string
	heading string
}

var texts = map[models.SearchType]surfaceText{
	models.SearchTypeKeyword: {"Searching...", "No results found", "%d results found"},
	models.SearchTypeImage:   {"Analyzing image...", "No similar products found", "%d similar products"},
}

// Render is a pure function of the surface kind and its state.
func Render(surface models.SearchType, st session.State) View {
	txt, ok := texts[surface]
	if !ok {
		txt = texts[models.SearchTypeKeyword]
	}
	v := View{Surface: surface}
	switch {
	case st.IsLoading():
		v.Kind = ViewLoading
		v.Message = txt.loading
	case st.Error != "":
		v.Kind = ViewError
		v.Message = st.Error
	case st.HasSearched && len(st.Results) == 0:
		v.Kind = ViewEmpty
		v.Message = txt.empty
	case len(st.Results) > 0:
		v.Kind = ViewResults
		v.Heading = fmt.Sprintf(txt.heading, len(st.Results))
		v.Cards = Cards(st.Results)
	default:
		v.Kind = ViewIdle
	}
	return v
}

// Cards formats results independently of one another, keeping their order.
func Cards(results []models.ProductResult) []Card {
	cards := make([]Card, len(results))
	for i := range results {
		p := &results[i]
		cards[i] = Card{
			Rank:             i + 1,
			ProductID:        p.ProductID,
			Name:             p.Name,
			Description:      p.Description,
			Price:            FormatPrice(p.Price),
			Badge:            FormatScore(p),
			ImageURL:         ImageURL(p),
			FallbackImageURL: PlaceholderImageURL,
		}
	}
	return cards
}

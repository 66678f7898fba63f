package models

// SearchType tags which modality produced a SearchResponse.
type SearchType string

const (
	SearchTypeKeyword SearchType = "keyword"
	SearchTypeImage   SearchType = "image"
)

// ProductResult represents a single ranked product hit.
// At most one of Score and Similarity is expected to be set; nil means absent.
type ProductResult struct {
	ProductID   string   `json:"product_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	ImageURL    string   `json:"image_url"`
	Score       *float64 `json:"score,omitempty"`
	Similarity  *float64 `json:"similarity,omitempty"`
}

// Relevance returns the score if present, otherwise the similarity.
// ok is false when neither is set.
func (p *ProductResult) Relevance() (value float64, ok bool) {
	if p.Score != nil {
		return *p.Score, true
	}
	if p.Similarity != nil {
		return *p.Similarity, true
	}
	return 0, false
}

// SearchResponse is the backend envelope for every search operation.
// Results are in rank order; clients must not re-sort them.
type SearchResponse struct {
	Success      bool            `json:"success"`
	Results      []ProductResult `json:"results"`
	TotalResults int             `json:"total_results"`
	SearchType   SearchType      `json:"search_type"`
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	ModelsLoaded   bool   `json:"models_loaded"`
	RedisConnected bool   `json:"redis_connected"`
}

// ErrorResponse is the structured error body the backend returns on non-2xx.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Float64 returns a pointer to v. Handy for building results with a score.
func Float64(v float64) *float64 {
	return &v
}

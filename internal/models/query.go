// Package models defines the request and response shapes of the product search API.
package models

import (
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	// DefaultTopK is used when a caller passes a non-positive top_k.
	DefaultTopK = 10
	// MaxTopK is the largest top_k the backend accepts.
	MaxTopK = 50
)

// KeywordSearchRequest is the body of POST /search/keyword.
type KeywordSearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Validate trims the query and normalizes TopK.
// Returns an error if the query is blank or TopK is above MaxTopK.
func (r *KeywordSearchRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return errors.New("query cannot be empty")
	}
	return normalizeTopK(&r.TopK)
}

// ImageURLSearchRequest is the body of POST /search/image/url.
type ImageURLSearchRequest struct {
	ImageURL string `json:"image_url"`
	TopK     int    `json:"top_k"`
}

// Validate trims the URL and normalizes TopK.
func (r *ImageURLSearchRequest) Validate() error {
	r.ImageURL = strings.TrimSpace(r.ImageURL)
	if r.ImageURL == "" {
		return errors.New("image_url cannot be empty")
	}
	return normalizeTopK(&r.TopK)
}

// NormalizeTopK returns DefaultTopK for non-positive values and k otherwise.
func NormalizeTopK(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	return k
}

func normalizeTopK(k *int) error {
	*k = NormalizeTopK(*k)
	if *k > MaxTopK {
		return errors.Newf("top_k must be between 1 and %d, got %d", MaxTopK, *k)
	}
	return nil
}

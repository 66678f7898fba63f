package devbackend

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hyperjump/boutique/internal/ingest"
	"github.com/hyperjump/boutique/internal/models"
	"go.uber.org/zap"
)

// maxUploadBytes bounds the multipart body of an image upload.
const maxUploadBytes = 10 << 20

type keywordBody struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k"`
}

type imageURLBody struct {
	ImageURL string `json:"image_url"`
	TopK     *int   `json:"top_k"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, models.HealthResponse{
		Status:         "healthy",
		Version:        Version,
		ModelsLoaded:   len(s.catalog.Products) > 0,
		RedisConnected: false,
	})
}

func (s *Server) handleKeywordSearch(w http.ResponseWriter, r *http.Request) {
	var body keywordBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	topK, err := checkTopK(body.TopK)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	req := models.KeywordSearchRequest{Query: body.Query, TopK: topK}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Debug("keyword search request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))

	hits, err := s.index.search(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.logger.Error("keyword search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	results := make([]models.ProductResult, 0, len(hits))
	for _, h := range hits {
		p, ok := s.byID[h.ID]
		if !ok {
			continue
		}
		score := 0.0
		if hits[0].Score > 0 {
			score = roundScore(h.Score / hits[0].Score)
		}
		res := productResult(p)
		res.Score = models.Float64(score)
		results = append(results, res)
	}
	s.respondJSON(w, http.StatusOK, searchResponse(results, models.SearchTypeKeyword))
}

func (s *Server) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	topK, err := parseTopKParam(r.URL.Query().Get("top_k"))
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		data, err := io.ReadAll(file)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "failed to read file")
			return
		}
		contentType = ingest.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		s.respondError(w, http.StatusBadRequest, "file must be an image")
		return
	}
	s.logger.Debug("image upload request",
		zap.String("filename", header.Filename),
		zap.String("content_type", contentType),
		zap.Int64("size", header.Size),
		zap.Int("top_k", topK))
	s.respondJSON(w, http.StatusOK, searchResponse(s.similarProducts(topK), models.SearchTypeImage))
}

func (s *Server) handleImageURL(w http.ResponseWriter, r *http.Request) {
	var body imageURLBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	topK, err := checkTopK(body.TopK)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	req := models.ImageURLSearchRequest{ImageURL: body.ImageURL, TopK: topK}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, "image_url is required")
		return
	}
	s.logger.Debug("image url request", zap.String("image_url", req.ImageURL), zap.Int("top_k", req.TopK))
	s.respondJSON(w, http.StatusOK, searchResponse(s.similarProducts(req.TopK), models.SearchTypeImage))
}

// similarProducts ranks the catalog in order with a fixed decreasing similarity.
func (s *Server) similarProducts(topK int) []models.ProductResult {
	n := min(topK, len(s.catalog.Products))
	results := make([]models.ProductResult, 0, n)
	for i := 0; i < n; i++ {
		res := productResult(&s.catalog.Products[i])
		res.Similarity = models.Float64(roundScore(math.Max(0, 0.98-0.05*float64(i))))
		results = append(results, res)
	}
	return results
}

// checkTopK returns the default for an absent top_k and rejects values outside 1..MaxTopK.
func checkTopK(k *int) (int, error) {
	if k == nil {
		return models.DefaultTopK, nil
	}
	if *k < 1 || *k > models.MaxTopK {
		return 0, errors.Newf("top_k must be between 1 and %d", models.MaxTopK)
	}
	return *k, nil
}

func parseTopKParam(raw string) (int, error) {
	if raw == "" {
		return models.DefaultTopK, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("top_k must be an integer")
	}
	return checkTopK(&k)
}

func productResult(p *Product) models.ProductResult {
	return models.ProductResult{
		ProductID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
	}
}

func searchResponse(results []models.ProductResult, st models.SearchType) models.SearchResponse {
	return models.SearchResponse{
		Success:      true,
		Results:      results,
		TotalResults: len(results),
		SearchType:   st,
	}
}

func roundScore(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Detail: message})
}

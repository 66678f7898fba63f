package devbackend

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/hyperjump/boutique/internal/models"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

func newTestServer(t *testing.T, catalog *Catalog) *httptest.Server {
	t.Helper()
	s, err := NewServer(catalog, nil, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = s.Close()
	})
	return ts
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func uploadBody(t *testing.T, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="upload"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(data)
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		catalog    *Catalog
		wantLoaded bool
	}{
		{"sample catalog", nil, true},
		{"empty catalog", &Catalog{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.catalog)
			resp, err := http.Get(ts.URL + "/api/v1/health")
			if err != nil {
				t.Fatal(err)
			}
			var h models.HealthResponse
			decode(t, resp, &h)
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status: got %d", resp.StatusCode)
			}
			if h.Status != "healthy" || h.Version != Version || h.ModelsLoaded != tt.wantLoaded || h.RedisConnected {
				t.Errorf("health = %+v", h)
			}
		})
	}
}

func TestHandleKeywordSearch(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := postJSON(t, ts.URL+"/api/v1/search/keyword", `{"query":"sac","top_k":12}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	var out models.SearchResponse
	decode(t, resp, &out)
	if !out.Success || out.SearchType != models.SearchTypeKeyword {
		t.Errorf("envelope = %+v", out)
	}
	if out.TotalResults != len(out.Results) || len(out.Results) == 0 {
		t.Fatalf("got %d results, total %d", len(out.Results), out.TotalResults)
	}
	if out.Results[0].Score == nil || *out.Results[0].Score != 1 {
		t.Errorf("top score = %v, want 1", out.Results[0].Score)
	}
	prev := 2.0
	for _, r := range out.Results {
		if r.Score == nil || r.Similarity != nil {
			t.Fatalf("result %s: score=%v similarity=%v", r.ProductID, r.Score, r.Similarity)
		}
		if *r.Score > prev || *r.Score < 0 {
			t.Errorf("scores not descending in [0,1]: %v after %v", *r.Score, prev)
		}
		prev = *r.Score
		if r.ProductID == "LUX-003" {
			t.Errorf("perfume matched query %q", "sac")
		}
	}
}

func TestHandleKeywordSearch_NoMatch(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := postJSON(t, ts.URL+"/api/v1/search/keyword", `{"query":"xyzzy"}`)
	var out models.SearchResponse
	decode(t, resp, &out)
	if resp.StatusCode != http.StatusOK || !out.Success || len(out.Results) != 0 || out.TotalResults != 0 {
		t.Errorf("status %d, out = %+v", resp.StatusCode, out)
	}
}

func TestHandleKeywordSearch_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"top_k zero", `{"query":"sac","top_k":0}`},
		{"top_k too large", `{"query":"sac","top_k":51}`},
		{"empty query", `{"query":"   "}`},
		{"malformed", `{"query":`},
	}
	ts := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/v1/search/keyword", tt.body)
			var e models.ErrorResponse
			decode(t, resp, &e)
			if resp.StatusCode != http.StatusUnprocessableEntity {
				t.Errorf("status: got %d, want 422", resp.StatusCode)
			}
			if e.Detail == "" {
				t.Error("expected detail")
			}
		})
	}
}

func TestHandleImageUpload(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		data        []byte
		wantStatus  int
		wantDetail  string
	}{
		{"declared jpeg", "image/jpeg", jpegBytes, http.StatusOK, ""},
		{"sniffed jpeg", "", jpegBytes, http.StatusOK, ""},
		{"text file", "text/plain", []byte("hello"), http.StatusBadRequest, "file must be an image"},
		{"sniffed text", "application/octet-stream", []byte("hello"), http.StatusBadRequest, "file must be an image"},
	}
	ts := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := uploadBody(t, tt.contentType, tt.data)
			resp, err := http.Post(ts.URL+"/api/v1/search/image/upload?top_k=3", ct, body)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantDetail != "" {
				var e models.ErrorResponse
				decode(t, resp, &e)
				if e.Detail != tt.wantDetail {
					t.Errorf("detail = %q", e.Detail)
				}
				return
			}
			var out models.SearchResponse
			decode(t, resp, &out)
			if out.SearchType != models.SearchTypeImage || len(out.Results) != 3 {
				t.Fatalf("out = %+v", out)
			}
			want := []float64{0.98, 0.93, 0.88}
			for i, r := range out.Results {
				if r.Similarity == nil || *r.Similarity != want[i] || r.Score != nil {
					t.Errorf("result %d similarity = %v score = %v", i, r.Similarity, r.Score)
				}
			}
		})
	}
}

func TestHandleImageUpload_BadTopK(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, q := range []string{"0", "51", "abc"} {
		body, ct := uploadBody(t, "image/jpeg", jpegBytes)
		resp, err := http.Post(ts.URL+"/api/v1/search/image/upload?top_k="+q, ct, body)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("top_k=%s: status %d, want 422", q, resp.StatusCode)
		}
	}
}

func TestHandleImageURL(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/v1/search/image/url", `{"image_url":"https://example.com/bag.jpg","top_k":50}`)
	var out models.SearchResponse
	decode(t, resp, &out)
	if resp.StatusCode != http.StatusOK || out.SearchType != models.SearchTypeImage {
		t.Fatalf("status %d, out = %+v", resp.StatusCode, out)
	}
	if len(out.Results) != len(SampleCatalog().Products) {
		t.Errorf("got %d results, want whole catalog", len(out.Results))
	}

	resp = postJSON(t, ts.URL+"/api/v1/search/image/url", `{"image_url":""}`)
	var e models.ErrorResponse
	decode(t, resp, &e)
	if resp.StatusCode != http.StatusBadRequest || e.Detail == "" {
		t.Errorf("empty url: status %d detail %q", resp.StatusCode, e.Detail)
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	good := write("good.yaml", `products:
  - id: A-1
    name: Ceinture Cuir
    description: Ceinture en cuir noir
    price: 350
    image_url: https://example.com/a1.jpg
    tags: [cuir]
  - id: A-2
    name: Lunettes
    price: 410.5
`)
	c, err := LoadCatalog(good)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(c.Products) != 2 || c.Products[0].ID != "A-1" || c.Products[1].Price != 410.5 {
		t.Errorf("catalog = %+v", c)
	}

	tests := []struct {
		name    string
		content string
	}{
		{"missing id", "products:\n  - name: X\n"},
		{"duplicate id", "products:\n  - {id: A, name: X}\n  - {id: A, name: Y}\n"},
		{"bad yaml", "products: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadCatalog(write(tt.name+".yaml", tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadCatalog(filepath.Join(dir, "missing.yaml")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing catalog: expected fs.ErrNotExist, got %v", err)
	}
}

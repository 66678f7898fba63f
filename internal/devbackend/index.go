package devbackend

import (
	"context"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/cockroachdb/errors"
)

// keywordIndex is an in-memory Bleve index over the catalog.
type keywordIndex struct {
	index bleve.Index
}

type indexedProduct struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type keywordHit struct {
	ID    string
	Score float64
}

func newKeywordIndex(c *Catalog) (*keywordIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so "sac" only matches "sac".
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	docMapping.AddFieldMappingsAt("tags", textFieldMapping)
	im.AddDocumentMapping("product", docMapping)
	im.DefaultType = "product"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Bleve index")
	}
	if len(c.Products) == 0 {
		return &keywordIndex{index: index}, nil
	}
	batch := index.NewBatch()
	for _, p := range c.Products {
		if err := batch.Index(p.ID, indexedProduct{Name: p.Name, Description: p.Description, Tags: p.Tags}); err != nil {
			_ = index.Close()
			return nil, errors.Wrapf(err, "failed to index product %s", p.ID)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, errors.Wrap(err, "failed to index catalog")
	}
	return &keywordIndex{index: index}, nil
}

// search runs a match query over all fields and returns up to limit hits, best first.
func (k *keywordIndex) search(ctx context.Context, query string, limit int) ([]keywordHit, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	res, err := k.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "bleve search failed")
	}
	hits := make([]keywordHit, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = keywordHit{ID: h.ID, Score: h.Score}
	}
	return hits, nil
}

func (k *keywordIndex) Close() error {
	return k.index.Close()
}

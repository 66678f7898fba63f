// Package devbackend is a local stand-in for the product search API, for development and tests.
package devbackend

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Product is a catalog entry served by the dev backend.
type Product struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Price       float64  `yaml:"price"`
	ImageURL    string   `yaml:"image_url"`
	Tags        []string `yaml:"tags"`
}

// Catalog is the ordered product list. Image searches rank in catalog order.
type Catalog struct {
	Products []Product `yaml:"products"`
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read catalog")
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "failed to parse catalog")
	}
	seen := make(map[string]bool, len(c.Products))
	for i, p := range c.Products {
		if p.ID == "" || p.Name == "" {
			return nil, errors.Newf("catalog product %d: id and name are required", i)
		}
		if seen[p.ID] {
			return nil, errors.Newf("catalog product %d: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
	}
	return &c, nil
}

// SampleCatalog returns the built-in catalog used when no catalog file is configured.
func SampleCatalog() *Catalog {
	return &Catalog{Products: []Product{
		{ID: "LUX-001", Name: "Sac à Main Classique", Description: "Sac à main en cuir italien premium, finitions dorées", Price: 2500, ImageURL: "https://via.placeholder.com/300x300?text=Product+1", Tags: []string{"sac", "cuir", "noir"}},
		{ID: "LUX-002", Name: "Montre Suisse Automatique", Description: "Montre automatique en acier, bracelet cuir", Price: 8900, ImageURL: "https://via.placeholder.com/300x300?text=Product+2", Tags: []string{"montre", "suisse"}},
		{ID: "LUX-003", Name: "Parfum Floral", Description: "Eau de parfum aux notes de rose et de jasmin", Price: 180, ImageURL: "https://via.placeholder.com/300x300?text=Product+3", Tags: []string{"parfum", "floral"}},
		{ID: "LUX-004", Name: "Pochette de Soirée", Description: "Petit sac en satin brodé", Price: 1200, ImageURL: "https://via.placeholder.com/300x300?text=Product+4", Tags: []string{"sac", "soirée"}},
		{ID: "LUX-005", Name: "Foulard en Soie", Description: "Carré de soie imprimé à la main", Price: 420, ImageURL: "https://via.placeholder.com/300x300?text=Product+5", Tags: []string{"soie", "foulard"}},
		{ID: "LUX-006", Name: "Sac Cabas Cuir Noir", Description: "Grand sac cabas en cuir grainé noir", Price: 3100, ImageURL: "https://via.placeholder.com/300x300?text=Product+6", Tags: []string{"sac", "cuir", "noir"}},
	}}
}

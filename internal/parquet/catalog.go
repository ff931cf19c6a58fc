package parquet

import (
	"fmt"
	"strings"

	"github.com/tmarchal/climatekit/internal/models"
	"github.com/tmarchal/climatekit/internal/validation"
)

// Generator builds URL catalogs from a base URL and a period table.
type Generator struct {
	baseURL string
	table   Table
}

// NewGenerator creates a Generator. baseURL falls back to DefaultBaseURL.
func NewGenerator(baseURL string, table Table) *Generator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Generator{baseURL: baseURL, table: table}
}

// Catalog returns the raw and prepared file URLs covering [startYear, endYear].
// File names follow the documented convention: quotidien.{period}.parquet and
// quotidien.{period}.prepared.parquet.
func (g *Generator) Catalog(startYear, endYear int) (models.URLCatalog, error) {
	if err := validation.ValidateYearRange(startYear, endYear); err != nil {
		return models.URLCatalog{}, err
	}

	periods := g.table.PeriodsFor(startYear, endYear)
	cat := models.URLCatalog{
		StartYear: startYear,
		EndYear:   endYear,
		Periods:   periods,
		Raw:       make([]string, 0, len(periods)),
		Prepared:  make([]string, 0, len(periods)),
	}
	for _, p := range periods {
		cat.Raw = append(cat.Raw, fmt.Sprintf("%squotidien.%s.parquet", g.baseURL, p))
		cat.Prepared = append(cat.Prepared, fmt.Sprintf("%squotidien.%s.prepared.parquet", g.baseURL, p))
	}
	return cat, nil
}

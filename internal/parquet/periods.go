// Package parquet generates download URLs for the Meteo-France daily
// climatological Parquet files published on data.gouv.fr. The period labels
// mirror the provider's historical file-naming scheme; they are a versioned
// external contract, kept as data rather than derived logic.
package parquet

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the object-storage prefix of the published files.
const DefaultBaseURL = "https://object.files.data.gouv.fr/meteofrance-mistermeteo/"

// PeriodGroup is one block of the provider's naming scheme. The group's
// labels are emitted together whenever the requested year range touches the
// group's gate: start <= MaxStart and end >= MinEnd. The provider republishes
// whole blocks, so partial overlap still requires every file in the block.
type PeriodGroup struct {
	Name     string   `yaml:"name"`
	MaxStart int      `yaml:"max_start"` // gate: requested start year must be <= this
	MinEnd   int      `yaml:"min_end"`   // gate: requested end year must be >= this (0 = no bound)
	Labels   []string `yaml:"labels"`
}

// Table is the versioned period-label contract.
type Table struct {
	Version string        `yaml:"version"`
	Groups  []PeriodGroup `yaml:"groups"`
}

// DefaultTable reflects the provider's scheme as of the 2024-2025 publication
// cycle: an open-ended historical block, two decade blocks, and frequently
// refreshed "latest" files.
func DefaultTable() Table {
	return Table{
		Version: "2025-01",
		Groups: []PeriodGroup{
			{
				Name:     "previous",
				MaxStart: 1949,
				MinEnd:   0,
				Labels:   []string{"previous-1950"},
			},
			{
				Name:     "historical",
				MaxStart: 1989,
				MinEnd:   1950,
				Labels:   []string{"1950-1959", "1960-1969", "1970-1979", "1980-1989"},
			},
			{
				Name:     "modern",
				MaxStart: 2021,
				MinEnd:   1990,
				Labels:   []string{"1990-1999", "2000-2009", "2010-2019", "2020-2021"},
			},
			{
				Name:     "latest",
				MaxStart: 0, // gated on end year only
				MinEnd:   2022,
				Labels:   []string{"latest-2022-2023", "latest-2023-2024", "latest-2024-2025"},
			},
		},
	}
}

// LoadTable reads a period table from a YAML file, for when the provider
// revises the scheme ahead of a release of this tool.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read period table: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("parse period table: %w", err)
	}
	if len(t.Groups) == 0 {
		return Table{}, fmt.Errorf("period table %s has no groups", path)
	}
	for _, g := range t.Groups {
		if len(g.Labels) == 0 {
			return Table{}, fmt.Errorf("period table group %q has no labels", g.Name)
		}
	}
	return t, nil
}

// PeriodsFor returns the labels whose groups the year range [startYear, endYear]
// touches, in table order, without duplicates.
func (t Table) PeriodsFor(startYear, endYear int) []string {
	var labels []string
	for _, g := range t.Groups {
		if g.MaxStart > 0 && startYear > g.MaxStart {
			continue
		}
		if g.MinEnd > 0 && endYear < g.MinEnd {
			continue
		}
		labels = append(labels, g.Labels...)
	}
	return labels
}

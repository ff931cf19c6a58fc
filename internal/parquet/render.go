package parquet

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tmarchal/climatekit/internal/models"
)

// RenderText writes the human-readable report: prepared files first (they have
// cleaned, typed columns), raw files as the alternative.
func RenderText(w io.Writer, cat models.URLCatalog) error {
	rule := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Parquet file URLs for daily climatological data %d-%d\n", cat.StartYear, cat.EndYear)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "NOTE:")
	fmt.Fprintln(w, "- Each file contains every station nationwide; filter by department after download")
	fmt.Fprintln(w, "- The '.prepared' files are recommended (cleaned, typed columns)")
	fmt.Fprintln(w)

	fmt.Fprintln(w, thin)
	fmt.Fprintln(w, "PREPARED FILES (recommended):")
	fmt.Fprintln(w, thin)
	for i, u := range cat.Prepared {
		fmt.Fprintf(w, "%d. %s\n", i+1, u)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, thin)
	fmt.Fprintln(w, "RAW FILES (alternative):")
	fmt.Fprintln(w, thin)
	for i, u := range cat.Raw {
		fmt.Fprintf(w, "%d. %s\n", i+1, u)
	}
	return nil
}

// RenderJSON writes the catalog as indented JSON.
func RenderJSON(w io.Writer, cat models.URLCatalog) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cat)
}

// RenderPython writes the catalog as Python list literals, ready to paste into
// a pandas/pyarrow download script.
func RenderPython(w io.Writer, cat models.URLCatalog) error {
	fmt.Fprintln(w, "# Prepared file URLs")
	fmt.Fprintln(w, "urls_prepared = [")
	for _, u := range cat.Prepared {
		fmt.Fprintf(w, "    %q,\n", u)
	}
	fmt.Fprintln(w, "]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# Raw file URLs")
	fmt.Fprintln(w, "urls_brut = [")
	for _, u := range cat.Raw {
		fmt.Fprintf(w, "    %q,\n", u)
	}
	fmt.Fprintln(w, "]")
	return nil
}

// SaveToFile writes the URL list to a text file, prepared URLs first.
func SaveToFile(path string, cat models.URLCatalog) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	fmt.Fprintf(f, "# Parquet URLs - daily climatological data %d-%d\n", cat.StartYear, cat.EndYear)
	fmt.Fprintln(f, "# Each file contains every station nationwide")
	fmt.Fprintln(f)
	fmt.Fprintln(f, "# PREPARED FILES (recommended)")
	for _, u := range cat.Prepared {
		fmt.Fprintln(f, u)
	}
	fmt.Fprintln(f)
	fmt.Fprintln(f, "# RAW FILES (alternative)")
	for _, u := range cat.Raw {
		fmt.Fprintln(f, u)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

package models

import "time"

// DailyTemperature is one day of observed extremes from the archive API.
type DailyTemperature struct {
	Date time.Time `json:"date"`
	TMax float64   `json:"tMax"`
	TMin float64   `json:"tMin"`
}

// Mean returns the daily mean temperature (t_max + t_min) / 2.
func (d DailyTemperature) Mean() float64 {
	return (d.TMax + d.TMin) / 2
}

// GDDResult is the accumulated growing-degree-day total for a location over
// [Jan 1 of the target year, target date].
type GDDResult struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	BaseTemp   float64   `json:"baseTemp"`
	Cumulative float64   `json:"cumulative"`
	Days       int       `json:"days"`
	Timestamp  time.Time `json:"timestamp"`
}

// DatasetSummary describes a variable selection against a remote Zarr store.
// It is computed from store metadata only; no chunk data is read.
type DatasetSummary struct {
	StoreURL      string            `json:"storeUrl"`
	Variable      string            `json:"variable"`
	DataType      string            `json:"dataType"`
	Dimensions    []string          `json:"dimensions"`
	Shape         []int64           `json:"shape"`
	ChunkShape    []int64           `json:"chunkShape"`
	IndexRanges   map[string][2]int `json:"indexRanges"`
	SelectedShape []int64           `json:"selectedShape"`
	Elements      int64             `json:"elements"`
	EstimateBytes int64             `json:"estimateBytes"`
}

// URLCatalog is the generated list of Parquet download URLs for a year range.
type URLCatalog struct {
	StartYear int      `json:"startYear"`
	EndYear   int      `json:"endYear"`
	Periods   []string `json:"periods"`
	Raw       []string `json:"raw"`
	Prepared  []string `json:"prepared"`
}

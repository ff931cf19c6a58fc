package era5

import (
	"fmt"
	"math"
	"time"

	"github.com/tmarchal/climatekit/internal/models"
	"github.com/tmarchal/climatekit/internal/validation"
)

// Grid describes the regular coordinate axes of the archive, so coordinate
// ranges can be mapped to index ranges without reading coordinate chunks.
// ERA5 is published on a fixed 0.25-degree hourly grid.
type Grid struct {
	LatOrigin  float64       // first latitude value (index 0)
	LatStep    float64       // negative when latitudes descend north to south
	LonOrigin  float64       // first longitude value, degrees east in [0, 360)
	LonStep    float64
	TimeOrigin time.Time
	TimeStep   time.Duration
}

// DefaultGrid matches the ARCO ERA5 0.25-degree hourly layout: latitude
// 90 .. -90 descending, longitude 0 .. 359.75, hourly timestamps since 1900.
func DefaultGrid() Grid {
	return Grid{
		LatOrigin:  90,
		LatStep:    -0.25,
		LonOrigin:  0,
		LonStep:    0.25,
		TimeOrigin: time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
		TimeStep:   time.Hour,
	}
}

// Selection is a coordinate-range filter over (time, latitude, longitude).
type Selection struct {
	LatMin, LatMax float64
	LonMin, LonMax float64 // degrees east; negative values wrap to [0, 360)
	Start, End     time.Time
}

// Select resolves the selection against the array using the grid, returning a
// summary with per-dimension index ranges, the selected shape, and a size
// estimate. Dimensions the selection does not constrain stay full-extent.
// A longitude range whose low index exceeds its high index wraps across the
// antimeridian; the element count accounts for the wrap.
func (a *Array) Select(sel Selection, grid Grid) (models.DatasetSummary, error) {
	for _, lat := range []float64{sel.LatMin, sel.LatMax} {
		if math.IsNaN(lat) || lat < -90 || lat > 90 {
			return models.DatasetSummary{}, validation.ErrInvalidLatitude
		}
	}
	if math.IsNaN(sel.LonMin) || math.IsNaN(sel.LonMax) {
		return models.DatasetSummary{}, validation.ErrInvalidLongitude
	}
	if sel.LatMax < sel.LatMin {
		return models.DatasetSummary{}, fmt.Errorf("latitude range [%v, %v] is inverted", sel.LatMin, sel.LatMax)
	}
	if sel.End.Before(sel.Start) {
		return models.DatasetSummary{}, fmt.Errorf("time range end precedes start")
	}

	ranges := make(map[string][2]int, len(a.Dimensions))
	selected := make([]int64, len(a.Dimensions))
	var elements int64 = 1

	for i, dim := range a.Dimensions {
		n := int(a.Shape[i])
		var lo, hi int
		var count int64

		switch dim {
		case "latitude":
			lo, hi = axisRange(sel.LatMin, sel.LatMax, grid.LatOrigin, grid.LatStep, n)
			count = int64(hi - lo + 1)
		case "longitude":
			lo = axisIndex(normalizeLon(sel.LonMin), grid.LonOrigin, grid.LonStep, n)
			hi = axisIndex(normalizeLon(sel.LonMax), grid.LonOrigin, grid.LonStep, n)
			if lo <= hi {
				count = int64(hi - lo + 1)
			} else {
				count = int64(n-lo) + int64(hi) + 1 // wraps the antimeridian
			}
		case "time":
			lo = timeIndex(sel.Start, grid, n)
			hi = timeIndex(sel.End, grid, n)
			if hi < lo {
				lo, hi = hi, lo
			}
			count = int64(hi - lo + 1)
		default:
			lo, hi = 0, n-1
			count = int64(n)
		}

		ranges[dim] = [2]int{lo, hi}
		selected[i] = count
		elements *= count
	}

	return models.DatasetSummary{
		StoreURL:      a.storeURL,
		Variable:      a.Name,
		DataType:      a.DataType,
		Dimensions:    a.Dimensions,
		Shape:         a.Shape,
		ChunkShape:    a.ChunkShape,
		IndexRanges:   ranges,
		SelectedShape: selected,
		Elements:      elements,
		EstimateBytes: elements * dataTypeSize(a.DataType),
	}, nil
}

// normalizeLon maps a longitude into [0, 360) to match the archive axis.
func normalizeLon(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

// axisIndex returns the index of the grid point nearest to v, clamped to [0, n).
func axisIndex(v, origin, step float64, n int) int {
	idx := int(math.Round((v - origin) / step))
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

// axisRange returns the ordered index range covering [vMin, vMax] on an axis
// that may be ascending or descending.
func axisRange(vMin, vMax, origin, step float64, n int) (int, int) {
	a := axisIndex(vMin, origin, step, n)
	b := axisIndex(vMax, origin, step, n)
	if a > b {
		a, b = b, a
	}
	return a, b
}

// timeIndex maps a timestamp onto the time axis, clamped to the array extent.
func timeIndex(t time.Time, grid Grid, n int) int {
	steps := t.Sub(grid.TimeOrigin) / grid.TimeStep
	idx := int(steps)
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

// dataTypeSize returns the element size in bytes for Zarr v3 data types,
// or 1 when unknown so estimates stay conservative lower bounds.
func dataTypeSize(dt string) int64 {
	switch dt {
	case "float64", "int64", "uint64", "complex64":
		return 8
	case "float32", "int32", "uint32":
		return 4
	case "float16", "int16", "uint16":
		return 2
	case "int8", "uint8", "bool":
		return 1
	default:
		return 1
	}
}

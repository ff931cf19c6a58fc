package era5

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const rootDoc = `{"zarr_format": 3, "node_type": "group", "attributes": {}}`

// A small stand-in for the 2m_temperature array: hourly since 1900 on the
// quarter-degree grid, truncated time axis to keep numbers readable.
const tempDoc = `{
	"zarr_format": 3,
	"node_type": "array",
	"shape": [1103760, 721, 1440],
	"data_type": "float32",
	"chunk_grid": {"name": "regular", "configuration": {"chunk_shape": [24, 721, 1440]}},
	"dimension_names": ["time", "latitude", "longitude"]
}`

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/zarr.json":
			_, _ = w.Write([]byte(rootDoc))
		case "/2m_temperature/zarr.json":
			_, _ = w.Write([]byte(tempDoc))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestStore_Open(t *testing.T) {
	server := testServer(t)
	defer server.Close()

	store, err := NewStore(server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewStore() err = %v", err)
	}
	if err := store.Open(context.Background()); err != nil {
		t.Fatalf("Open() err = %v", err)
	}
}

func TestStore_Open_WrongFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"zarr_format": 2, "node_type": "group"}`))
	}))
	defer server.Close()

	store, _ := NewStore(server.URL, 2*time.Second)
	if err := store.Open(context.Background()); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestStore_Open_Unavailable(t *testing.T) {
	server := testServer(t)
	server.Close() // connection refused from here on

	store, _ := NewStore(server.URL, 2*time.Second)
	if err := store.Open(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
}

func TestStore_Variable(t *testing.T) {
	server := testServer(t)
	defer server.Close()

	store, _ := NewStore(server.URL, 2*time.Second)
	arr, err := store.Variable(context.Background(), "2m_temperature")
	if err != nil {
		t.Fatalf("Variable() err = %v", err)
	}
	if arr.DataType != "float32" {
		t.Errorf("DataType = %q, want float32", arr.DataType)
	}
	if len(arr.Shape) != 3 || arr.Shape[1] != 721 || arr.Shape[2] != 1440 {
		t.Errorf("Shape = %v", arr.Shape)
	}
	if arr.Dimensions[0] != "time" {
		t.Errorf("Dimensions = %v", arr.Dimensions)
	}
}

func TestStore_Variable_NotFound(t *testing.T) {
	server := testServer(t)
	defer server.Close()

	store, _ := NewStore(server.URL, 2*time.Second)
	if _, err := store.Variable(context.Background(), "no_such_variable"); !errors.Is(err, ErrVariableNotFound) {
		t.Errorf("error = %v, want ErrVariableNotFound", err)
	}
}

func TestStore_Variable_Malformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// rank mismatch: 3 dims in shape, 2 dimension names
		_, _ = w.Write([]byte(`{
			"zarr_format": 3, "node_type": "array",
			"shape": [10, 721, 1440], "data_type": "float32",
			"chunk_grid": {"name": "regular", "configuration": {"chunk_shape": [1, 721, 1440]}},
			"dimension_names": ["latitude", "longitude"]
		}`))
	}))
	defer server.Close()

	store, _ := NewStore(server.URL, 2*time.Second)
	if _, err := store.Variable(context.Background(), "x"); !errors.Is(err, ErrMalformedMetadata) {
		t.Errorf("error = %v, want ErrMalformedMetadata", err)
	}
}

func franceSelection() Selection {
	return Selection{
		LatMin: 43, LatMax: 51,
		LonMin: -5, LonMax: 9,
		Start: time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC),
	}
}

func TestArray_Select_France(t *testing.T) {
	server := testServer(t)
	defer server.Close()

	store, _ := NewStore(server.URL, 2*time.Second)
	arr, err := store.Variable(context.Background(), "2m_temperature")
	if err != nil {
		t.Fatalf("Variable() err = %v", err)
	}

	sum, err := arr.Select(franceSelection(), DefaultGrid())
	if err != nil {
		t.Fatalf("Select() err = %v", err)
	}

	// Latitude axis descends from 90 by 0.25: 51N -> 156, 43N -> 188.
	latRange := sum.IndexRanges["latitude"]
	if latRange != [2]int{156, 188} {
		t.Errorf("latitude range = %v, want [156 188]", latRange)
	}
	// Longitude -5 wraps to 355E (index 1420); 9E is index 36.
	lonRange := sum.IndexRanges["longitude"]
	if lonRange != [2]int{1420, 36} {
		t.Errorf("longitude range = %v, want [1420 36]", lonRange)
	}
	// Wrapped count: (1440-1420) + 36 + 1 = 57 points; latitude count 33.
	wantElems := int64(33) * 57 * sum.SelectedShape[0]
	if sum.Elements != wantElems {
		t.Errorf("Elements = %d, want %d", sum.Elements, wantElems)
	}
	if sum.EstimateBytes != sum.Elements*4 {
		t.Errorf("EstimateBytes = %d, want %d (float32)", sum.EstimateBytes, sum.Elements*4)
	}
	if sum.Variable != "2m_temperature" {
		t.Errorf("Variable = %q", sum.Variable)
	}
}

func TestArray_Select_InvertedRanges(t *testing.T) {
	server := testServer(t)
	defer server.Close()

	store, _ := NewStore(server.URL, 2*time.Second)
	arr, _ := store.Variable(context.Background(), "2m_temperature")

	sel := franceSelection()
	sel.LatMin, sel.LatMax = sel.LatMax, sel.LatMin
	if _, err := arr.Select(sel, DefaultGrid()); err == nil {
		t.Error("Select() with inverted latitudes: expected error, got nil")
	}

	sel = franceSelection()
	sel.Start, sel.End = sel.End, sel.Start
	if _, err := arr.Select(sel, DefaultGrid()); err == nil {
		t.Error("Select() with inverted time range: expected error, got nil")
	}
}

func TestNormalizeLon(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{-5, 355},
		{9, 9},
		{360, 0},
		{-180, 180},
		{725, 5},
	}
	for _, tc := range tests {
		if got := normalizeLon(tc.in); got != tc.want {
			t.Errorf("normalizeLon(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestAxisIndex_Clamping(t *testing.T) {
	// Latitude axis: origin 90, step -0.25, 721 points.
	if got := axisIndex(90, 90, -0.25, 721); got != 0 {
		t.Errorf("axisIndex(90) = %d, want 0", got)
	}
	if got := axisIndex(-90, 90, -0.25, 721); got != 720 {
		t.Errorf("axisIndex(-90) = %d, want 720", got)
	}
	if got := axisIndex(-95, 90, -0.25, 721); got != 720 {
		t.Errorf("axisIndex(-95) = %d, want clamp to 720", got)
	}
}

func TestTimeIndex(t *testing.T) {
	grid := DefaultGrid()
	if got := timeIndex(grid.TimeOrigin, grid, 1000); got != 0 {
		t.Errorf("timeIndex(origin) = %d, want 0", got)
	}
	if got := timeIndex(grid.TimeOrigin.Add(25*time.Hour), grid, 1000); got != 25 {
		t.Errorf("timeIndex(+25h) = %d, want 25", got)
	}
	if got := timeIndex(grid.TimeOrigin.Add(5000*time.Hour), grid, 1000); got != 999 {
		t.Errorf("timeIndex beyond extent = %d, want clamp to 999", got)
	}
}

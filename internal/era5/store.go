// Package era5 reads Zarr v3 store metadata over HTTP and resolves
// coordinate-range selections into index ranges and size estimates.
// It never downloads chunk data; summaries come from metadata alone.
package era5

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tmarchal/climatekit/internal/observability"
)

var (
	// ErrStoreUnavailable covers transport failures and 5xx responses.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrVariableNotFound is returned when the store has no such array.
	ErrVariableNotFound = errors.New("variable not found")
	// ErrMalformedMetadata is returned when a zarr.json document does not
	// match the Zarr v3 schema.
	ErrMalformedMetadata = errors.New("malformed store metadata")
	// ErrUnsupportedFormat is returned for stores that are not Zarr v3.
	ErrUnsupportedFormat = errors.New("unsupported zarr format")
)

// Store is a read-only handle on a cloud-hosted Zarr v3 archive.
type Store struct {
	baseURL string
	client  *http.Client
}

// NewStore creates a Store for the given base URL (e.g. an HTTPS mirror of
// gs://gcp-public-data-arco-era5/ar/full_37-1h-0p25deg-chunk-1.zarr-v3).
func NewStore(baseURL string, timeout time.Duration) (*Store, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("store URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid store URL: %w", err)
	}
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// groupMetadata is the root zarr.json of a Zarr v3 group.
type groupMetadata struct {
	ZarrFormat int                    `json:"zarr_format"`
	NodeType   string                 `json:"node_type"`
	Attributes map[string]interface{} `json:"attributes"`
}

// arrayMetadata is the zarr.json of a Zarr v3 array.
type arrayMetadata struct {
	ZarrFormat int      `json:"zarr_format"`
	NodeType   string   `json:"node_type"`
	Shape      []int64  `json:"shape"`
	DataType   string   `json:"data_type"`
	ChunkGrid  struct {
		Name          string `json:"name"`
		Configuration struct {
			ChunkShape []int64 `json:"chunk_shape"`
		} `json:"configuration"`
	} `json:"chunk_grid"`
	DimensionNames []string `json:"dimension_names"`
}

// Array is one named variable within the store.
type Array struct {
	Name       string
	DataType   string
	Shape      []int64
	ChunkShape []int64
	Dimensions []string

	storeURL string
}

// Open fetches and validates the root group metadata.
func (s *Store) Open(ctx context.Context) error {
	var meta groupMetadata
	if err := s.fetchJSON(ctx, s.baseURL+"/zarr.json", &meta); err != nil {
		return err
	}
	if meta.ZarrFormat != 3 {
		return fmt.Errorf("%w: zarr_format %d", ErrUnsupportedFormat, meta.ZarrFormat)
	}
	if meta.NodeType != "group" {
		return fmt.Errorf("%w: root node_type %q, want group", ErrMalformedMetadata, meta.NodeType)
	}
	return nil
}

// Variable fetches metadata for the named array (e.g. "2m_temperature").
func (s *Store) Variable(ctx context.Context, name string) (*Array, error) {
	name = strings.Trim(name, "/")
	if name == "" {
		return nil, fmt.Errorf("%w: empty variable name", ErrVariableNotFound)
	}

	var meta arrayMetadata
	if err := s.fetchJSON(ctx, s.baseURL+"/"+name+"/zarr.json", &meta); err != nil {
		return nil, err
	}
	if meta.ZarrFormat != 3 {
		return nil, fmt.Errorf("%w: zarr_format %d", ErrUnsupportedFormat, meta.ZarrFormat)
	}
	if meta.NodeType != "array" {
		return nil, fmt.Errorf("%w: node_type %q, want array", ErrMalformedMetadata, meta.NodeType)
	}
	if len(meta.Shape) == 0 || len(meta.DimensionNames) != len(meta.Shape) {
		return nil, fmt.Errorf("%w: shape/dimension mismatch", ErrMalformedMetadata)
	}
	chunks := meta.ChunkGrid.Configuration.ChunkShape
	if len(chunks) != len(meta.Shape) {
		return nil, fmt.Errorf("%w: chunk grid rank mismatch", ErrMalformedMetadata)
	}

	return &Array{
		Name:       name,
		DataType:   meta.DataType,
		Shape:      meta.Shape,
		ChunkShape: chunks,
		Dimensions: meta.DimensionNames,
		storeURL:   s.baseURL,
	}, nil
}

func (s *Store) fetchJSON(ctx context.Context, rawURL string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		observability.StoreMetadataFetchesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		observability.StoreMetadataFetchesTotal.WithLabelValues("not_found").Inc()
		return fmt.Errorf("%w: %s", ErrVariableNotFound, rawURL)
	case resp.StatusCode != http.StatusOK:
		observability.StoreMetadataFetchesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: HTTP %d from %s", ErrStoreUnavailable, resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.StoreMetadataFetchesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		observability.StoreMetadataFetchesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	observability.StoreMetadataFetchesTotal.WithLabelValues("success").Inc()
	return nil
}

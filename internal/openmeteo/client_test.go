package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func f(v float64) *float64 { return &v }

func dailyPayload(times []string, tmax, tmin []*float64) map[string]interface{} {
	return map[string]interface{}{
		"latitude":  48.8,
		"longitude": 2.49,
		"timezone":  "Europe/Paris",
		"daily": map[string]interface{}{
			"time":               times,
			"temperature_2m_max": tmax,
			"temperature_2m_min": tmin,
		},
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient("", 2*time.Second); err == nil {
		t.Fatal("NewClient(\"\") expected error, got nil")
	}
}

func TestGetDailyTemperatures_Success(t *testing.T) {
	payload := dailyPayload(
		[]string{"2023-01-01", "2023-01-02"},
		[]*float64{f(10), f(20)},
		[]*float64{f(0), f(10)},
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("expected GET, got %s", r.Method)
		}
		q := r.URL.Query()
		if q.Get("latitude") != "48.8" {
			t.Errorf("latitude = %q, want 48.8", q.Get("latitude"))
		}
		if q.Get("start_date") != "2023-01-01" || q.Get("end_date") != "2023-01-02" {
			t.Errorf("date range = %q..%q", q.Get("start_date"), q.Get("end_date"))
		}
		if !strings.Contains(q.Get("daily"), "temperature_2m_max") {
			t.Errorf("daily = %q, want temperature fields", q.Get("daily"))
		}
		if q.Get("timezone") != "auto" {
			t.Errorf("timezone = %q, want auto", q.Get("timezone"))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewClient() err = %v", err)
	}

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	got, err := client.GetDailyTemperatures(context.Background(), 48.8, 2.49, start, end)
	if err != nil {
		t.Fatalf("GetDailyTemperatures() err = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].TMax != 10 || got[0].TMin != 0 {
		t.Errorf("day 0 = %+v, want tmax=10 tmin=0", got[0])
	}
	if !got[1].Date.Equal(end) {
		t.Errorf("day 1 date = %v, want %v", got[1].Date, end)
	}
}

func TestGetDailyTemperatures_NullEntries(t *testing.T) {
	payload := dailyPayload(
		[]string{"2023-01-01", "2023-01-02"},
		[]*float64{f(10), nil},
		[]*float64{f(0), f(1)},
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, 2*time.Second)
	_, err := client.GetDailyTemperatures(context.Background(), 48.8, 2.49,
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("error = %v, want ErrDataUnavailable", err)
	}
}

func TestGetDailyTemperatures_LengthSkew(t *testing.T) {
	payload := dailyPayload(
		[]string{"2023-01-01", "2023-01-02"},
		[]*float64{f(10)},
		[]*float64{f(0), f(1)},
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, 2*time.Second)
	_, err := client.GetDailyTemperatures(context.Background(), 48.8, 2.49,
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestGetDailyTemperatures_BadRequestNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error":  true,
			"reason": "Value of parameter 'start_date' is out of allowed range",
		})
	}))
	defer server.Close()

	client, _ := NewClientWithRetry(server.URL, 2*time.Second, 3, time.Millisecond, 10*time.Millisecond)
	_, err := client.GetDailyTemperatures(context.Background(), 48.8, 2.49,
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("error = %v, want ErrBadRequest", err)
	}
	if !strings.Contains(err.Error(), "start_date") {
		t.Errorf("error should carry upstream reason, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1 (no retries on 400)", got)
	}
}

func TestGetDailyTemperatures_RetriesServerErrors(t *testing.T) {
	var calls int32
	payload := dailyPayload([]string{"2023-01-01"}, []*float64{f(10)}, []*float64{f(0)})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client, _ := NewClientWithRetry(server.URL, 2*time.Second, 3, time.Millisecond, 10*time.Millisecond)
	got, err := client.GetDailyTemperatures(context.Background(), 48.8, 2.49,
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetDailyTemperatures() err = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestGetDailyTemperatures_ExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := NewClientWithRetry(server.URL, 2*time.Second, 2, time.Millisecond, 10*time.Millisecond)
	_, err := client.GetDailyTemperatures(context.Background(), 48.8, 2.49,
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Errorf("error = %v, want ErrUpstreamFailure", err)
	}
	if !strings.Contains(err.Error(), "exhausted retries") {
		t.Errorf("error = %v, want exhausted retries wrapper", err)
	}
}

func TestGetDailyTemperatures_CorrelationIDForwarded(t *testing.T) {
	payload := dailyPayload([]string{"2023-01-01"}, []*float64{f(10)}, []*float64{f(0)})
	var gotHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Correlation-ID")
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, 2*time.Second)
	ctx := context.WithValue(context.Background(), "correlation_id", "corr-123")
	if _, err := client.GetDailyTemperatures(ctx, 48.8, 2.49,
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("GetDailyTemperatures() err = %v", err)
	}
	if gotHeader != "corr-123" {
		t.Errorf("X-Correlation-ID = %q, want corr-123", gotHeader)
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "success"},
		{204, "success"},
		{429, "rate_limited"},
		{404, "client_error"},
		{500, "server_error"},
		{100, "error"},
	}
	for _, tc := range tests {
		if got := statusLabel(tc.code); got != tc.want {
			t.Errorf("statusLabel(%d) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

package gdd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tmarchal/climatekit/internal/cache"
	"github.com/tmarchal/climatekit/internal/models"
	"github.com/tmarchal/climatekit/internal/observability"
	"github.com/tmarchal/climatekit/internal/openmeteo"
	"github.com/tmarchal/climatekit/internal/validation"
)

// ErrInvalidRange is returned when the accumulation range is empty
// (end date before start date).
var ErrInvalidRange = errors.New("invalid date range")

// Service computes GDD accumulations using a cache-aside pattern over the
// archive client. Results for a fixed (location, date, base) tuple are
// deterministic, so caching is purely a latency and quota optimization.
type Service struct {
	client openmeteo.ArchiveClient
	cache  cache.Cache
	ttl    time.Duration
}

// NewService creates a Service. cache may be nil to disable caching
// (the CLI runs without one).
func NewService(client openmeteo.ArchiveClient, c cache.Cache, ttl time.Duration) *Service {
	return &Service{
		client: client,
		cache:  c,
		ttl:    ttl,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// Cumulative computes the GDD total for [Jan 1 of target's year, target],
// both inclusive. Inputs are validated before any remote call.
func (s *Service) Cumulative(ctx context.Context, lat, lon float64, target time.Time, tBase float64) (models.GDDResult, error) {
	start := time.Date(target.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	return s.Range(ctx, lat, lon, start, target, tBase)
}

// Range computes the GDD total over [start, end], both inclusive. Exposed
// separately so callers can accumulate over sub-ranges; totals over adjacent
// ranges sum to the total over their union.
func (s *Service) Range(ctx context.Context, lat, lon float64, start, end time.Time, tBase float64) (models.GDDResult, error) {
	if err := validation.ValidateCoordinates(lat, lon); err != nil {
		return models.GDDResult{}, err
	}
	if err := validation.ValidateBaseTemp(tBase); err != nil {
		return models.GDDResult{}, err
	}
	if end.Before(start) {
		return models.GDDResult{}, fmt.Errorf("%w: %s before %s", ErrInvalidRange,
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	logger := loggerFromContext(ctx)
	key := resultKey(lat, lon, start, end, tBase)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		} else if ok {
			observability.CacheHitsTotal.WithLabelValues("gdd").Inc()
			observability.GDDQueriesTotal.WithLabelValues("cache").Inc()
			if logger != nil {
				logger.Debug("cache hit", zap.String("key", key))
			}
			return cached, nil
		}
	}

	days, err := s.client.GetDailyTemperatures(ctx, lat, lon, start, end)
	if err != nil {
		return models.GDDResult{}, fmt.Errorf("fetch daily temperatures: %w", err)
	}
	wantDays := int(end.Sub(start).Hours()/24) + 1
	if len(days) != wantDays {
		return models.GDDResult{}, fmt.Errorf("%w: got %d of %d days",
			openmeteo.ErrDataUnavailable, len(days), wantDays)
	}

	result := models.GDDResult{
		Latitude:   lat,
		Longitude:  lon,
		StartDate:  start,
		EndDate:    end,
		BaseTemp:   tBase,
		Cumulative: Accumulate(days, tBase),
		Days:       len(days),
		Timestamp:  time.Now().UTC(),
	}
	observability.GDDQueriesTotal.WithLabelValues("upstream").Inc()

	if s.cache != nil {
		if setErr := s.cache.Set(ctx, key, result, s.ttl); setErr != nil {
			observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(setErr)).Inc()
			if logger != nil {
				logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
			}
		}
	}
	if logger != nil {
		logger.Debug("gdd computed",
			zap.Float64("lat", lat), zap.Float64("lon", lon),
			zap.String("end", end.Format("2006-01-02")),
			zap.Float64("cumulative", result.Cumulative))
	}
	return result, nil
}

// resultKey builds a stable cache key for a (location, range, base) tuple.
func resultKey(lat, lon float64, start, end time.Time, tBase float64) string {
	return fmt.Sprintf("%.4f:%.4f:%s:%s:%g",
		lat, lon, start.Format("2006-01-02"), end.Format("2006-01-02"), tBase)
}

// categorizeCacheError returns a stable label for cache error metrics.
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}

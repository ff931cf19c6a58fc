package validation

import (
	"errors"
	"math"
	"strings"
	"time"
)

// ErrInvalidLatitude is returned when latitude is outside [-90, 90] or not finite.
var ErrInvalidLatitude = errors.New("latitude out of range")

// ErrInvalidLongitude is returned when longitude is outside [-180, 180] or not finite.
var ErrInvalidLongitude = errors.New("longitude out of range")

// ErrInvalidDate is returned when a date string does not parse as YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date")

// ErrDateInFuture is returned when the target date is after today; the archive
// holds observations, not forecasts.
var ErrDateInFuture = errors.New("date is in the future")

// ErrInvalidBaseTemp is returned when the base temperature is NaN or infinite.
var ErrInvalidBaseTemp = errors.New("base temperature must be finite")

// ErrInvalidYearRange is returned when a requested year range has end < start.
var ErrInvalidYearRange = errors.New("end year precedes start year")

// ValidateCoordinates checks that lat/lon form a valid geographic point.
// Performed before any remote call so bad input never reaches the upstream API.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return ErrInvalidLatitude
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date string into a UTC time at midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// ValidateTargetDate checks that the accumulation end date is usable: parseable,
// and not beyond the current day (the upstream archive lags real time).
func ValidateTargetDate(s string, now time.Time) (time.Time, error) {
	t, err := ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if t.After(today) {
		return time.Time{}, ErrDateInFuture
	}
	return t, nil
}

// ValidateBaseTemp rejects NaN and infinities. Any finite value is allowed;
// thresholds below freezing are legitimate for cold-climate crops.
func ValidateBaseTemp(tBase float64) error {
	if math.IsNaN(tBase) || math.IsInf(tBase, 0) {
		return ErrInvalidBaseTemp
	}
	return nil
}

// ValidateYearRange checks that a Parquet catalog request is well-ordered.
func ValidateYearRange(start, end int) error {
	if end < start {
		return ErrInvalidYearRange
	}
	return nil
}

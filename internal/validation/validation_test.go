package validation

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lon     float64
		wantErr error
	}{
		{"paris", 48.8, 2.49, nil},
		{"north pole", 90, 0, nil},
		{"south pole", -90, 0, nil},
		{"antimeridian west", 0, -180, nil},
		{"antimeridian east", 0, 180, nil},
		{"lat too high", 90.01, 0, ErrInvalidLatitude},
		{"lat too low", -91, 0, ErrInvalidLatitude},
		{"lat NaN", math.NaN(), 0, ErrInvalidLatitude},
		{"lon too high", 0, 180.5, ErrInvalidLongitude},
		{"lon too low", 0, -181, ErrInvalidLongitude},
		{"lon NaN", 0, math.NaN(), ErrInvalidLongitude},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCoordinates(tc.lat, tc.lon)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateCoordinates() err = %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2023-02-01")
	if err != nil {
		t.Fatalf("ParseDate() err = %v", err)
	}
	want := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("date = %v, want %v", got, want)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"wrong layout", "01/02/2023"},
		{"impossible day", "2023-02-30"},
		{"garbage", "not-a-date"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDate(tc.input)
			if !errors.Is(err, ErrInvalidDate) {
				t.Errorf("error = %v, want ErrInvalidDate", err)
			}
		})
	}
}

func TestValidateTargetDate_Future(t *testing.T) {
	now := time.Date(2024, 6, 15, 13, 30, 0, 0, time.UTC)
	if _, err := ValidateTargetDate("2024-06-16", now); !errors.Is(err, ErrDateInFuture) {
		t.Errorf("error = %v, want ErrDateInFuture", err)
	}
	// Same day is allowed even when parsed midnight precedes now.
	if _, err := ValidateTargetDate("2024-06-15", now); err != nil {
		t.Errorf("same day: err = %v", err)
	}
}

func TestValidateBaseTemp(t *testing.T) {
	for _, v := range []float64{5, 0, -10, 30.5} {
		if err := ValidateBaseTemp(v); err != nil {
			t.Errorf("ValidateBaseTemp(%v) err = %v", v, err)
		}
	}
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := ValidateBaseTemp(v); !errors.Is(err, ErrInvalidBaseTemp) {
			t.Errorf("ValidateBaseTemp(%v) = %v, want ErrInvalidBaseTemp", v, err)
		}
	}
}

func TestValidateYearRange(t *testing.T) {
	if err := ValidateYearRange(1990, 2020); err != nil {
		t.Fatalf("ValidateYearRange() err = %v", err)
	}
	if err := ValidateYearRange(1990, 1990); err != nil {
		t.Fatalf("single year: err = %v", err)
	}
	if err := ValidateYearRange(2020, 1990); !errors.Is(err, ErrInvalidYearRange) {
		t.Errorf("error = %v, want ErrInvalidYearRange", err)
	}
}

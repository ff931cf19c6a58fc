// Package gdd computes growing-degree-day accumulations from daily
// temperature extremes. A day contributes max(0, (t_max+t_min)/2 - t_base);
// contributions are never negative, so the accumulated total is monotonically
// non-decreasing in the end date.
package gdd

import (
	"github.com/tmarchal/climatekit/internal/models"
)

// DefaultBaseTemp is the conventional base threshold in °C for temperate crops.
const DefaultBaseTemp = 5.0

// DailyGDD returns the degree-day contribution of one day, floored at zero.
func DailyGDD(day models.DailyTemperature, tBase float64) float64 {
	g := day.Mean() - tBase
	if g < 0 {
		return 0
	}
	return g
}

// Accumulate sums the daily contributions over the series.
func Accumulate(days []models.DailyTemperature, tBase float64) float64 {
	var total float64
	for _, d := range days {
		total += DailyGDD(d, tBase)
	}
	return total
}

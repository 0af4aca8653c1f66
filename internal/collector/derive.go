package collector

import (
	"math"

	"netwatch/internal/models"
)

// Derive turns raw counters into speed samples, one per input. Unknown,
// negative or NaN rates become 0.
func Derive(counters []models.InterfaceCounters) []models.SpeedSample {
	out := make([]models.SpeedSample, 0, len(counters))
	for _, c := range counters {
		out = append(out, models.SpeedSample{
			Interface: c.Interface,
			Timestamp: c.Timestamp,
			RxSpeed:   speed(c.RxSec),
			TxSpeed:   speed(c.TxSec),
		})
	}
	return out
}

func speed(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || *v < 0 {
		return 0
	}
	return *v
}

package models

import (
	"math"
	"time"
)

// MillisToDuration converts a millisecond count from a client request,
// rejecting values that would overflow time.Duration.
func MillisToDuration(ms int64) (time.Duration, error) {
	const unit = int64(time.Millisecond)
	if ms > math.MaxInt64/unit || ms < math.MinInt64/unit {
		return 0, &ValidationError{Field: "interval", Reason: "out of range"}
	}
	return time.Duration(ms) * time.Millisecond, nil
}

package history

import "netwatch/internal/models"

// Step reduces a counters series to the change across each window of n
// consecutive samples. Incomplete trailing windows are dropped. With n <= 1
// the result is the change between each pair of neighbours.
func Step(stats []models.InterfaceCounters, n int) []models.StatsDelta {
	if n <= 1 {
		out := make([]models.StatsDelta, 0, len(stats))
		for i := 1; i < len(stats); i++ {
			out = append(out, delta(stats[i-1], stats[i]))
		}
		return out
	}
	out := make([]models.StatsDelta, 0, len(stats)/n)
	for i := 0; i+n <= len(stats); i += n {
		out = append(out, delta(stats[i], stats[i+n-1]))
	}
	return out
}

func delta(first, last models.InterfaceCounters) models.StatsDelta {
	return models.StatsDelta{
		Timestamp: last.Timestamp,
		RxBytes:   sub(last.RxBytes, first.RxBytes),
		TxBytes:   sub(last.TxBytes, first.TxBytes),
		RxPackets: sub(last.RxPackets, first.RxPackets),
		TxPackets: sub(last.TxPackets, first.TxPackets),
	}
}

// sub clamps at zero when a counter reset inside the window.
func sub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

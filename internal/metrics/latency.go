package metrics

import (
	"time"

	"github.com/influxdata/tdigest"
)

// Latency summarises step durations.
type Latency struct {
	Count int           `json:"count"`
	P50   time.Duration `json:"p50"`
	P90   time.Duration `json:"p90"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

// IsZero reports whether nothing was observed.
func (l Latency) IsZero() bool { return l.Count == 0 }

// Summarize computes quantiles over durations.
func Summarize(durations []time.Duration) Latency {
	td := tdigest.NewWithCompression(100)
	var maxD time.Duration
	for _, d := range durations {
		td.Add(float64(d), 1)
		if d > maxD {
			maxD = d
		}
	}
	l := latencyFrom(td)
	l.Max = maxD
	return l
}

func latencyFrom(td *tdigest.TDigest) Latency {
	n := int(td.Count())
	if n == 0 {
		return Latency{}
	}
	return Latency{
		Count: n,
		P50:   time.Duration(td.Quantile(0.50)),
		P90:   time.Duration(td.Quantile(0.90)),
		P99:   time.Duration(td.Quantile(0.99)),
		Max:   time.Duration(td.Quantile(1)),
	}
}

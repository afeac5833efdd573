package metrics

import (
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// Ledger is the append-only record of every scalar observed during a run,
// keyed by metric name and meta-iteration. It rides inside checkpoints, so a
// resumed run extends the same history.
type Ledger map[string]map[int]float64

// NewLedger returns an empty ledger.
func NewLedger() Ledger {
	return Ledger{}
}

// Clone returns a deep copy of the ledger.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for metric, series := range l {
		cp := make(map[int]float64, len(series))
		for iteration, value := range series {
			cp[iteration] = value
		}
		out[metric] = cp
	}
	return out
}

// Record appends one observation.
func (l Ledger) Record(metric string, iteration int, value float64) {
	series, ok := l[metric]
	if !ok {
		series = map[int]float64{}
		l[metric] = series
	}
	series[iteration] = value
}

// Mean returns the running mean over every value recorded for the metric.
func (l Ledger) Mean(metric string) (float64, error) {
	series := l[metric]
	if len(series) == 0 {
		return 0, errors.Errorf("no values recorded for %s", metric)
	}
	values := make([]float64, 0, len(series))
	for _, v := range series {
		values = append(values, v)
	}
	return stats.Mean(values)
}

// Metrics returns the recorded metric names, sorted.
func (l Ledger) Metrics() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Series returns the metric's values ordered by iteration.
func (l Ledger) Series(metric string) (iterations []int, values []float64) {
	series := l[metric]
	iterations = make([]int, 0, len(series))
	for it := range series {
		iterations = append(iterations, it)
	}
	sort.Ints(iterations)
	values = make([]float64, len(iterations))
	for i, it := range iterations {
		values[i] = series[it]
	}
	return iterations, values
}

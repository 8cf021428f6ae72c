package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/rwestudy-cli/internal/dataset"
)

// finite drops NaN and ±Inf values.
func finite(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// mean skips missing values and returns NaN when none remain.
func mean(vals []float64) float64 {
	f := finite(vals)
	if len(f) == 0 {
		return math.NaN()
	}
	return stat.Mean(f, nil)
}

// median interpolates between the middle values and skips missing values.
func median(vals []float64) float64 {
	f := finite(vals)
	if len(f) == 0 {
		return math.NaN()
	}
	sort.Float64s(f)
	return quantile(f, 0.5)
}

// sampleStd is the n-1 standard deviation; fewer than two values yield 0.
func sampleStd(vals []float64) float64 {
	f := finite(vals)
	if len(f) < 2 {
		return 0
	}
	sd := stat.StdDev(f, nil)
	if math.IsNaN(sd) {
		return 0
	}
	return sd
}

func minMax(vals []float64) (lo, hi float64) {
	f := finite(vals)
	if len(f) == 0 {
		return math.NaN(), math.NaN()
	}
	lo, hi = f[0], f[0]
	for _, v := range f[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// round rounds half away from zero. Undefined values (no observations) are
// reported as 0 so summaries stay serializable.
func round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// percent returns hits/n as a percentage rounded to one decimal.
func percent(hits, n int) float64 {
	if n == 0 {
		return 0
	}
	return round(float64(hits)/float64(n)*100, 1)
}

// column extracts one numeric field from every record.
func column(recs []dataset.Record, f func(dataset.Record) float64) []float64 {
	out := make([]float64, len(recs))
	for i, r := range recs {
		out[i] = f(r)
	}
	return out
}

func count(recs []dataset.Record, pred func(dataset.Record) bool) int {
	n := 0
	for _, r := range recs {
		if pred(r) {
			n++
		}
	}
	return n
}

// groupBy partitions records by label, keeping labels in first-appearance
// order. Records with an empty label are dropped.
func groupBy(recs []dataset.Record, label func(dataset.Record) string) Groups[[]dataset.Record] {
	idx := map[string]int{}
	var out Groups[[]dataset.Record]
	for _, r := range recs {
		k := label(r)
		if k == "" {
			continue
		}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, Entry[[]dataset.Record]{Key: k})
		}
		out[i].Value = append(out[i].Value, r)
	}
	return out
}

// subset keeps the records whose label equals key.
func subset(recs []dataset.Record, label func(dataset.Record) string, key string) []dataset.Record {
	var out []dataset.Record
	for _, r := range recs {
		if label(r) == key {
			out = append(out, r)
		}
	}
	return out
}

func weightChange(r dataset.Record) float64 { return r.WeightChangeKg }
func adherence(r dataset.Record) float64 { return r.AdherenceRate }
func baselineBMI(r dataset.Record) float64 { return r.BaselineBMI }
func anyLoss(r dataset.Record) bool { return r.Derived.AnyWeightLoss }

// successRate is the share of records with any weight loss, in percent.
func successRate(recs []dataset.Record) float64 {
	return percent(count(recs, anyLoss), len(recs))
}

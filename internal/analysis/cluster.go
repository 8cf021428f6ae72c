package analysis

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/KaramelBytes/rwestudy-cli/internal/dataset"
)

// ClusterFeatures lists the k-means inputs in column order.
var ClusterFeatures = []string{
	"age", "baseline_bmi", "adherence_rate", "comorbidity_count", "treatment_duration_days",
}

// ClusterOptions configures a k-means run.
type ClusterOptions struct {
	K       int
	Seed    int64
	NInit   int
	MaxIter int
}

func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{K: 4, Seed: 42, NInit: 10, MaxIter: 300}
}

// withDefaults fills unset restart and iteration limits. K is left as given
// so invalid values reach validation.
func (o ClusterOptions) withDefaults() ClusterOptions {
	d := DefaultClusterOptions()
	if o.NInit <= 0 {
		o.NInit = d.NInit
	}
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	return o
}

// ClusterResult is one clustering run. Assignments are a side table keyed by
// patient id; the source records are never modified.
type ClusterResult struct {
	ContextID   string                 `json:"context_id" yaml:"context_id"`
	Version     int                    `json:"version" yaml:"version"`
	K           int                    `json:"k" yaml:"k"`
	Seed        int64                  `json:"seed" yaml:"seed"`
	Inertia     float64                `json:"inertia" yaml:"inertia"`
	Features    []string               `json:"features" yaml:"features"`
	Clusters    Groups[ClusterProfile] `json:"clusters" yaml:"clusters"`
	Assignments []Assignment           `json:"assignments,omitempty" yaml:"assignments,omitempty"`
}

// Assignment maps one row to its cluster.
type Assignment struct {
	PatientID string `json:"patient_id" yaml:"patient_id"`
	Row       int    `json:"row" yaml:"row"`
	Cluster   int    `json:"cluster" yaml:"cluster"`
}

type ClusterProfile struct {
	NPatients       int                    `json:"n_patients" yaml:"n_patients"`
	Characteristics ClusterCharacteristics `json:"characteristics" yaml:"characteristics"`
	Outcomes        ClusterOutcomes        `json:"outcomes" yaml:"outcomes"`
}

type ClusterCharacteristics struct {
	MeanAge               float64 `json:"mean_age" yaml:"mean_age"`
	MeanBaselineBMI       float64 `json:"mean_baseline_bmi" yaml:"mean_baseline_bmi"`
	MeanAdherence         float64 `json:"mean_adherence" yaml:"mean_adherence"`
	MeanComorbidities     float64 `json:"mean_comorbidities" yaml:"mean_comorbidities"`
	MeanTreatmentDuration float64 `json:"mean_treatment_duration" yaml:"mean_treatment_duration"`
}

type ClusterOutcomes struct {
	MeanWeightLoss    float64 `json:"mean_weight_loss" yaml:"mean_weight_loss"`
	SuccessRate       float64 `json:"success_rate" yaml:"success_rate"`
	PreferredArmUsage float64 `json:"preferred_arm_usage" yaml:"preferred_arm_usage"`
}

// clone returns a deep copy so callers never share slices with the engine.
func (r *ClusterResult) clone() *ClusterResult {
	c := *r
	c.Features = append([]string(nil), r.Features...)
	c.Clusters = append(Groups[ClusterProfile](nil), r.Clusters...)
	c.Assignments = append([]Assignment(nil), r.Assignments...)
	return &c
}

// ClusterName is the profile key for cluster i.
func ClusterName(i int) string { return "Cluster_" + strconv.Itoa(i) }

// Cluster runs seeded k-means over the clustering features, records the
// result as the engine's latest run and returns it.
func (e *Engine) Cluster(opt ClusterOptions) (*ClusterResult, error) {
	opt = opt.withDefaults()
	recs := e.records()
	if opt.K < 1 {
		return nil, &EmptyGroupError{Group: "clusters", Reason: fmt.Sprintf("k must be at least 1, got %d", opt.K)}
	}
	points := featureMatrix(recs)
	if distinct := countDistinct(points); opt.K > distinct {
		return nil, &EmptyGroupError{
			Group:  "clusters",
			Reason: fmt.Sprintf("k=%d exceeds %d distinct feature rows", opt.K, distinct),
		}
	}

	labels, inertia := kmeans(points, opt)

	members := make([][]dataset.Record, opt.K)
	assignments := make([]Assignment, len(recs))
	for i, r := range recs {
		members[labels[i]] = append(members[labels[i]], r)
		assignments[i] = Assignment{PatientID: r.PatientID, Row: i, Cluster: labels[i]}
	}
	res := &ClusterResult{
		ContextID:   e.id,
		K:           opt.K,
		Seed:        opt.Seed,
		Inertia:     round(inertia, 3),
		Features:    append([]string(nil), ClusterFeatures...),
		Assignments: assignments,
	}
	for i, g := range members {
		res.Clusters = append(res.Clusters, Entry[ClusterProfile]{Key: ClusterName(i), Value: e.clusterProfile(g)})
	}

	e.mu.Lock()
	e.version++
	res.Version = e.version
	e.clusters = res.clone()
	e.mu.Unlock()

	e.log.Debug("clustering complete",
		zap.Int("k", opt.K),
		zap.Int("version", res.Version),
		zap.Float64("inertia", res.Inertia))
	return res, nil
}

func (e *Engine) clusterProfile(g []dataset.Record) ClusterProfile {
	return ClusterProfile{
		NPatients: len(g),
		Characteristics: ClusterCharacteristics{
			MeanAge:               round(mean(column(g, func(r dataset.Record) float64 { return r.Age })), 1),
			MeanBaselineBMI:       round(mean(column(g, baselineBMI)), 1),
			MeanAdherence:         round(mean(column(g, adherence)), 2),
			MeanComorbidities:     round(mean(column(g, func(r dataset.Record) float64 { return float64(r.Derived.ComorbidityCount) })), 1),
			MeanTreatmentDuration: round(mean(column(g, func(r dataset.Record) float64 { return r.Derived.TreatmentDurationDays })), 1),
		},
		Outcomes: ClusterOutcomes{
			MeanWeightLoss:    round(mean(column(g, weightChange)), 2),
			SuccessRate:       successRate(g),
			PreferredArmUsage: e.preferredArmUsage(g),
		},
	}
}

// ClusteredRecord is a record joined with its cluster label.
type ClusteredRecord struct {
	dataset.Record
	Cluster int `json:"cluster"`
}

// JoinClusters pairs each record with its cluster from res. Rows are joined
// by position and checked against the patient id.
func JoinClusters(t *dataset.Table, res *ClusterResult) ([]ClusteredRecord, error) {
	if res == nil {
		return nil, ErrNoClusters
	}
	if len(res.Assignments) != t.Len() {
		return nil, fmt.Errorf("cluster assignments cover %d rows, table has %d", len(res.Assignments), t.Len())
	}
	out := make([]ClusteredRecord, t.Len())
	for i, r := range t.Records {
		a := res.Assignments[i]
		if a.Row != i || a.PatientID != r.PatientID {
			return nil, fmt.Errorf("cluster assignment %d does not match patient %q", i, r.PatientID)
		}
		out[i] = ClusteredRecord{Record: r, Cluster: a.Cluster}
	}
	return out, nil
}

// featureMatrix builds one row per record; missing values become 0.
func featureMatrix(recs []dataset.Record) [][]float64 {
	zero := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}
	out := make([][]float64, len(recs))
	for i, r := range recs {
		out[i] = []float64{
			zero(r.Age),
			zero(r.BaselineBMI),
			zero(r.AdherenceRate),
			float64(r.Derived.ComorbidityCount),
			zero(r.Derived.TreatmentDurationDays),
		}
	}
	return out
}

func countDistinct(points [][]float64) int {
	seen := map[string]struct{}{}
	for _, p := range points {
		seen[fmt.Sprint(p)] = struct{}{}
	}
	return len(seen)
}

// kmeans returns the labels and inertia of the best of opt.NInit runs.
func kmeans(points [][]float64, opt ClusterOptions) ([]int, float64) {
	rng := rand.New(rand.NewSource(opt.Seed))
	var best []int
	bestInertia := math.Inf(1)
	for run := 0; run < opt.NInit; run++ {
		labels, inertia := lloyd(points, seedCenters(points, opt.K, rng), opt.MaxIter)
		if inertia < bestInertia {
			best, bestInertia = labels, inertia
		}
	}
	return best, bestInertia
}

// seedCenters picks k initial centers with k-means++ sampling.
func seedCenters(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(points[rng.Intn(len(points))]))
	d2 := make([]float64, len(points))
	for len(centers) < k {
		var sum float64
		for i, p := range points {
			d := nearestDist(p, centers)
			d2[i] = d * d
			sum += d2[i]
		}
		if sum == 0 {
			centers = append(centers, clone(points[rng.Intn(len(points))]))
			continue
		}
		target := rng.Float64() * sum
		idx := len(points) - 1
		for i, w := range d2 {
			target -= w
			if target <= 0 {
				idx = i
				break
			}
		}
		centers = append(centers, clone(points[idx]))
	}
	return centers
}

func lloyd(points, centers [][]float64, maxIter int) ([]int, float64) {
	k, dim := len(centers), len(points[0])
	labels := make([]int, len(points))
	for iter := 0; iter < maxIter; iter++ {
		changed := iter == 0
		for i, p := range points {
			c := nearest(p, centers)
			if c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			floats.Add(sums[labels[i]], p)
			counts[labels[i]]++
		}
		for c := range centers {
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			centers[c] = sums[c]
		}
		if !changed {
			break
		}
	}
	var inertia float64
	for i, p := range points {
		d := floats.Distance(p, centers[labels[i]], 2)
		inertia += d * d
	}
	return labels, inertia
}

func nearest(p []float64, centers [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for c, ctr := range centers {
		if d := floats.Distance(p, ctr, 2); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

func nearestDist(p []float64, centers [][]float64) float64 {
	return floats.Distance(p, centers[nearest(p, centers)], 2)
}

func clone(p []float64) []float64 { return append([]float64(nil), p...) }

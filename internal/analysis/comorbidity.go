package analysis

import (
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/rwestudy-cli/internal/dataset"
)

// Comorbidities holds the comorbidity-burden breakdowns.
type Comorbidities struct {
	ByCount Groups[ComorbidityCountStats] `json:"by_count" yaml:"by_count"`
	ByType  Groups[ConditionComparison]   `json:"by_type" yaml:"by_type"`
}

type ComorbidityCountStats struct {
	Comorbidities  int     `json:"comorbidities" yaml:"comorbidities"`
	NPatients      int     `json:"n_patients" yaml:"n_patients"`
	MeanWeightLoss float64 `json:"mean_weight_loss" yaml:"mean_weight_loss"`
	SuccessRate    float64 `json:"success_rate" yaml:"success_rate"`
	MeanAdherence  float64 `json:"mean_adherence" yaml:"mean_adherence"`
}

type SideStats struct {
	NPatients      int     `json:"n_patients" yaml:"n_patients"`
	MeanWeightLoss float64 `json:"mean_weight_loss" yaml:"mean_weight_loss"`
	SuccessRate    float64 `json:"success_rate" yaml:"success_rate"`
}

type ConditionComparison struct {
	WithCondition    SideStats `json:"with_condition" yaml:"with_condition"`
	WithoutCondition SideStats `json:"without_condition" yaml:"without_condition"`
}

// countKey is the by_count key for n comorbidities.
func countKey(n int) string { return strconv.Itoa(n) }

// Comorbidities groups rows by comorbidity count (ascending) and compares
// rows with and without each watch-list condition. A condition present in
// every row or in none is omitted.
func (e *Engine) Comorbidities() Comorbidities {
	recs := e.records()
	var c Comorbidities

	byCount := map[int][]dataset.Record{}
	for _, r := range recs {
		byCount[r.Derived.ComorbidityCount] = append(byCount[r.Derived.ComorbidityCount], r)
	}
	counts := make([]int, 0, len(byCount))
	for n := range byCount {
		counts = append(counts, n)
	}
	sort.Ints(counts)
	for _, n := range counts {
		g := byCount[n]
		c.ByCount = append(c.ByCount, Entry[ComorbidityCountStats]{Key: countKey(n), Value: ComorbidityCountStats{
			Comorbidities:  n,
			NPatients:      len(g),
			MeanWeightLoss: round(mean(column(g, weightChange)), 2),
			SuccessRate:    successRate(g),
			MeanAdherence:  round(mean(column(g, adherence)), 2),
		}})
	}

	for _, cond := range e.opt.WatchList {
		var with, without []dataset.Record
		for _, r := range recs {
			if strings.Contains(r.Comorbidities, cond) {
				with = append(with, r)
			} else {
				without = append(without, r)
			}
		}
		if len(with) == 0 || len(without) == 0 {
			e.log.Debug("watch-list condition omitted",
				zap.String("condition", cond),
				zap.Int("with", len(with)),
				zap.Int("without", len(without)))
			continue
		}
		c.ByType = append(c.ByType, Entry[ConditionComparison]{Key: cond, Value: ConditionComparison{
			WithCondition:    sideStats(with),
			WithoutCondition: sideStats(without),
		}})
	}
	return c
}

func sideStats(recs []dataset.Record) SideStats {
	return SideStats{
		NPatients:      len(recs),
		MeanWeightLoss: round(mean(column(recs, weightChange)), 2),
		SuccessRate:    successRate(recs),
	}
}

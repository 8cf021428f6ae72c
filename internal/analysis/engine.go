// Package analysis computes descriptive statistics, effectiveness comparisons,
// subgroup breakdowns, hypothesis tests, clustering and rule-based insights
// over an enriched study table.
package analysis

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/rwestudy-cli/internal/dataset"
)

// DefaultWatchList is the set of conditions compared with/without in the
// comorbidity breakdown.
var DefaultWatchList = []string{
	"Type 2 Diabetes", "Hypertension", "Sleep Apnea",
	"Cardiac Disease", "High Cholesterol", "Obesity", "PCOS",
}

// Options controls analysis behavior.
type Options struct {
	// PreferredArm and ComparatorArm name the two interventions compared by
	// the two-arm test and the first insight rule.
	PreferredArm  string
	ComparatorArm string
	// Alpha is the significance level for every test.
	Alpha float64
	// EqualVariance selects Student's t-test; false selects Welch's.
	EqualVariance bool
	// AdherenceThreshold splits high (>) and low (<=) adherence tiers.
	AdherenceThreshold float64
	WatchList          []string
	Cluster            ClusterOptions
}

// DefaultOptions returns the settings the study reports were produced with.
func DefaultOptions() Options {
	return Options{
		PreferredArm:       "Mounjaro",
		ComparatorArm:      "LifestyleOnly",
		Alpha:              0.05,
		EqualVariance:      true,
		AdherenceThreshold: 0.8,
		WatchList:          append([]string(nil), DefaultWatchList...),
		Cluster:            DefaultClusterOptions(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PreferredArm == "" {
		o.PreferredArm = d.PreferredArm
	}
	if o.ComparatorArm == "" {
		o.ComparatorArm = d.ComparatorArm
	}
	if o.Alpha <= 0 || o.Alpha >= 1 {
		o.Alpha = d.Alpha
	}
	if o.AdherenceThreshold <= 0 {
		o.AdherenceThreshold = d.AdherenceThreshold
	}
	if o.WatchList == nil {
		o.WatchList = d.WatchList
	}
	o.Cluster = o.Cluster.withDefaults()
	return o
}

// Engine owns one enriched table and answers every analysis over it. All
// analyses are read-only; cluster assignments are kept in a versioned side
// table and never written into the records.
type Engine struct {
	table *dataset.Table
	opt   Options
	log   *zap.Logger
	id    string

	mu       sync.RWMutex
	version  int
	clusters *ClusterResult
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New builds an engine over t. The table must be non-empty.
func New(t *dataset.Table, opt Options, opts ...EngineOption) (*Engine, error) {
	if t == nil || t.Len() == 0 {
		return nil, &dataset.LoadError{Reason: "empty table", Err: dataset.ErrNoRecords}
	}
	e := &Engine{
		table: t,
		opt:   opt.withDefaults(),
		log:   zap.NewNop(),
		id:    uuid.NewString(),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With(zap.String("context_id", e.id), zap.String("source", t.Source))
	e.log.Debug("analysis engine ready",
		zap.Int("records", t.Len()),
		zap.Strings("interventions", t.Domains.Interventions),
		zap.Int("countries", len(t.Domains.Countries)))
	return e, nil
}

// ID identifies this analysis context.
func (e *Engine) ID() string { return e.id }

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opt }

// Version counts the cluster runs recorded by this engine.
func (e *Engine) Version() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// ErrNoClusters is returned by LatestClusters before any clustering run.
var ErrNoClusters = errors.New("no clustering run recorded")

// LatestClusters returns a copy of the most recent clustering result.
func (e *Engine) LatestClusters() (*ClusterResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.clusters == nil {
		return nil, ErrNoClusters
	}
	return e.clusters.clone(), nil
}

func (e *Engine) records() []dataset.Record { return e.table.Records }

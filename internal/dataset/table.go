package dataset

import "strings"

// Domains holds the categorical values discovered in a table, each in order
// of first appearance.
type Domains struct {
	Countries     []string `json:"countries"`
	Interventions []string `json:"interventions"`
	Outcomes      []string `json:"outcomes"`
	Sexes         []string `json:"sexes"`
}

// Table is an enriched, read-only set of records loaded from one source.
type Table struct {
	Source  string
	Records []Record
	Domains Domains
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// UnknownLabel replaces empty categorical cells so every row belongs to a group.
const UnknownLabel = "Unknown"

// Preprocess cleans categorical cells, derives every computed field and
// discovers the categorical domains. The input slice is copied; the returned
// table owns its records.
func Preprocess(source string, records []Record) *Table {
	out := make([]Record, len(records))
	for i, r := range records {
		r.Sex = orUnknown(r.Sex)
		r.Country = orUnknown(r.Country)
		r.Intervention = orUnknown(r.Intervention)
		r.Outcome = orUnknown(r.Outcome)
		r.Derived = Derive(r)
		out[i] = r
	}
	return &Table{Source: source, Records: out, Domains: discoverDomains(out)}
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return UnknownLabel
	}
	return v
}

func discoverDomains(records []Record) Domains {
	var d Domains
	seen := map[string]map[string]struct{}{
		"country": {}, "intervention": {}, "outcome": {}, "sex": {},
	}
	add := func(kind, v string, dst *[]string) {
		if _, ok := seen[kind][v]; ok {
			return
		}
		seen[kind][v] = struct{}{}
		*dst = append(*dst, v)
	}
	for _, r := range records {
		add("country", r.Country, &d.Countries)
		add("intervention", r.Intervention, &d.Interventions)
		add("outcome", r.Outcome, &d.Outcomes)
		add("sex", r.Sex, &d.Sexes)
	}
	return d
}

// HasIntervention reports whether label was discovered in the intervention column.
func (d Domains) HasIntervention(label string) bool {
	for _, v := range d.Interventions {
		if v == label {
			return true
		}
	}
	return false
}

// Filter selects records by categorical value. Empty criteria match everything.
type Filter struct {
	Countries     []string
	Interventions []string
	Outcomes      []string
}

func (f Filter) empty() bool {
	return len(f.Countries) == 0 && len(f.Interventions) == 0 && len(f.Outcomes) == 0
}

func matchAny(v string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), v) {
			return true
		}
	}
	return false
}

// Filter returns a new table holding the records that match every non-empty
// criterion. Domains are rediscovered over the subset.
func (t *Table) Filter(f Filter) *Table {
	var keep []Record
	for _, r := range t.Records {
		if f.empty() || (matchAny(r.Country, f.Countries) &&
			matchAny(r.Intervention, f.Interventions) &&
			matchAny(r.Outcome, f.Outcomes)) {
			keep = append(keep, r)
		}
	}
	return Preprocess(t.Source, keep)
}

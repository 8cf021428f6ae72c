package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Entry is one labeled value in a Groups mapping.
type Entry[T any] struct {
	Key   string
	Value T
}

// Groups is an insertion-ordered mapping from a runtime-discovered label to a
// per-group result. It serializes as a JSON/YAML object with keys in order.
type Groups[T any] []Entry[T]

// Get returns the value stored under key.
func (g Groups[T]) Get(key string) (T, bool) {
	for _, e := range g {
		if e.Key == key {
			return e.Value, true
		}
	}
	var zero T
	return zero, false
}

// Keys returns the labels in order.
func (g Groups[T]) Keys() []string {
	out := make([]string, len(g))
	for i, e := range g {
		out[i] = e.Key
	}
	return out
}

func (g Groups[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range g {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", e.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (g Groups[T]) MarshalYAML() (interface{}, error) {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range g {
		var v yaml.Node
		if err := v.Encode(e.Value); err != nil {
			return nil, fmt.Errorf("group %q: %w", e.Key, err)
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key}, &v)
	}
	return n, nil
}

// countDistribution counts non-empty values, ordered by count descending with
// ties kept in first-appearance order.
func countDistribution(values []string) Groups[int] {
	idx := map[string]int{}
	var out Groups[int]
	for _, v := range values {
		if v == "" {
			continue
		}
		if i, ok := idx[v]; ok {
			out[i].Value++
			continue
		}
		idx[v] = len(out)
		out = append(out, Entry[int]{Key: v, Value: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

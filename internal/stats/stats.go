// Package stats aggregates instruction records into per-feature opcode
// statistics and renders the report.
package stats

import (
	"sort"

	"cpufeat/internal/cpuid"
	"cpufeat/internal/disasm"
)

// OpcodeStat is the occurrence count of one opcode identity within a
// feature group. Counts only ever increase.
type OpcodeStat struct {
	Opcode disasm.Opcode
	Count  uint64
}

type bucket map[disasm.OpcodeID]*OpcodeStat

func (b bucket) bump(op disasm.Opcode) {
	if s, ok := b[op.ID]; ok {
		s.Count++
		return
	}
	b[op.ID] = &OpcodeStat{Opcode: op, Count: 1}
}

// Aggregator accumulates per-opcode counts bucketed by feature-set key.
// Single-feature keys live in a dense slice indexed by Feature; ordered
// multi-feature keys live in a map. The two representations never collide:
// the map only ever holds keys of length two or more.
type Aggregator struct {
	single []bucket
	multi  map[string]bucket
	order  map[string]cpuid.FeatureSet
	total  uint64
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		single: make([]bucket, cpuid.Count()),
		multi:  make(map[string]bucket),
		order:  make(map[string]cpuid.FeatureSet),
	}
}

// Ingest files one record. With detail false the occurrence is fanned out:
// it is counted once under every feature it requires. With detail true a
// multi-feature occurrence is counted exactly once, under its full ordered
// feature set. The total advances once per record either way.
func (a *Aggregator) Ingest(rec disasm.Record, detail bool) {
	a.total++
	switch {
	case !detail:
		for _, f := range rec.Features {
			a.bumpSingle(f, rec.Opcode)
		}
	case len(rec.Features) == 1:
		a.bumpSingle(rec.Features[0], rec.Opcode)
	default:
		key := rec.Features.Key()
		b, ok := a.multi[key]
		if !ok {
			b = make(bucket)
			a.multi[key] = b
			set := make(cpuid.FeatureSet, len(rec.Features))
			copy(set, rec.Features)
			a.order[key] = set
		}
		b.bump(rec.Opcode)
	}
}

func (a *Aggregator) bumpSingle(f cpuid.Feature, op disasm.Opcode) {
	if a.single[f] == nil {
		a.single[f] = make(bucket)
	}
	a.single[f].bump(op)
}

// Total is the number of records ingested.
func (a *Aggregator) Total() uint64 { return a.total }

// Group is one feature bucket with at least one stat, ready for filtering
// and display. Display is the feature names joined with " and ".
type Group struct {
	Display  string
	Features cpuid.FeatureSet
	Stats    []OpcodeStat
}

// Groups flattens the table into display groups sorted by display string,
// ascending byte order. Empty buckets are dropped.
func (a *Aggregator) Groups() []Group {
	var groups []Group
	for f, b := range a.single {
		if len(b) == 0 {
			continue
		}
		set := cpuid.FeatureSet{cpuid.Feature(f)}
		groups = append(groups, Group{
			Display:  set.Display(),
			Features: set,
			Stats:    flatten(b),
		})
	}
	for key, b := range a.multi {
		set := a.order[key]
		groups = append(groups, Group{
			Display:  set.Display(),
			Features: set,
			Stats:    flatten(b),
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Display < groups[j].Display })
	return groups
}

func flatten(b bucket) []OpcodeStat {
	out := make([]OpcodeStat, 0, len(b))
	for _, s := range b {
		out = append(out, *s)
	}
	return out
}

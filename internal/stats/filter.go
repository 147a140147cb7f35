package stats

import "cpufeat/internal/cpuid"

// FilterOptions selects which groups survive into the report.
type FilterOptions struct {
	// IncludeBaseline keeps single-feature groups whose feature is in the
	// fixed baseline set. Off by default: those features are present on
	// every targeted CPU and say nothing about the binary.
	IncludeBaseline bool
	// Include, when non-empty, keeps only groups whose display string
	// exactly equals one of its entries.
	Include []string
	// Exclude drops groups whose display string exactly equals one of its
	// entries. Applied after Include and independent of it.
	Exclude []string
}

// Filter applies opt to groups, preserving their order. Matching is whole
// display strings only; a multi-feature group is never matched by one of
// its constituent feature names.
func Filter(groups []Group, opt FilterOptions) []Group {
	out := groups[:0:0]
	for _, g := range groups {
		if !opt.IncludeBaseline && len(g.Features) == 1 && cpuid.IsBaseline(g.Features[0]) {
			continue
		}
		if len(opt.Include) > 0 && !containsString(opt.Include, g.Display) {
			continue
		}
		if len(opt.Exclude) > 0 && containsString(opt.Exclude, g.Display) {
			continue
		}
		out = append(out, g)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

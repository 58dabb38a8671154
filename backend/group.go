package backend

import (
	"math"
	"sort"
)

// Grouping constants. These are behavioral, not tunable: charts produced
// with different values are not comparable to existing recordings.
const (
	// logEpsilon guards log10(0) when a series extremum is zero.
	logEpsilon = 1e-9
	// magnitudeThreshold is the maximum distance, in orders of magnitude,
	// between a group seed's extrema and a member's extrema.
	magnitudeThreshold = 2.0
	// maxSeriesPerChart caps legend and line density on a single chart.
	maxSeriesPerChart = 6
)

type seriesStats struct {
	min, max       float64
	logMin, logMax float64
}

// statsFor computes per-series extrema over all records, ignoring non-finite
// values. Series with no finite values at all are returned separately: they
// cannot be scaled onto any axis.
func statsFor(records []Record, names []string) (stats map[string]seriesStats, scalable, unscaled []string) {
	stats = make(map[string]seriesStats, len(names))
	for _, name := range names {
		var s seriesStats
		seen := false
		for _, rec := range records {
			v, ok := rec[name]
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if !seen {
				s.min, s.max = v, v
				seen = true
				continue
			}
			s.min = min(s.min, v)
			s.max = max(s.max, v)
		}
		if !seen {
			unscaled = append(unscaled, name)
			continue
		}
		s.logMin = math.Log10(math.Abs(s.min) + logEpsilon)
		s.logMax = math.Log10(math.Abs(s.max) + logEpsilon)
		stats[name] = s
		scalable = append(scalable, name)
	}
	return stats, scalable, unscaled
}

// GroupSeries partitions series into final chart groups of comparable
// numeric scale.
//
// Clustering is a single greedy pass in series order: each unassigned series
// seeds a group and absorbs every later unassigned, non-constant series
// whose log-scale extrema both fall within magnitudeThreshold of the seed's.
// Membership is judged against the seed only, never re-evaluated against
// members, so the result is deterministic for a given series order.
//
// Within each group, series sharing a component suffix are made contiguous in
// first-seen suffix order, which keeps like components of different columns
// adjacent. Groups are then ordered by descending size and any group larger
// than maxSeriesPerChart is split into consecutive chunks.
//
// The second return lists series excluded for having no finite values; the
// union of all groups plus that list is exactly the input set.
func GroupSeries(records []Record, names []string) (groups [][]string, unscaled []string) {
	stats, scalable, unscaled := statsFor(records, names)
	assigned := make(map[string]bool, len(scalable))
	var clusters [][]string
	for _, seed := range scalable {
		if assigned[seed] {
			continue
		}
		assigned[seed] = true
		ss := stats[seed]
		group := []string{seed}
		for _, other := range scalable {
			if assigned[other] {
				continue
			}
			os := stats[other]
			if os.min == os.max {
				// Constant series only ever seed their own group.
				continue
			}
			if math.Abs(os.logMin-ss.logMin) <= magnitudeThreshold &&
				math.Abs(os.logMax-ss.logMax) <= magnitudeThreshold {
				group = append(group, other)
				assigned[other] = true
			}
		}
		clusters = append(clusters, reorderBySuffix(group))
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i]) > len(clusters[j])
	})
	for _, cluster := range clusters {
		for len(cluster) > maxSeriesPerChart {
			groups = append(groups, cluster[:maxSeriesPerChart])
			cluster = cluster[maxSeriesPerChart:]
		}
		if len(cluster) > 0 {
			groups = append(groups, cluster)
		}
	}
	return groups, unscaled
}

// reorderBySuffix makes series sharing a post-delimiter suffix contiguous,
// in first-seen suffix order, preserving relative order within each suffix.
func reorderBySuffix(group []string) []string {
	var suffixes []string
	bySuffix := make(map[string][]string)
	for _, name := range group {
		suffix := seriesSuffix(name)
		if _, ok := bySuffix[suffix]; !ok {
			suffixes = append(suffixes, suffix)
		}
		bySuffix[suffix] = append(bySuffix[suffix], name)
	}
	out := make([]string, 0, len(group))
	for _, suffix := range suffixes {
		out = append(out, bySuffix[suffix]...)
	}
	return out
}

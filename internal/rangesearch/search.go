// Package rangesearch locates the contiguous run of sorted items that match a
// query range.
//
// The caller supplies two comparers. minCmp(query, item) > 0 means the lower
// boundary of the query excludes the item (the item lies entirely before the
// query). maxCmp(query, item) < 0 means the upper boundary excludes it (the
// item lies entirely after the query). Items must be ordered so that the
// excluded-below items form a prefix and the excluded-above items form a
// suffix. Inclusive or exclusive boundaries are expressed by the comparers,
// so one search serves point lookups, prefix lookups and interval overlap.
package rangesearch

import (
	"strings"
)

// Range is a run of items [Start, Start+Length).
type Range struct {
	Start  int
	Length int
}

// End returns the exclusive end index.
func (r Range) End() int {
	return r.Start + r.Length
}

// IsEmpty reports whether the range selects nothing.
func (r Range) IsEmpty() bool {
	return r.Length <= 0
}

// Comparer compares a query against an item.
type Comparer[Q, T any] func(query Q, item T) int

// Search runs two binary searches in one loop, one step of each per
// iteration: the lower cursor looks for the first item not excluded by
// minCmp and the upper cursor for the last item not excluded by maxCmp.
// It returns the empty Range when nothing matches.
func Search[Q, T any](count int, at func(int) T, query Q, minCmp, maxCmp Comparer[Q, T]) Range {
	if count <= 0 {
		return Range{}
	}

	// lower: first index in [lowLo, lowHi] with minCmp <= 0; count if none
	lowLo, lowHi := 0, count
	// upper: last index in [upLo, upHi] with maxCmp >= 0; -1 if none
	upLo, upHi := -1, count-1

	for lowLo < lowHi || upLo < upHi {
		if lowLo < lowHi {
			mid := int(uint(lowLo+lowHi) >> 1)
			if minCmp(query, at(mid)) > 0 {
				lowLo = mid + 1
			} else {
				lowHi = mid
			}
		}
		if upLo < upHi {
			mid := int(uint(upLo+upHi+1) >> 1)
			if maxCmp(query, at(mid)) >= 0 {
				upLo = mid
			} else {
				upHi = mid - 1
			}
		}
	}

	length := upLo - lowLo + 1
	if length <= 0 {
		return Range{}
	}
	return Range{Start: lowLo, Length: length}
}

// SearchSlice is Search over a slice.
func SearchSlice[Q, T any](items []T, query Q, minCmp, maxCmp Comparer[Q, T]) Range {
	return Search(len(items), func(i int) T { return items[i] }, query, minCmp, maxCmp)
}

// Find returns the index of the first item equal to query. cmp(query, item)
// orders query against item the way strings.Compare orders its arguments.
func Find[Q, T any](items []T, query Q, cmp Comparer[Q, T]) (int, bool) {
	r := SearchSlice(items, query, cmp, cmp)
	if r.IsEmpty() {
		return -1, false
	}
	return r.Start, true
}

// PrefixRange returns the run of sorted strings that start with prefix.
// When ignoreCase is set, items must be sorted by their lowercase form.
func PrefixRange(sorted []string, prefix string, ignoreCase bool) Range {
	return PrefixRangeFunc(len(sorted), func(i int) string { return sorted[i] }, prefix, ignoreCase)
}

// PrefixRangeFunc is PrefixRange over an accessor.
func PrefixRangeFunc(count int, at func(int) string, prefix string, ignoreCase bool) Range {
	if ignoreCase {
		prefix = strings.ToLower(prefix)
		inner := at
		at = func(i int) string { return strings.ToLower(inner(i)) }
	}
	return Search(count, at, prefix, prefixMin, prefixMax)
}

// prefixMin excludes items sorting before the prefix.
func prefixMin(prefix, item string) int {
	if item < prefix {
		return 1
	}
	return 0
}

// prefixMax relaxes the upper boundary to "starts with".
func prefixMax(prefix, item string) int {
	if strings.HasPrefix(item, prefix) || item < prefix {
		return 0
	}
	return -1
}

package utils

import (
	"sort"
	"time"
)

func SortDates(dates []time.Time, asc bool) []time.Time {
	sort.Slice(dates, func(i, j int) bool {
		if asc {
			return dates[i].Before(dates[j])
		}
		return dates[i].After(dates[j])
	})
	return dates
}

// GetSortedKeys returns the dates keying m, oldest first when asc is true.
func GetSortedKeys[T any](m map[time.Time]T, asc bool) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	return SortDates(keys, asc)
}

// SortedCells returns the keys of a cell keyed map in lexicographic order.
func SortedCells[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

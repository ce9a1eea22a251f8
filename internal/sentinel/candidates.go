package sentinel

import (
	"errors"
	"fmt"

	"github.com/forest-guardian/geotile-dataset/internal/planner"
)

// FirstValid tries candidates in priority order and returns the first result
// that valid accepts. A candidate whose attempt reports ErrImageNotFound, or
// whose result is rejected, is dropped and the next one is tried. Any other
// error stops the search. When every candidate is dropped the error wraps
// ErrImageNotFound.
func FirstValid[C, R any](candidates []C, attempt func(C) (R, error), valid func(R) error) (R, error) {
	var zero R
	var reasons []error
	for i, c := range candidates {
		result, err := attempt(c)
		if err != nil {
			if !errors.Is(err, ErrImageNotFound) {
				return zero, err
			}
			reasons = append(reasons, fmt.Errorf("candidate %d: %w", i, err))
			continue
		}
		if err := valid(result); err != nil {
			reasons = append(reasons, fmt.Errorf("candidate %d: %w", i, err))
			continue
		}
		return result, nil
	}
	if len(reasons) == 0 {
		return zero, fmt.Errorf("%w: no candidates", ErrImageNotFound)
	}
	return zero, fmt.Errorf("%w after %d candidates, last: %v", ErrImageNotFound, len(candidates), reasons[len(reasons)-1])
}

// Windows returns the interval followed by the same interval shortened by one
// day at a time, down to a single day. With most recent mosaicking each
// window leaves out the newest acquisition of the one before it.
func Windows(interval planner.Interval) []planner.Interval {
	var windows []planner.Interval
	for end := interval.End; end.After(interval.Start); end = end.AddDate(0, 0, -1) {
		windows = append(windows, planner.Interval{Start: interval.Start, End: end})
	}
	return windows
}

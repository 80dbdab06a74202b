// Package availability holds the date-keyed index of published
// availability windows consumed by the slot resolver.
package availability

import (
	"fmt"
	"sort"
	"sync"

	"lessonbook/internal/timegrid"
)

// Window is a contiguous open interval in minutes-of-day during which
// a lesson may begin. End == 0 means end of day (midnight rollover).
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NormalizedEnd resolves the midnight-rollover encoding.
func (w Window) NormalizedEnd() int {
	if w.End == 0 {
		return timegrid.MinutesPerDay
	}
	return w.End
}

// Day is the published availability for a single calendar date.
// Windows are non-overlapping and pre-sorted by the upstream supplier.
type Day struct {
	Date     string   `json:"date"` // YYYY-MM-DD
	Windows  []Window `json:"windows"`
	Blackout bool     `json:"blackout"`
}

// TimeSpan is a raw "HH:MM" window pair as delivered on the wire.
type TimeSpan struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MalformedAvailabilityError reports provider data that could not be
// converted into windows. It is raised at the parsing boundary and
// propagated, never silently guessed around.
type MalformedAvailabilityError struct {
	Date  string
	Cause error
}

func (e *MalformedAvailabilityError) Error() string {
	return fmt.Sprintf("malformed availability for %s: %v", e.Date, e.Cause)
}

func (e *MalformedAvailabilityError) Unwrap() error { return e.Cause }

// BuildDay converts raw wire spans into a validated Day.
func BuildDay(date string, spans []TimeSpan, blackout bool) (Day, error) {
	day := Day{Date: date, Blackout: blackout}
	for _, span := range spans {
		start, err := timegrid.ToMinutes(span.Start, false)
		if err != nil {
			return Day{}, &MalformedAvailabilityError{Date: date, Cause: err}
		}
		end, err := timegrid.ToMinutes(span.End, true)
		if err != nil {
			return Day{}, &MalformedAvailabilityError{Date: date, Cause: err}
		}
		w := Window{Start: start, End: end}
		if end == timegrid.MinutesPerDay {
			w.End = 0
		}
		if start >= w.NormalizedEnd() {
			return Day{}, &MalformedAvailabilityError{
				Date:  date,
				Cause: fmt.Errorf("window %s-%s is empty or inverted", span.Start, span.End),
			}
		}
		day.Windows = append(day.Windows, w)
	}
	return day, nil
}

// Index maps calendar dates to availability days for one booking
// session. It only grows: merges never evict, and a date absent from
// the index means no availability, not "unknown".
type Index struct {
	days       map[string]Day
	generation uint64
	mu         sync.RWMutex
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{days: make(map[string]Day)}
}

// Merge adds or replaces days and bumps the generation counter.
// Returns the new generation.
func (idx *Index) Merge(days map[string]Day) uint64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for date, day := range days {
		idx.days[date] = day
	}
	idx.generation++
	return idx.generation
}

// Lookup returns the day for a date, if present.
func (idx *Index) Lookup(date string) (Day, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	day, ok := idx.days[date]
	return day, ok
}

// Has reports whether a date has been merged in.
func (idx *Index) Has(date string) bool {
	_, ok := idx.Lookup(date)
	return ok
}

// Dates returns all indexed dates in ascending order.
func (idx *Index) Dates() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	dates := make([]string, 0, len(idx.days))
	for date := range idx.days {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// Generation returns the current merge generation.
func (idx *Index) Generation() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.generation
}

// Len returns the number of indexed dates.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.days)
}

// Package slots resolves bookable start times for a date and lesson
// duration from published availability windows.
package slots

import (
	"sort"
	"time"

	"lessonbook/internal/availability"
	"lessonbook/internal/timegrid"
)

// Catalog is the de-duplicated, ascending set of lesson durations
// (minutes) offered across an instructor's services. Immutable for
// the lifetime of a booking session.
type Catalog []int

// NewCatalog builds a catalog from raw duration values.
func NewCatalog(values ...int) Catalog {
	seen := make(map[int]bool, len(values))
	var catalog Catalog
	for _, v := range values {
		if v <= 0 || seen[v] {
			continue
		}
		seen[v] = true
		catalog = append(catalog, v)
	}
	sort.Ints(catalog)
	return catalog
}

// Contains reports whether a duration is offered.
func (c Catalog) Contains(duration int) bool {
	for _, v := range c {
		if v == duration {
			return true
		}
	}
	return false
}

// Resolver derives display-formatted start times from the availability
// index. "Today" is evaluated in the reference timezone.
type Resolver struct {
	index *availability.Index
	loc   *time.Location
	now   func() time.Time
}

// NewResolver creates a resolver over the given index. loc is the
// reference timezone for past-slot filtering; nil means UTC.
func NewResolver(index *availability.Index, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{index: index, loc: loc, now: time.Now}
}

// Resolve returns the ordered bookable start times for the date and
// duration. Absent or blacked-out dates resolve to nothing. Windows
// are expanded in stored order; the resolver does not re-sort or
// dedupe, so upstream ordering defects stay visible.
func (r *Resolver) Resolve(date string, durationMinutes int) []string {
	day, ok := r.index.Lookup(date)
	if !ok || day.Blackout {
		return nil
	}

	cutoff := -1
	if r.isToday(date) {
		now := r.now().In(r.loc)
		cutoff = now.Hour()*60 + now.Minute()
	}

	var result []string
	for _, w := range day.Windows {
		for _, start := range timegrid.ExpandStarts(w.Start, w.NormalizedEnd(), timegrid.StepMinutes, durationMinutes) {
			// A slot starting exactly "now" is already gone.
			if cutoff >= 0 && start <= cutoff {
				continue
			}
			result = append(result, timegrid.ToDisplay(start))
		}
	}
	return result
}

// DisabledDurations returns the catalog durations that cannot be
// booked on the date. A duration is disabled when it has no valid
// start times at all, or, when a start time is already pinned
// (selectedStart >= 0), when no window can host a session of that
// duration from the pinned start. The pinned rule only narrows.
func (r *Resolver) DisabledDurations(date string, catalog Catalog, selectedStart int) map[int]bool {
	disabled := make(map[int]bool, len(catalog))
	day, hasDay := r.index.Lookup(date)

	for _, duration := range catalog {
		if len(r.Resolve(date, duration)) == 0 {
			disabled[duration] = true
			continue
		}
		if selectedStart >= 0 && hasDay && !canHost(day, selectedStart, duration) {
			disabled[duration] = true
		}
	}
	return disabled
}

func canHost(day availability.Day, start, duration int) bool {
	if day.Blackout {
		return false
	}
	for _, w := range day.Windows {
		if start >= w.Start && start+duration <= w.NormalizedEnd() {
			return true
		}
	}
	return false
}

func (r *Resolver) isToday(date string) bool {
	return date == r.now().In(r.loc).Format("2006-01-02")
}

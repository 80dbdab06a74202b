// Package selection owns the date/time/duration selection state
// machine of the time picker and keeps it consistent as availability
// data and user input arrive.
package selection

import (
	"github.com/rs/zerolog"

	"lessonbook/internal/availability"
	"lessonbook/internal/metrics"
	"lessonbook/internal/slots"
	"lessonbook/internal/timegrid"
)

// Reason distinguishes who initiated a date change. It is recorded
// for observability only and never changes resolution semantics.
type Reason string

const (
	ReasonUser   Reason = "user"
	ReasonJump   Reason = "jump"
	ReasonEffect Reason = "effect"
)

// Selection is the current date/time/duration triple. Empty strings
// stand for "nothing selected".
type Selection struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration int    `json:"duration"`
}

// Notice tells the UI that the chosen duration has no slots on the
// chosen date, and where to jump instead. NextDate is empty when no
// indexed date supports the duration.
type Notice struct {
	Duration int    `json:"duration"`
	Date     string `json:"date"`
	NextDate string `json:"next_date"`
}

// Initial is an externally supplied preselection, e.g. from a deep
// link. It is applied exactly once, as soon as the target date's
// availability is known.
type Initial struct {
	Date     string
	Time     string
	Duration int
}

// Reconciler is the selection state machine. It re-validates the
// selected time against resolved slots whenever date, duration or the
// availability data changes. Invariants held after every transition:
// the selected time is a member of the current slot list or empty,
// and the duration is always a catalog member.
type Reconciler struct {
	index    *availability.Index
	resolver *slots.Resolver
	catalog  slots.Catalog

	sel     Selection
	notice  *Notice
	pending *Initial

	logger *zerolog.Logger
}

// NewReconciler constructs the state machine. The duration defaults to
// the first catalog entry. A non-nil initial preselection is applied
// immediately when its date is already indexed, otherwise deferred
// until the day is merged in.
func NewReconciler(index *availability.Index, resolver *slots.Resolver, catalog slots.Catalog, initial *Initial, logger *zerolog.Logger) *Reconciler {
	r := &Reconciler{
		index:    index,
		resolver: resolver,
		catalog:  catalog,
		logger:   logger,
	}
	if len(catalog) > 0 {
		r.sel.Duration = catalog[0]
	}

	if initial != nil {
		r.sel.Date = initial.Date
		r.pending = initial
		if index.Has(initial.Date) {
			r.applyInitial()
		}
	}
	return r
}

// Selection returns the current selection.
func (r *Reconciler) Selection() Selection { return r.sel }

// Notice returns the active duration notice, or nil.
func (r *Reconciler) Notice() *Notice {
	if r.notice == nil {
		return nil
	}
	n := *r.notice
	return &n
}

// Slots returns the slot list for the current date and duration.
func (r *Reconciler) Slots() []string {
	if r.sel.Date == "" {
		return nil
	}
	return r.resolver.Resolve(r.sel.Date, r.sel.Duration)
}

// DisabledDurations returns the catalog durations that cannot be
// booked given the current date and pinned time.
func (r *Reconciler) DisabledDurations() map[int]bool {
	if r.sel.Date == "" {
		return nil
	}
	pinned := -1
	if r.sel.Time != "" {
		if start, err := timegrid.FromDisplay(r.sel.Time); err == nil {
			pinned = start
		}
	}
	return r.resolver.DisabledDurations(r.sel.Date, r.catalog, pinned)
}

// SetDuration switches the selected duration. Durations outside the
// catalog are rejected. When the new duration has no slots on the
// current date, the time is cleared and a notice points at the next
// date that supports it.
func (r *Reconciler) SetDuration(d int) bool {
	if !r.catalog.Contains(d) {
		r.logger.Warn().Int("duration", d).Msg("rejected duration outside catalog")
		return false
	}
	metrics.IncTransition("set_duration")
	r.pending = nil

	prev := r.sel.Duration
	prevTime := r.sel.Time
	r.sel.Duration = d

	if r.sel.Date == "" || d == prev {
		return true
	}

	slotList := r.resolver.Resolve(r.sel.Date, d)
	if len(slotList) > 0 {
		r.notice = nil
		r.sel.Time = chooseValidTime(slotList, prevTime, "")
	} else {
		r.raiseNotice(d)
	}

	r.logger.Debug().
		Int("duration", d).
		Str("date", r.sel.Date).
		Str("time", r.sel.Time).
		Msg("duration changed")
	return true
}

// SetDate switches the selected date. The previous time never
// survives a date change; only a pending initial time may seed the
// new date's selection.
func (r *Reconciler) SetDate(date string, reason Reason) {
	metrics.IncTransition("set_date")

	preferred := ""
	if r.pending != nil && r.pending.Date == date {
		preferred = r.pending.Time
	}
	if reason != ReasonEffect {
		r.pending = nil
	}

	r.sel.Date = date
	r.notice = nil

	slotList := r.resolver.Resolve(date, r.sel.Duration)
	r.sel.Time = chooseValidTime(slotList, "", preferred)

	r.logger.Debug().
		Str("date", date).
		Str("reason", string(reason)).
		Str("time", r.sel.Time).
		Msg("date changed")
}

// SetTime selects a start time. Times not in the currently resolved
// slot list are a logged no-op, never silently substituted.
func (r *Reconciler) SetTime(t string) bool {
	slotList := r.resolver.Resolve(r.sel.Date, r.sel.Duration)
	if !contains(slotList, t) {
		r.logger.Warn().
			Str("time", t).
			Str("date", r.sel.Date).
			Int("duration", r.sel.Duration).
			Msg("rejected time not in slot list")
		metrics.IncRejectedTimeSelection()
		return false
	}

	metrics.IncTransition("set_time")
	r.pending = nil
	r.sel.Time = t
	return true
}

// IndexUpdated re-validates the selection after new availability data
// has been merged in. A deferred initial preselection is completed
// here, exactly once.
func (r *Reconciler) IndexUpdated() {
	metrics.IncTransition("index_updated")

	if r.pending != nil {
		if !r.index.Has(r.pending.Date) {
			return
		}
		r.applyInitial()
		return
	}

	if r.sel.Date == "" {
		return
	}

	slotList := r.resolver.Resolve(r.sel.Date, r.sel.Duration)
	if len(slotList) > 0 {
		r.notice = nil
		r.sel.Time = chooseValidTime(slotList, r.sel.Time, "")
		return
	}

	r.sel.Time = ""
	if r.notice != nil {
		// Keep the notice but refresh its jump target with the new data.
		r.raiseNotice(r.sel.Duration)
	}
}

// applyInitial consumes the one-shot preselection. A stale initial
// time that is no longer a valid slot silently falls back to the
// first available one.
func (r *Reconciler) applyInitial() {
	initial := r.pending
	r.pending = nil

	if initial.Duration != 0 && r.catalog.Contains(initial.Duration) {
		r.sel.Duration = initial.Duration
	}

	r.sel.Date = initial.Date
	r.notice = nil
	slotList := r.resolver.Resolve(initial.Date, r.sel.Duration)
	r.sel.Time = chooseValidTime(slotList, "", initial.Time)

	r.logger.Debug().
		Str("date", r.sel.Date).
		Str("time", r.sel.Time).
		Int("duration", r.sel.Duration).
		Msg("initial selection applied")
}

func (r *Reconciler) raiseNotice(duration int) {
	r.notice = &Notice{
		Duration: duration,
		Date:     r.sel.Date,
		NextDate: r.nextDateSupporting(duration),
	}
	r.sel.Time = ""
	metrics.IncNoticeShown()
}

// nextDateSupporting returns the earliest indexed date other than the
// current one with at least one slot for the duration, or "".
func (r *Reconciler) nextDateSupporting(duration int) string {
	for _, date := range r.index.Dates() {
		if date == r.sel.Date {
			continue
		}
		if len(r.resolver.Resolve(date, duration)) > 0 {
			return date
		}
	}
	return ""
}

// chooseValidTime picks the time to keep after a transition:
// the previous time if still valid, else the preferred one, else the
// first slot, else nothing. This order lets a deep link's time win on
// first load without ever resurrecting a stale selection.
func chooseValidTime(slotList []string, previous, preferred string) string {
	if previous != "" && contains(slotList, previous) {
		return previous
	}
	if preferred != "" && contains(slotList, preferred) {
		return preferred
	}
	if len(slotList) > 0 {
		return slotList[0]
	}
	return ""
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

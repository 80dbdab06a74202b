// Package widget ties the selection engine together into the time
// selection modal contract: one session per open widget, owning the
// availability index, the reconciler and the confirm flow.
package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lessonbook/internal/audit"
	"lessonbook/internal/availability"
	"lessonbook/internal/pricing"
	"lessonbook/internal/selection"
	"lessonbook/internal/slots"
	"lessonbook/internal/timegrid"
)

// Instructor identifies whose availability is being booked.
type Instructor struct {
	ID       string `json:"id"`
	Timezone string `json:"timezone,omitempty"`
}

// Service is the bookable offering: its duration options, hourly rate
// and delivery modality.
type Service struct {
	ID              string `json:"id"`
	Durations       []int  `json:"durations"`
	HourlyRateCents int64  `json:"hourly_rate_cents"`
	Modality        string `json:"modality"`
}

// BookingIntent is the finalized tuple handed to the sink when the
// user confirms.
type BookingIntent struct {
	InstructorID    string `json:"instructor_id"`
	ServiceID       string `json:"service_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"` // 24h HH:MM
	EndTime         string `json:"end_time"`   // 24h HH:MM
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
}

// Provider fetches published availability; an external collaborator.
type Provider interface {
	FetchAvailability(ctx context.Context, instructorID, from, to string) (map[string]availability.Day, error)
}

// IntentSink receives confirmed booking intents; an external
// collaborator handling navigation and persistence.
type IntentSink interface {
	Submit(ctx context.Context, intent BookingIntent) error
}

// Recorder journals selection activity. Implemented by audit.Journal.
type Recorder interface {
	Record(ctx context.Context, e audit.Event) error
}

// ErrIncompleteSelection is returned by Confirm when date, time or
// duration is still missing.
var ErrIncompleteSelection = errors.New("selection incomplete")

// PriceFloorError blocks a confirm whose price falls below the floor.
// The selection itself stays untouched and remains editable.
type PriceFloorError struct {
	Violation pricing.Violation
}

func (e *PriceFloorError) Error() string {
	return fmt.Sprintf("price %d below floor %d", e.Violation.BaseCents, e.Violation.FloorCents)
}

// View is the read model the UI renders from.
type View struct {
	Selection selection.Selection `json:"selection"`
	Notice    *selection.Notice   `json:"notice,omitempty"`
	Slots     []string            `json:"slots"`
	Disabled  map[int]bool        `json:"disabled_durations,omitempty"`
}

// Options tune a session beyond its collaborators.
type Options struct {
	Location       *time.Location
	FetchAheadDays int
	Journal        Recorder
}

// Session is one open time-picker widget. All methods are safe for
// the single UI event loop plus the async fetch completions.
type Session struct {
	ID string

	instructor Instructor
	service    Service

	index    *availability.Index
	resolver *slots.Resolver
	rec      *selection.Reconciler
	guard    *pricing.Guard
	provider Provider
	sink     IntentSink
	journal  Recorder
	logger   zerolog.Logger

	mu         sync.Mutex
	inflight   map[string]bool
	lastActive time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Open starts a session and dispatches the initial availability fetch
// for the configured look-ahead window. The fetch completes as an
// index update, never synchronously.
func Open(ctx context.Context, provider Provider, sink IntentSink, guard *pricing.Guard,
	instructor Instructor, service Service, initial *selection.Initial,
	logger zerolog.Logger, opts Options) *Session {

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	fetchAhead := opts.FetchAheadDays
	if fetchAhead <= 0 {
		fetchAhead = 28
	}

	index := availability.NewIndex()
	resolver := slots.NewResolver(index, loc)
	catalog := slots.NewCatalog(service.Durations...)

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		ID:         uuid.NewString(),
		instructor: instructor,
		service:    service,
		index:      index,
		resolver:   resolver,
		guard:      guard,
		provider:   provider,
		sink:       sink,
		journal:    opts.Journal,
		inflight:   make(map[string]bool),
		lastActive: time.Now(),
		ctx:        sessionCtx,
		cancel:     cancel,
	}
	s.logger = logger.With().Str("session_id", s.ID).Logger()
	s.rec = selection.NewReconciler(index, resolver, catalog, initial, &s.logger)

	today := time.Now().In(loc)
	from := today.Format("2006-01-02")
	to := today.AddDate(0, 0, fetchAhead).Format("2006-01-02")
	s.fetchAsync(from, to)

	// A deep link may point past the look-ahead window.
	if initial != nil && initial.Date > to {
		s.fetchAsync(initial.Date, initial.Date)
	}
	return s
}

// Close discards pending fetches and state. There is no session
// resumption.
func (s *Session) Close() {
	s.cancel()
}

// View returns the current render model.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Selection: s.rec.Selection(),
		Notice:    s.rec.Notice(),
		Slots:     s.rec.Slots(),
		Disabled:  s.rec.DisabledDurations(),
	}
}

// SetDate selects a date, lazily fetching its availability on a cache
// miss.
func (s *Session) SetDate(date string, reason selection.Reason) View {
	s.mu.Lock()
	s.touch()
	s.rec.SetDate(date, reason)
	view := s.viewLocked()
	needFetch := !s.index.Has(date)
	s.mu.Unlock()

	s.record("set_date", view.Selection, string(reason), "applied")
	if needFetch {
		s.fetchAsync(date, date)
	}
	return view
}

// SetTime selects a start time; unlisted times are rejected no-ops.
func (s *Session) SetTime(t string) (View, bool) {
	s.mu.Lock()
	s.touch()
	ok := s.rec.SetTime(t)
	view := s.viewLocked()
	s.mu.Unlock()

	outcome := "applied"
	if !ok {
		outcome = "rejected"
	}
	s.record("set_time", view.Selection, "", outcome)
	return view, ok
}

// SetDuration switches the lesson duration.
func (s *Session) SetDuration(d int) (View, bool) {
	s.mu.Lock()
	s.touch()
	ok := s.rec.SetDuration(d)
	view := s.viewLocked()
	s.mu.Unlock()

	outcome := "applied"
	if !ok {
		outcome = "rejected"
	}
	s.record("set_duration", view.Selection, "", outcome)
	return view, ok
}

// Confirm finalizes the selection. A price below the configured floor
// blocks with *PriceFloorError but leaves the selection editable.
func (s *Session) Confirm(ctx context.Context) (*BookingIntent, error) {
	s.mu.Lock()
	s.touch()
	sel := s.rec.Selection()
	s.mu.Unlock()

	if sel.Date == "" || sel.Time == "" || sel.Duration == 0 {
		return nil, ErrIncompleteSelection
	}

	start, err := timegrid.FromDisplay(sel.Time)
	if err != nil {
		return nil, fmt.Errorf("selected time: %w", err)
	}

	violation, err := s.guard.Evaluate(ctx, s.service.HourlyRateCents, sel.Duration, s.service.Modality)
	if err != nil {
		return nil, fmt.Errorf("price floor lookup: %w", err)
	}
	if violation != nil {
		s.record("confirm", sel, "", "blocked_by_floor")
		return nil, &PriceFloorError{Violation: *violation}
	}

	intent := BookingIntent{
		InstructorID:    s.instructor.ID,
		ServiceID:       s.service.ID,
		Date:            sel.Date,
		StartTime:       timegrid.To24h(start),
		EndTime:         timegrid.To24h(start + sel.Duration),
		DurationMinutes: sel.Duration,
		PriceCents:      pricing.BaseCents(s.service.HourlyRateCents, sel.Duration),
	}
	if err := s.sink.Submit(ctx, intent); err != nil {
		return nil, fmt.Errorf("submit intent: %w", err)
	}

	s.record("confirm", sel, "", "submitted")
	s.logger.Info().
		Str("date", intent.Date).
		Str("start", intent.StartTime).
		Int("duration", intent.DurationMinutes).
		Msg("booking intent submitted")
	return &intent, nil
}

// LastActive reports the most recent user interaction, for store TTL
// cleanup.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}

func (s *Session) viewLocked() View {
	return View{
		Selection: s.rec.Selection(),
		Notice:    s.rec.Notice(),
		Slots:     s.rec.Slots(),
		Disabled:  s.rec.DisabledDurations(),
	}
}

// fetchAsync dispatches an availability fetch whose completion merges
// into the index and re-validates the selection. Failures are left as
// absent dates and retried on the next request for them; stale
// results cannot clobber newer user input because the merge only adds
// facts and the reconciler re-derives from its current state.
func (s *Session) fetchAsync(from, to string) {
	key := from + ".." + to

	s.mu.Lock()
	if s.inflight[key] {
		s.mu.Unlock()
		return
	}
	s.inflight[key] = true
	s.mu.Unlock()

	go func() {
		days, err := s.provider.FetchAvailability(s.ctx, s.instructor.ID, from, to)

		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.inflight, key)

		if err != nil {
			if s.ctx.Err() == nil {
				s.logger.Error().Err(err).Str("from", from).Str("to", to).Msg("availability fetch failed")
			}
			return
		}
		gen := s.index.Merge(days)
		s.rec.IndexUpdated()
		s.logger.Debug().Uint64("generation", gen).Int("days", len(days)).Msg("availability merged")
	}()
}

func (s *Session) record(eventType string, sel selection.Selection, reason, outcome string) {
	if s.journal == nil {
		return
	}
	err := s.journal.Record(s.ctx, audit.Event{
		SessionID: s.ID,
		EventType: eventType,
		Date:      sel.Date,
		Time:      sel.Time,
		Duration:  sel.Duration,
		Reason:    reason,
		Outcome:   outcome,
	})
	if err != nil && s.ctx.Err() == nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("audit record failed")
	}
}

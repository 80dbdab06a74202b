package selection

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lessonbook/internal/availability"
	"lessonbook/internal/slots"
)

var testLogger = zerolog.Nop()

type fixture struct {
	index    *availability.Index
	resolver *slots.Resolver
	catalog  slots.Catalog
}

func newFixture(days ...availability.Day) *fixture {
	index := availability.NewIndex()
	if len(days) > 0 {
		merged := make(map[string]availability.Day, len(days))
		for _, d := range days {
			merged[d.Date] = d
		}
		index.Merge(merged)
	}
	return &fixture{
		index:    index,
		resolver: slots.NewResolver(index, time.UTC),
		catalog:  slots.NewCatalog(30, 45, 60),
	}
}

func (f *fixture) reconciler(initial *Initial) *Reconciler {
	return NewReconciler(f.index, f.resolver, f.catalog, initial, &testLogger)
}

func day(date string, windows ...availability.Window) availability.Day {
	return availability.Day{Date: date, Windows: windows}
}

func TestChooseValidTime(t *testing.T) {
	tests := []struct {
		name      string
		slots     []string
		previous  string
		preferred string
		expected  string
	}{
		{name: "preferred wins when previous invalid", slots: []string{"10:00am", "11:00am"}, previous: "9:00am", preferred: "11:00am", expected: "11:00am"},
		{name: "previous wins over preferred", slots: []string{"10:00am"}, previous: "10:00am", preferred: "9:00am", expected: "10:00am"},
		{name: "empty slots yield nothing", slots: nil, previous: "10:00am", preferred: "11:00am", expected: ""},
		{name: "first slot as last resort", slots: []string{"9:30am", "10:00am"}, previous: "8:00am", preferred: "8:30am", expected: "9:30am"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chooseValidTime(tt.slots, tt.previous, tt.preferred)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// The walkthrough from the booking widget: two published dates, a
// duration with no room on the first, and the jump to the second.
func TestDurationNoticeAndJump(t *testing.T) {
	f := newFixture(
		day("2030-10-17", availability.Window{Start: 540, End: 570}), // 09:00-09:30
		day("2030-10-18", availability.Window{Start: 600, End: 720}), // 10:00-12:00
	)
	r := f.reconciler(&Initial{Date: "2030-10-17"})

	sel := r.Selection()
	assert.Equal(t, "2030-10-17", sel.Date)
	assert.Equal(t, 30, sel.Duration)
	assert.Equal(t, "9:00am", sel.Time)

	// 60 minutes does not fit the half-hour window.
	require.True(t, r.SetDuration(60))
	sel = r.Selection()
	assert.Equal(t, "2030-10-17", sel.Date, "date must not move on its own")
	assert.Equal(t, "", sel.Time)

	notice := r.Notice()
	require.NotNil(t, notice)
	assert.Equal(t, 60, notice.Duration)
	assert.Equal(t, "2030-10-17", notice.Date)
	assert.Equal(t, "2030-10-18", notice.NextDate)

	// Jump to the suggested date.
	r.SetDate(notice.NextDate, ReasonJump)
	sel = r.Selection()
	assert.Equal(t, "2030-10-18", sel.Date)
	assert.Equal(t, "10:00am", sel.Time)
	assert.Nil(t, r.Notice())
}

func TestSetDurationKeepsValidTime(t *testing.T) {
	f := newFixture(day("2030-10-17", availability.Window{Start: 540, End: 720})) // 09:00-12:00
	r := f.reconciler(&Initial{Date: "2030-10-17"})

	require.True(t, r.SetTime("10:00am"))

	// 10:00 still hosts a 60 minute lesson, so the time survives.
	require.True(t, r.SetDuration(60))
	assert.Equal(t, "10:00am", r.Selection().Time)

	// Back to 30 minutes: still valid.
	require.True(t, r.SetDuration(30))
	assert.Equal(t, "10:00am", r.Selection().Time)
}

func TestSetDurationInvalidatesStaleTime(t *testing.T) {
	f := newFixture(day("2030-10-17", availability.Window{Start: 540, End: 660})) // 09:00-11:00
	r := f.reconciler(&Initial{Date: "2030-10-17"})

	require.True(t, r.SetTime("10:30am"))

	// 10:30 + 60 overruns the window; the stale time must not survive.
	require.True(t, r.SetDuration(60))
	sel := r.Selection()
	assert.Equal(t, "9:00am", sel.Time)
	assert.Nil(t, r.Notice())
}

func TestSetDurationRejectsOutsideCatalog(t *testing.T) {
	f := newFixture(day("2030-10-17", availability.Window{Start: 540, End: 660}))
	r := f.reconciler(&Initial{Date: "2030-10-17"})

	assert.False(t, r.SetDuration(75))
	assert.Equal(t, 30, r.Selection().Duration)
}

func TestSetTimeRejectsUnlistedSlot(t *testing.T) {
	f := newFixture(day("2030-10-17", availability.Window{Start: 540, End: 660}))
	r := f.reconciler(&Initial{Date: "2030-10-17"})

	before := r.Selection()
	assert.False(t, r.SetTime("8:00pm"))
	assert.Equal(t, before, r.Selection(), "rejected selection must be a no-op")

	assert.True(t, r.SetTime("9:30am"))
	assert.Equal(t, "9:30am", r.Selection().Time)
}

func TestDeferredInitialSelection(t *testing.T) {
	f := newFixture() // nothing loaded yet
	r := f.reconciler(&Initial{Date: "2030-10-17", Time: "9:30am", Duration: 45})

	sel := r.Selection()
	assert.Equal(t, "2030-10-17", sel.Date)
	assert.Equal(t, "", sel.Time, "time deferred until availability arrives")

	// Unrelated merge: target date still missing, nothing applied.
	f.index.Merge(map[string]availability.Day{
		"2030-10-16": day("2030-10-16", availability.Window{Start: 540, End: 660}),
	})
	r.IndexUpdated()
	assert.Equal(t, "", r.Selection().Time)

	// Target date arrives: initial applied exactly once.
	f.index.Merge(map[string]availability.Day{
		"2030-10-17": day("2030-10-17", availability.Window{Start: 540, End: 660}),
	})
	r.IndexUpdated()
	sel = r.Selection()
	assert.Equal(t, "9:30am", sel.Time)
	assert.Equal(t, 45, sel.Duration)

	// A later merge must not re-apply the initial time.
	require.True(t, r.SetTime("9:00am"))
	f.index.Merge(map[string]availability.Day{
		"2030-10-19": day("2030-10-19", availability.Window{Start: 540, End: 660}),
	})
	r.IndexUpdated()
	assert.Equal(t, "9:00am", r.Selection().Time)
}

func TestStaleInitialTimeFallsBack(t *testing.T) {
	f := newFixture()
	r := f.reconciler(&Initial{Date: "2030-10-17", Time: "7:00am", Duration: 30})

	f.index.Merge(map[string]availability.Day{
		"2030-10-17": day("2030-10-17", availability.Window{Start: 540, End: 660}),
	})
	r.IndexUpdated()

	// The deep-linked slot is gone; silently take the first valid one.
	assert.Equal(t, "9:00am", r.Selection().Time)
}

func TestUserChangeCancelsPendingInitial(t *testing.T) {
	f := newFixture(day("2030-10-16", availability.Window{Start: 540, End: 660}))
	r := f.reconciler(&Initial{Date: "2030-10-17", Time: "9:30am", Duration: 45})

	// User moves off the deep-linked date before it loads.
	r.SetDate("2030-10-16", ReasonUser)
	assert.Equal(t, "9:00am", r.Selection().Time)

	// The deep-linked date arriving later must not yank the user back.
	f.index.Merge(map[string]availability.Day{
		"2030-10-17": day("2030-10-17", availability.Window{Start: 540, End: 660}),
	})
	r.IndexUpdated()
	sel := r.Selection()
	assert.Equal(t, "2030-10-16", sel.Date)
	assert.Equal(t, "9:00am", sel.Time)
}

func TestIndexUpdatedRefreshesNotice(t *testing.T) {
	f := newFixture(day("2030-10-17", availability.Window{Start: 540, End: 570}))
	r := f.reconciler(&Initial{Date: "2030-10-17"})

	require.True(t, r.SetDuration(60))
	notice := r.Notice()
	require.NotNil(t, notice)
	assert.Equal(t, "", notice.NextDate, "no indexed date supports 60 yet")

	f.index.Merge(map[string]availability.Day{
		"2030-10-18": day("2030-10-18", availability.Window{Start: 600, End: 720}),
	})
	r.IndexUpdated()

	notice = r.Notice()
	require.NotNil(t, notice)
	assert.Equal(t, "2030-10-18", notice.NextDate)
}

// The selected time is always a slot-list member or empty, no matter
// how the machine is driven.
func TestTimeInvariantUnderTransitionSequences(t *testing.T) {
	f := newFixture(
		day("2030-10-17", availability.Window{Start: 540, End: 660}),
		day("2030-10-18", availability.Window{Start: 600, End: 720}),
		day("2030-10-19", availability.Window{Start: 540, End: 570}),
	)
	r := f.reconciler(&Initial{Date: "2030-10-17"})

	steps := []func(){
		func() { r.SetDuration(45) },
		func() { r.SetDate("2030-10-19", ReasonUser) },
		func() { r.SetDuration(60) },
		func() { r.SetDate("2030-10-18", ReasonUser) },
		func() { r.SetTime("10:30am") },
		func() { r.SetDuration(30) },
		func() {
			f.index.Merge(map[string]availability.Day{
				"2030-10-20": day("2030-10-20", availability.Window{Start: 540, End: 660}),
			})
			r.IndexUpdated()
		},
		func() { r.SetDate("2030-10-20", ReasonUser) },
		func() { r.SetDuration(60) },
	}

	for i, step := range steps {
		step()
		sel := r.Selection()
		if sel.Time == "" {
			continue
		}
		slotList := f.resolver.Resolve(sel.Date, sel.Duration)
		assert.Contains(t, slotList, sel.Time, "step %d left a stale time", i)
	}
}

func TestDisabledDurationsReflectPinnedTime(t *testing.T) {
	f := newFixture(day("2030-10-17",
		availability.Window{Start: 540, End: 600}, // 09:00-10:00
		availability.Window{Start: 840, End: 885}, // 14:00-14:45
	))
	r := f.reconciler(&Initial{Date: "2030-10-17"})

	require.True(t, r.SetTime("2:00pm"))
	disabled := r.DisabledDurations()
	assert.False(t, disabled[30])
	assert.False(t, disabled[45])
	assert.True(t, disabled[60], "no window hosts 60 minutes from 2:00pm")
}

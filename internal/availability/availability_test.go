package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDay(t *testing.T) {
	day, err := BuildDay("2030-10-17", []TimeSpan{
		{Start: "09:00", End: "11:00"},
		{Start: "14:00", End: "00:00"},
	}, false)
	require.NoError(t, err)

	require.Len(t, day.Windows, 2)
	assert.Equal(t, 540, day.Windows[0].Start)
	assert.Equal(t, 660, day.Windows[0].End)

	// Midnight rollover keeps the wire encoding and normalizes on read.
	assert.Equal(t, 0, day.Windows[1].End)
	assert.Equal(t, 1440, day.Windows[1].NormalizedEnd())
}

func TestBuildDayMalformed(t *testing.T) {
	tests := []struct {
		name  string
		spans []TimeSpan
	}{
		{name: "garbage start", spans: []TimeSpan{{Start: "9am", End: "11:00"}}},
		{name: "garbage end", spans: []TimeSpan{{Start: "09:00", End: "25:00"}}},
		{name: "inverted window", spans: []TimeSpan{{Start: "11:00", End: "09:00"}}},
		{name: "empty window", spans: []TimeSpan{{Start: "09:00", End: "09:00"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildDay("2030-10-17", tt.spans, false)
			require.Error(t, err)

			var malformed *MalformedAvailabilityError
			assert.ErrorAs(t, err, &malformed)
		})
	}
}

func TestIndexMergeGrowsOnly(t *testing.T) {
	idx := NewIndex()
	assert.Equal(t, uint64(0), idx.Generation())

	gen := idx.Merge(map[string]Day{
		"2030-10-17": {Date: "2030-10-17", Windows: []Window{{Start: 540, End: 660}}},
	})
	assert.Equal(t, uint64(1), gen)

	idx.Merge(map[string]Day{
		"2030-10-18": {Date: "2030-10-18", Windows: []Window{{Start: 600, End: 720}}},
	})

	assert.Equal(t, []string{"2030-10-17", "2030-10-18"}, idx.Dates())
	assert.Equal(t, uint64(2), idx.Generation())

	day, ok := idx.Lookup("2030-10-17")
	require.True(t, ok)
	assert.Equal(t, 540, day.Windows[0].Start)

	_, ok = idx.Lookup("2030-10-19")
	assert.False(t, ok, "absent date means no availability")
}

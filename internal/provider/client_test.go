package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lessonbook/internal/availability"
	"lessonbook/internal/pricing"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, "test-key", 100, 100), srv
}

func TestFetchAvailability(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "/api/v1/instructors/inst-1/availability", r.URL.Path)
		assert.Equal(t, "2030-10-17", r.URL.Query().Get("from"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"days": [
			{"date": "2030-10-17", "windows": [{"start": "09:00", "end": "11:00"}]},
			{"date": "2030-10-18", "blackout": true, "windows": [{"start": "10:00", "end": "12:00"}]},
			{"date": "2030-10-19", "windows": [{"start": "23:30", "end": "00:00"}]}
		]}`))
	})
	defer srv.Close()

	days, err := client.FetchAvailability(context.Background(), "inst-1", "2030-10-17", "2030-10-19")
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.Equal(t, 540, days["2030-10-17"].Windows[0].Start)
	assert.Equal(t, 660, days["2030-10-17"].Windows[0].End)
	assert.True(t, days["2030-10-18"].Blackout)

	// Midnight rollover normalizes through the wire encoding.
	assert.Equal(t, 1440, days["2030-10-19"].Windows[0].NormalizedEnd())
}

func TestFetchAvailabilityMalformed(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"days": [{"date": "2030-10-17", "windows": [{"start": "9am", "end": "11:00"}]}]}`))
	})
	defer srv.Close()

	_, err := client.FetchAvailability(context.Background(), "inst-1", "2030-10-17", "2030-10-17")
	require.Error(t, err)

	var malformed *availability.MalformedAvailabilityError
	assert.ErrorAs(t, err, &malformed)
}

func TestFetchAvailabilityHTTPError(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	_, err := client.FetchAvailability(context.Background(), "inst-1", "2030-10-17", "2030-10-17")
	assert.Error(t, err)
}

func TestLookupFloor(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("modality") == "online" {
			_, _ = w.Write([]byte(`{"floor_cents": 1500, "found": true}`))
			return
		}
		_, _ = w.Write([]byte(`{"found": false}`))
	})
	defer srv.Close()

	floor, err := client.Lookup(context.Background(), "online", 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), floor)

	_, err = client.Lookup(context.Background(), "group", 30)
	assert.ErrorIs(t, err, pricing.ErrFloorNotFound)
}

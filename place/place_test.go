package place

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GoogleClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGoogleClient("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestEnrich(t *testing.T) {
	ctx := context.Background()

	t.Run("ResolvesPlace", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
			assert.Equal(t, "places.displayName,places.formattedAddress", r.Header.Get("X-Goog-FieldMask"))
			w.Write([]byte(`{"places": [{"displayName": {"text": "Trattoria da Enzo"}, "formattedAddress": "Via dei Vascellari 29, Roma"}]}`))
		})

		got, err := c.Enrich(ctx, "trattoria enzo rome")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Trattoria da Enzo", got.DisplayName)
		assert.Equal(t, "Via dei Vascellari 29, Roma", got.FormattedAddress)
		assert.Contains(t, got.MapsURL, "https://www.google.com/maps/search/?api=1&query=")
		assert.Contains(t, got.MapsURL, "Vascellari")
	})

	t.Run("NoResultsMeansNil", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"places": []}`))
		})

		got, err := c.Enrich(ctx, "nowhere")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ServerErrorMeansNil", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		got, err := c.Enrich(ctx, "anywhere")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("InvalidJSONMeansNil", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`not json`))
		})

		got, err := c.Enrich(ctx, "anywhere")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("EmptyInputsSkipNetwork", func(t *testing.T) {
		called := false
		c := newTestClient(t, func(http.ResponseWriter, *http.Request) { called = true })

		got, err := c.Enrich(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, got)

		noKey := NewGoogleClient("")
		got, err = noKey.Enrich(ctx, "somewhere")
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.False(t, called)
	})

	t.Run("MissingAddressFallsBackToName", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"places": [{"displayName": {"text": "The Park"}}]}`))
		})

		got, err := c.Enrich(ctx, "the park")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Contains(t, got.MapsURL, "The+Park")
	})
}

func TestTravelTime(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundsUpToMinutes", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Home", r.URL.Query().Get("origins"))
			w.Write([]byte(`{"status": "OK", "rows": [{"elements": [{
				"status": "OK",
				"duration": {"value": 1501, "text": "25 mins"},
				"distance": {"text": "12 km"}
			}]}]}`))
		})

		got, err := c.TravelTime(ctx, "Home", "Office")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 26, got.DurationMinutes)
		assert.Equal(t, "25 mins", got.DurationText)
		assert.Equal(t, "12 km", got.DistanceText)
	})

	t.Run("NonOKStatusMeansNil", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"status": "REQUEST_DENIED"}`))
		})

		got, err := c.TravelTime(ctx, "A", "B")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ElementNotFoundMeansNil", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"status": "OK", "rows": [{"elements": [{"status": "NOT_FOUND"}]}]}`))
		})

		got, err := c.TravelTime(ctx, "A", "B")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

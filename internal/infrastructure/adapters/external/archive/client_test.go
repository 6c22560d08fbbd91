package archive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/narwhalmedia/deadarchive/internal/config"
	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/rating"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
)

const cornellMetadata = `{
  "metadata": {
    "identifier": "gd77-05-08.sbd.hicks.4982.sbeok.shnf",
    "title": "Grateful Dead Live at Barton Hall, Cornell University on 1977-05-08",
    "date": "1977-05-08",
    "venue": ["Barton Hall, Cornell University", "Barton Hall"],
    "coverage": "Ithaca, NY",
    "source": "SBD > Reel > DAT",
    "taper": ["Betty Cantor-Jackson"]
  },
  "files": [
    {"name": "gd77-05-08d1t01.mp3", "title": "New Minglewood Blues", "track": "1", "format": "VBR MP3", "length": "05:12", "size": "5012345"},
    {"name": "gd77-05-08d2t01.mp3", "title": "Scarlet Begonias", "track": "01/09", "format": "VBR MP3", "length": "604.5", "size": 1234},
    {"name": "gd77-05-08.txt", "format": "Text"}
  ],
  "reviews": [
    {"stars": "5"}, {"stars": 4.6}, {"stars": "0"}, {"stars": ["3"]}
  ]
}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.CatalogConfig{
		BaseURL:         server.URL,
		Collection:      "GratefulDead",
		Timeout:         2 * time.Second,
		RetryAttempts:   5,
		RetryInitial:    time.Millisecond,
		RetryMultiplier: 1.5,
	}, zaptest.NewLogger(t))
}

func TestClient_FetchRecording(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metadata/gd77-05-08.sbd.hicks.4982.sbeok.shnf", r.URL.Path)
		w.Write([]byte(cornellMetadata))
	}))

	rec, err := client.FetchRecording(context.Background(), "gd77-05-08.sbd.hicks.4982.sbeok.shnf")
	require.NoError(t, err)

	assert.Equal(t, "1977-05-08", rec.Date)
	assert.Equal(t, "Barton Hall, Cornell University", rec.VenueName)
	assert.Equal(t, "Ithaca, NY", rec.Location)
	assert.Equal(t, catalog.SourceSoundboard, rec.SourceType)
	assert.Equal(t, "Betty Cantor-Jackson", rec.Taper)
	assert.True(t, rec.Hydrated)
	assert.Equal(t, rating.Tally{0, 0, 1, 0, 2}, rec.Tally)

	require.Len(t, rec.Tracks, 2)
	assert.Equal(t, 1, rec.Tracks[0].SetNumber)
	assert.Equal(t, 5*time.Minute+12*time.Second, rec.Tracks[0].Duration)
	assert.Equal(t, int64(5012345), rec.Tracks[0].Size)
	assert.Equal(t, 2, rec.Tracks[1].SetNumber)
	assert.Equal(t, 1, rec.Tracks[1].TrackNumber)
	assert.True(t, strings.HasSuffix(rec.Tracks[1].URL, "/download/gd77-05-08.sbd.hicks.4982.sbeok.shnf/gd77-05-08d2t01.mp3"))
}

func TestClient_FetchRecording_ReviewsFallback(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/reviews") {
			w.Write([]byte(`{"result": [{"stars": 4}, {"stars": 4}]}`))
			return
		}
		w.Write([]byte(`{"metadata": {"identifier": "x", "date": "1977-05-08", "venue": "Barton Hall"}}`))
	}))

	rec, err := client.FetchRecording(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, rating.Tally{0, 0, 0, 2, 0}, rec.Tally)
}

func TestClient_FetchRecording_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(error) bool
		retried bool
	}{
		{"not found", http.StatusNotFound, "", apperrors.IsNotFound, false},
		{"empty item", http.StatusOK, "{}", apperrors.IsNotFound, false},
		{"rate limited", http.StatusTooManyRequests, "", apperrors.IsRetryable, true},
		{"unavailable", http.StatusServiceUnavailable, "", apperrors.IsRetryable, true},
		{"server error", http.StatusInternalServerError, "", apperrors.IsRetryable, true},
		{"malformed", http.StatusOK, "{not json", func(err error) bool {
			return apperrors.TypeOf(err) == apperrors.ErrorTypeMalformed
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			_, err := client.FetchRecording(context.Background(), "gd77-05-08")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
			assert.True(t, apperrors.IsRemoteFailure(err))

			if tt.retried {
				assert.Equal(t, int32(5), calls.Load())
			} else {
				assert.Equal(t, int32(1), calls.Load())
			}
		})
	}
}

func TestClient_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(cornellMetadata))
	}))

	_, err := client.FetchRecording(context.Background(), "gd77-05-08.sbd.hicks.4982.sbeok.shnf")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Search(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/advancedsearch.php", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "collection:GratefulDead AND mediatype:etree AND year:[1977 TO 1977]", q.Get("q"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "50", q.Get("rows"))

		resp := map[string]interface{}{
			"response": map[string]interface{}{
				"numFound": 2,
				"docs": []map[string]interface{}{
					{"identifier": "gd77-05-08.sbd", "date": "1977-05-08T00:00:00Z", "venue": "Barton Hall", "avg_rating": "4.5", "num_reviews": 10},
					{"identifier": "gd77-05-09.aud", "date": "1977-05-09T00:00:00Z", "venue": []string{"Buffalo Memorial Auditorium"}, "title": "aud recording"},
					{"date": "1977-05-10"},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))

	recs, err := client.Search(context.Background(), catalog.ParseQuery("1977"), 2, 50)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, catalog.SourceSoundboard, recs[0].SourceType)
	assert.Equal(t, 10, recs[0].Tally.Count())
	assert.InDelta(t, 4.5, float64(recs[0].Tally.Sum())/10, 0.1)
	assert.False(t, recs[0].Hydrated)

	assert.Equal(t, "Buffalo Memorial Auditorium", recs[1].VenueName)
	assert.Equal(t, catalog.SourceAudience, recs[1].SourceType)
}

func TestClient_ContextCancelled(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchRecording(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildQuery(t *testing.T) {
	c := &Client{collection: "GratefulDead"}

	q, sort := c.buildQuery(catalog.ParseQuery(""))
	assert.Equal(t, "collection:GratefulDead AND mediatype:etree", q)
	assert.Equal(t, "date desc", sort)

	q, _ = c.buildQuery(catalog.ParseQuery("1977-05-08"))
	assert.Contains(t, q, "date:[1977-05-08 TO 1977-05-08]")

	q, _ = c.buildQuery(catalog.ParseQuery("1970s"))
	assert.Contains(t, q, "year:[1970 TO 1979]")

	q, _ = c.buildQuery(catalog.ParseQuery("venue:Winterland"))
	assert.Contains(t, q, "venue:(winterland)")

	q, _ = c.buildQuery(catalog.ParseQuery("dark star: jam"))
	assert.Contains(t, q, `(dark star\: jam)`)
}

func TestBackoff(t *testing.T) {
	waits := Backoff(5, time.Second, 1.5)
	assert.Equal(t, []time.Duration{
		time.Second,
		1500 * time.Millisecond,
		2250 * time.Millisecond,
		3375 * time.Millisecond,
	}, waits)
	assert.Nil(t, Backoff(1, time.Second, 1.5))
}

func TestFlexTypes(t *testing.T) {
	var doc SearchDoc
	require.NoError(t, json.Unmarshal([]byte(`{
		"identifier": 123,
		"venue": {"unexpected": true},
		"avg_rating": "n/a",
		"num_reviews": "7"
	}`), &doc))

	assert.Equal(t, "123", doc.Identifier.String())
	assert.Equal(t, "", doc.Venue.String())
	assert.Equal(t, flexFloat(0), doc.AvgRating)
	assert.Equal(t, flexInt(7), doc.NumReviews)
}

package places

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key", srv.URL, time.Second)
	c.retry.InitialDelay = time.Millisecond
	c.retry.MaxDelay = 5 * time.Millisecond
	return c
}

func TestNearbySearch(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/place/nearbysearch/json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("key") != "test-key" || q.Get("location") != "3.139,101.6869" || q.Get("radius") != "1500" || q.Get("type") != "restaurant" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[
			{"place_id":"p1","name":"Jalan Alor Satay","vicinity":"Bukit Bintang","rating":4.3,"user_ratings_total":210,"price_level":1,
			 "geometry":{"location":{"lat":3.145,"lng":101.709}},"types":["food","malaysian_restaurant","restaurant"],
			 "opening_hours":{"open_now":true},
			 "photos":[{"photo_reference":"a","width":1,"height":1},{"photo_reference":"b"},{"photo_reference":"c"},{"photo_reference":"d"}]},
			{"place_id":"p2","name":"Mystery","geometry":{"location":{"lat":0,"lng":0}}}
		]}`))
	})

	got, err := c.NearbySearch(context.Background(), LatLng{Lat: 3.139, Lng: 101.6869}, 1500)
	if err != nil {
		t.Fatalf("NearbySearch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 places, got %d", len(got))
	}

	p := got[0]
	if p.PlaceID != "p1" || p.Address != "Bukit Bintang" || p.Cuisine != "malaysian_restaurant" || p.TotalReviews != 210 {
		t.Fatalf("unexpected place %+v", p)
	}
	if p.PriceRange.Symbol != "$" || p.PriceRange.Range != "RM10-25" {
		t.Fatalf("unexpected price range %+v", p.PriceRange)
	}
	if p.IsOpen == nil || !*p.IsOpen || len(p.Photos) != 3 {
		t.Fatalf("unexpected open/photos %+v", p)
	}
	if got[1].PriceLevel != nil || got[1].PriceRange.Symbol != "?" || got[1].Cuisine != "restaurant" {
		t.Fatalf("unexpected defaults %+v", got[1])
	}
}

func TestNearbySearchZeroResults(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	})

	got, err := c.NearbySearch(context.Background(), LatLng{}, 1000)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
}

func TestGeocodeNotFound(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	})

	_, err := c.Geocode(context.Background(), "nowhere")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.NotFound() {
		t.Fatalf("expected not-found APIError, got %v", err)
	}
}

func TestDetailsReviews(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("place_id") != "p1" {
			t.Errorf("unexpected place id %s", r.URL.Query().Get("place_id"))
		}
		_, _ = w.Write([]byte(`{"status":"OK","result":{"place_id":"p1","name":"Kedai Kopi","formatted_address":"1 Jalan Sultan",
			"geometry":{"location":{"lat":1,"lng":2}},"formatted_phone_number":"03-1234",
			"opening_hours":{"weekday_text":["Monday: 8AM-5PM"]},
			"reviews":[{"author_name":"Tan Ah Kow","rating":5,"text":"Kopi peng is great","time":1700000000}]}}`))
	})

	d, err := c.Details(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if d.Address != "1 Jalan Sultan" || d.Phone != "03-1234" || len(d.OpeningHours) != 1 {
		t.Fatalf("unexpected details %+v", d)
	}
	if len(d.Reviews) != 1 {
		t.Fatalf("expected 1 review, got %d", len(d.Reviews))
	}
	rv := d.Reviews[0]
	if rv.ID() != "google_1700000000_Tan_Ah_Kow" || rv.Language != "en" || rv.Date().Year() != 2023 {
		t.Fatalf("unexpected review %+v id=%s", rv, rv.ID())
	}
}

func TestRequestDeniedIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	})

	_, err := c.Autocomplete(context.Background(), "nasi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != "REQUEST_DENIED" || apiErr.Message != "bad key" {
		t.Fatalf("expected REQUEST_DENIED, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestServerErrorIsRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","predictions":[{"description":"Nasi Lemak Tanglin","place_id":"p9","structured_formatting":{"main_text":"Nasi Lemak Tanglin"}}]}`))
	})

	got, err := c.Autocomplete(context.Background(), "nasi")
	if err != nil {
		t.Fatalf("Autocomplete: %v", err)
	}
	if len(got) != 1 || got[0].PlaceID != "p9" || got[0].MainText != "Nasi Lemak Tanglin" {
		t.Fatalf("unexpected predictions %+v", got)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestTransportErrorHidesAPIKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient("SECRET-KEY-123", srv.URL, time.Second)
	c.retry.InitialDelay = time.Millisecond
	c.retry.MaxDelay = 5 * time.Millisecond

	_, err := c.Geocode(context.Background(), "Kuala Lumpur")
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if strings.Contains(err.Error(), "SECRET-KEY-123") {
		t.Fatalf("API key leaked in error: %v", err)
	}
	if !strings.Contains(err.Error(), "key=REDACTED") {
		t.Fatalf("expected redacted URL in error: %v", err)
	}
}

func TestNotConfigured(t *testing.T) {
	t.Parallel()

	c := NewClient("", "http://unused", time.Second)
	if _, err := c.Autocomplete(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

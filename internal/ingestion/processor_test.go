package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/trustbites/backend/internal/places"
	"github.com/trustbites/backend/internal/storage/models"
)

type fakeSource struct {
	details *places.PlaceDetails
	err     error
}

func (f fakeSource) Details(context.Context, string) (*places.PlaceDetails, error) {
	return f.details, f.err
}

type memStore struct {
	restaurants map[string]*models.Restaurant
	reviews     map[string]*models.Review
}

func newMemStore() *memStore {
	return &memStore{restaurants: map[string]*models.Restaurant{}, reviews: map[string]*models.Review{}}
}

func (m *memStore) UpsertRestaurant(_ context.Context, r *models.Restaurant) error {
	m.restaurants[r.ID] = r
	return nil
}

func (m *memStore) InsertReview(_ context.Context, r *models.Review) (bool, error) {
	if _, ok := m.reviews[r.ID]; ok {
		return false, nil
	}
	m.reviews[r.ID] = r
	return true, nil
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  plain   text\n here ":                             "plain text here",
		"Great <b>laksa</b><br>and <script>x()</script>kopi": "Great laksa and kopi",
		"Fish &amp; chips":                                   "Fish & chips",
		"":                                                   "",
	}
	for in, want := range cases {
		if got := SanitizeText(in); got != want {
			t.Fatalf("SanitizeText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestImportPlaceReviews(t *testing.T) {
	t.Parallel()

	level := 2
	details := &places.PlaceDetails{
		Place: places.Place{PlaceID: "p1", Name: "Restoran Rebung", Rating: 4.1, TotalReviews: 90, PriceLevel: &level, Cuisine: "malaysian_restaurant"},
		Reviews: []places.PlaceReview{
			{AuthorName: "Lim Mei", Rating: 5, Text: "Staff were lovely", Time: 1700000000, Language: "en"},
			{AuthorName: "", Rating: 3, Text: "  ", Time: 1700000100, Language: "en"},
			{AuthorName: "Raj", Rating: 2, Text: "Too <i>salty</i>", Time: 1700000200, Language: "ms"},
		},
	}
	store := newMemStore()
	p := NewProcessor(fakeSource{details: details}, store)

	res, err := p.ImportPlaceReviews(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ImportPlaceReviews: %v", err)
	}
	if res.Imported != 2 || res.Skipped != 1 || res.RestaurantID != "p1" {
		t.Fatalf("unexpected result %+v", res)
	}

	r, ok := store.reviews["google_1700000000_Lim_Mei"]
	if !ok {
		t.Fatalf("review id not derived from time and author: %v", store.reviews)
	}
	if r.Status != models.ReviewStatusPending || r.Source != models.ReviewSourcePlaces || r.ReviewHash == "" {
		t.Fatalf("unexpected review %+v", r)
	}
	if store.reviews["google_1700000200_Raj"].ReviewText != "Too salty" {
		t.Fatalf("review text not sanitized")
	}
	if got := store.restaurants["p1"]; got == nil || *got.PriceLevel != 2 {
		t.Fatalf("restaurant not stored: %+v", got)
	}

	again, err := p.ImportPlaceReviews(context.Background(), "p1")
	if err != nil || again.Imported != 0 || again.Skipped != 3 {
		t.Fatalf("re-import should skip everything: %+v %v", again, err)
	}
}

func TestImportPlaceReviewsSourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("quota")
	p := NewProcessor(fakeSource{err: boom}, newMemStore())
	if _, err := p.ImportPlaceReviews(context.Background(), "p1"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/trustbites/backend/internal/auth"
	"github.com/trustbites/backend/internal/dashboard"
	"github.com/trustbites/backend/internal/detection"
	"github.com/trustbites/backend/internal/ingestion"
	"github.com/trustbites/backend/internal/places"
	"github.com/trustbites/backend/internal/reviews"
	"github.com/trustbites/backend/internal/storage/models"
	"github.com/trustbites/backend/internal/storage/sqlite"
)

const testModel = "meta.llama3-70b-instruct-v1:0"

type fixedInvoker struct {
	text string
}

func (f fixedInvoker) Invoke(ctx context.Context, prompt, modelID string) (string, error) {
	return f.text, nil
}

type stubPlaces struct{}

func (stubPlaces) Geocode(ctx context.Context, address string) (places.LatLng, error) {
	return places.LatLng{Lat: 1, Lng: 2}, nil
}

func (stubPlaces) NearbySearch(ctx context.Context, loc places.LatLng, radius int) ([]places.Place, error) {
	return []places.Place{{PlaceID: "p1", Name: "Noodle Bar"}}, nil
}

func (stubPlaces) Details(ctx context.Context, placeID string) (*places.PlaceDetails, error) {
	return nil, &places.APIError{Endpoint: "details", Status: "NOT_FOUND"}
}

func (stubPlaces) Autocomplete(ctx context.Context, input string) ([]places.Prediction, error) {
	return nil, nil
}

func newTestApp(t *testing.T) (*fiber.App, *sqlite.Client) {
	t.Helper()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("sqlite.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	if err := store.UpsertRestaurant(context.Background(), &models.Restaurant{ID: "r1", Name: "Cafe"}); err != nil {
		t.Fatalf("UpsertRestaurant: %v", err)
	}

	inv := fixedInvoker{text: `{"classification":"genuine","confidence":0.9,"reasons":["specific_details"],"sentiment":"positive","languageConfidence":0.9,"explanation":"Specific"}`}
	detector := detection.NewDetector(inv, detection.Config{DefaultModel: testModel})
	src := stubPlaces{}
	svc := reviews.NewService(detector, store, nil, src, reviews.Config{
		Models:           []string{testModel},
		ModelLabelPrefix: "bedrock-",
	})

	app := NewApp(Deps{
		Reviews:   svc,
		Dashboard: dashboard.NewService(store),
		Auth:      auth.NewService(store, "test-secret", time.Hour),
		Processor: ingestion.NewProcessor(src, store),
		Places:    src,
		Store:     store,
		Health:    nil,
	}, Options{})
	return app, store
}

func do(t *testing.T, app *fiber.App, method, path, body string, cookies ...*http.Cookie) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := app.Test(req, 10_000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := do(t, app, http.MethodGet, "/api/v1/health", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, app, http.MethodGet, "/api/v1/ready", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ready" {
		t.Fatalf("ready = %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}
}

func TestSubmitAndAnalyzeReview(t *testing.T) {
	app, store := newTestApp(t)

	resp, body := do(t, app, http.MethodPost, "/api/v1/reviews",
		`{"restaurantId":"r1","reviewText":"The pho broth was rich and the basil fresh.","rating":5}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status = %d body %v", resp.StatusCode, body)
	}
	review, _ := body["review"].(map[string]any)
	reviewID, _ := review["reviewId"].(string)
	if reviewID == "" {
		t.Fatalf("missing review id in %v", body)
	}
	analysis, _ := body["analysis"].(map[string]any)
	if analysis["classification"] != "genuine" {
		t.Fatalf("analysis = %v", analysis)
	}

	stored, err := store.GetReview(context.Background(), reviewID)
	if err != nil {
		t.Fatalf("GetReview: %v", err)
	}
	if stored.Status != models.ReviewStatusAnalyzed {
		t.Fatalf("status = %q", stored.Status)
	}

	resp, body = do(t, app, http.MethodGet, "/api/v1/ai/analyze?reviewId="+reviewID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analyze get = %d %v", resp.StatusCode, body)
	}
	data, _ := body["data"].(map[string]any)
	if data["modelUsed"] != testModel {
		t.Fatalf("modelUsed = %v", data["modelUsed"])
	}

	resp, body = do(t, app, http.MethodGet, "/api/v1/reviews?restaurantId=r1", "")
	if resp.StatusCode != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("list = %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, app, http.MethodGet, "/api/v1/reviews/analyses?restaurantId=r1", "")
	if resp.StatusCode != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("analyses = %d %v", resp.StatusCode, body)
	}
	records, _ := body["analyses"].([]any)
	first, _ := records[0].(map[string]any)
	if first["aiModel"] != "bedrock-"+testModel {
		t.Fatalf("aiModel = %v", first["aiModel"])
	}
}

func TestSubmitRejectsBadInput(t *testing.T) {
	app, _ := newTestApp(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"missing text", `{"restaurantId":"r1","rating":4}`, http.StatusBadRequest},
		{"rating out of range", `{"restaurantId":"r1","reviewText":"ok","rating":9}`, http.StatusBadRequest},
		{"malformed json", `{"restaurantId":`, http.StatusBadRequest},
		{"script in author", `{"restaurantId":"r1","reviewText":"ok","authorName":"<script>x</script>"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, body := do(t, app, http.MethodPost, "/api/v1/reviews", tc.body)
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: status = %d, want %d (%v)", tc.name, resp.StatusCode, tc.want, body)
		}
		if body["success"] != false {
			t.Fatalf("%s: success = %v", tc.name, body["success"])
		}
	}
}

func TestAnalyzeActions(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := do(t, app, http.MethodPost, "/api/v1/ai/analyze", `{"action":"analyze-pending"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pending = %d %v", resp.StatusCode, body)
	}
	data, _ := body["data"].(map[string]any)
	if data["processed"] != float64(0) || data["errors"] != float64(0) {
		t.Fatalf("pending data = %v", data)
	}

	resp, _ = do(t, app, http.MethodPost, "/api/v1/ai/analyze", `{"action":"rebuild"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown action status = %d", resp.StatusCode)
	}

	resp, _ = do(t, app, http.MethodGet, "/api/v1/ai/analyze", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing reviewId status = %d", resp.StatusCode)
	}

	resp, body = do(t, app, http.MethodPost, "/api/v1/ai/analyze", `{"action":"analyze-single"}`)
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "reviewId is required for analyze-single" {
		t.Fatalf("analyze-single without reviewId = %d %v", resp.StatusCode, body)
	}

	resp, _ = do(t, app, http.MethodPost, "/api/v1/ai/analyze", `{"action":"analyze-single","reviewId":"nope"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown review status = %d", resp.StatusCode)
	}
}

func TestAuthFlowAndDashboard(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := do(t, app, http.MethodGet, "/api/v1/dashboard/summary", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("summary without cookie = %d", resp.StatusCode)
	}

	resp, body := do(t, app, http.MethodPost, "/api/v1/auth/register",
		`{"email":"owner@cafe.test","password":"longpassword","confirmPassword":"longpassword","ownerName":"Sam","businessName":"Cafe","restaurantId":"r1"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register = %d %v", resp.StatusCode, body)
	}

	resp, _ = do(t, app, http.MethodPost, "/api/v1/auth/login", `{"email":"owner@cafe.test","password":"wrongpassword"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", resp.StatusCode)
	}

	resp, _ = do(t, app, http.MethodPost, "/api/v1/auth/login", `{"email":"owner@cafe.test","password":"longpassword"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login = %d", resp.StatusCode)
	}
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			session = c
		}
	}
	if session == nil || session.Value == "" {
		t.Fatalf("login did not set %s cookie", auth.CookieName)
	}

	resp, body = do(t, app, http.MethodGet, "/api/v1/auth/check", "", session)
	if resp.StatusCode != http.StatusOK || body["authenticated"] != true {
		t.Fatalf("check = %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, app, http.MethodGet, "/api/v1/dashboard/summary", "", session)
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("summary = %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, app, http.MethodGet, "/api/v1/business/dashboard", "", session)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("business = %d %v", resp.StatusCode, body)
	}
	business, _ := body["business"].(map[string]any)
	if business["name"] != "Cafe" {
		t.Fatalf("business = %v", business)
	}

	resp, body = do(t, app, http.MethodGet, "/api/v1/auth/check", "")
	if resp.StatusCode != http.StatusUnauthorized || body["authenticated"] != false {
		t.Fatalf("check without cookie = %d %v", resp.StatusCode, body)
	}
}

func TestDashboardTrendsPeriod(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := do(t, app, http.MethodGet, "/api/v1/dashboard/trends?period=400", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("period=400 status = %d", resp.StatusCode)
	}
	resp, body := do(t, app, http.MethodGet, "/api/v1/dashboard/trends?period=7", "")
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("trends = %d %v", resp.StatusCode, body)
	}
}

func TestRestaurantRoutes(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := do(t, app, http.MethodGet, "/api/v1/restaurants/search", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("search without location = %d", resp.StatusCode)
	}

	resp, body := do(t, app, http.MethodGet, "/api/v1/restaurants/search?location=Hanoi", "")
	if resp.StatusCode != http.StatusOK || body["total"] != float64(1) {
		t.Fatalf("search = %d %v", resp.StatusCode, body)
	}

	resp, _ = do(t, app, http.MethodGet, "/api/v1/restaurants/missing", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("details of unknown place = %d", resp.StatusCode)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws/analysis", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusUpgradeRequired)
	}
}

package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/metrics"
	"github.com/trustbites/backend/pkg/circuitbreaker"
	"github.com/trustbites/backend/pkg/logger"
	"github.com/trustbites/backend/pkg/retry"
)

var ErrNotConfigured = errors.New("places API key not configured")

// APIError is a places API response whose status is not OK.
type APIError struct {
	Endpoint string
	Status   string
	Message  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("places %s: %s: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("places %s: %s", e.Endpoint, e.Status)
}

// NotFound reports statuses that mean the lookup legitimately found nothing.
func (e *APIError) NotFound() bool {
	return e.Status == "ZERO_RESULTS" || e.Status == "NOT_FOUND"
}

type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("places API returned status %d", e.code)
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	retry      retry.Policy
}

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	policy := retry.DefaultPolicy()
	policy.Retryable = isTransient
	policy.Logger = logger.Named("places.retry")

	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: circuitbreaker.New("places", circuitbreaker.Config{
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
			IsFailure:        isTransient,
			Logger:           logger.Named("places.breaker"),
		}),
		retry: policy,
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == "UNKNOWN_ERROR"
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.code >= 500 || statusErr.code == http.StatusTooManyRequests
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

type apiStatus struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// call performs one GET against the places API and decodes the body into
// out. Transient failures are retried behind the circuit breaker.
func (c *Client) call(ctx context.Context, endpoint, path string, params url.Values, out any, allowZero bool) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	params.Set("key", c.apiKey)
	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.fetch(ctx, endpoint, fullURL, out, allowZero)
		})
	})

	status := "ok"
	if err != nil {
		status = "error"
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			status = strings.ToLower(apiErr.Status)
		}
	}
	metrics.PlacesRequestsTotal.WithLabelValues(endpoint, status).Inc()

	return err
}

func (c *Client) fetch(ctx context.Context, endpoint, fullURL string, out any, allowZero bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", c.redact(err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call places %s: %w", endpoint, c.redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var st apiStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return fmt.Errorf("failed to decode places %s response: %w", endpoint, err)
	}
	if st.Status != "OK" && !(allowZero && st.Status == "ZERO_RESULTS") {
		return &APIError{Endpoint: endpoint, Status: st.Status, Message: st.ErrorMessage}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode places %s response: %w", endpoint, err)
	}
	return nil
}

// redact strips the API key from the URL carried by transport errors so
// it never reaches the logs.
func (c *Client) redact(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{
		Op:  uerr.Op,
		URL: strings.ReplaceAll(uerr.URL, "key="+url.QueryEscape(c.apiKey), "key=REDACTED"),
		Err: uerr.Err,
	}
}

// Geocode resolves a free-text address to coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (LatLng, error) {
	var resp struct {
		Results []struct {
			Geometry struct {
				Location LatLng `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}

	params := url.Values{}
	params.Set("address", address)
	if err := c.call(ctx, "geocode", "/geocode/json", params, &resp, false); err != nil {
		return LatLng{}, err
	}
	if len(resp.Results) == 0 {
		return LatLng{}, &APIError{Endpoint: "geocode", Status: "ZERO_RESULTS"}
	}

	loc := resp.Results[0].Geometry.Location
	logger.Debug("Address geocoded", zap.String("address", address), zap.Float64("lat", loc.Lat), zap.Float64("lng", loc.Lng))
	return loc, nil
}

// NearbySearch lists restaurants within radius metres of loc.
func (c *Client) NearbySearch(ctx context.Context, loc LatLng, radius int) ([]Place, error) {
	var resp struct {
		Results []rawPlace `json:"results"`
	}

	params := url.Values{}
	params.Set("location", fmt.Sprintf("%s,%s",
		strconv.FormatFloat(loc.Lat, 'f', -1, 64),
		strconv.FormatFloat(loc.Lng, 'f', -1, 64)))
	params.Set("radius", strconv.Itoa(radius))
	params.Set("type", "restaurant")
	if err := c.call(ctx, "nearbysearch", "/place/nearbysearch/json", params, &resp, true); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(resp.Results))
	for _, p := range resp.Results {
		places = append(places, p.toPlace(3))
	}

	logger.Info("Nearby search completed", zap.Int("results", len(places)), zap.Int("radius", radius))
	return places, nil
}

const detailsFields = "name,formatted_address,geometry,rating,user_ratings_total,reviews,place_id,types,price_level,opening_hours,formatted_phone_number,website,photos"

// Details fetches one place with its most relevant reviews.
func (c *Client) Details(ctx context.Context, placeID string) (*PlaceDetails, error) {
	var resp struct {
		Result rawPlace `json:"result"`
	}

	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", detailsFields)
	if err := c.call(ctx, "details", "/place/details/json", params, &resp, false); err != nil {
		return nil, err
	}

	details := resp.Result.toDetails()
	if details.PlaceID == "" {
		details.PlaceID = placeID
	}
	return details, nil
}

// Autocomplete suggests establishments matching input.
func (c *Client) Autocomplete(ctx context.Context, input string) ([]Prediction, error) {
	var resp struct {
		Predictions []struct {
			Description          string   `json:"description"`
			PlaceID              string   `json:"place_id"`
			Types                []string `json:"types"`
			StructuredFormatting struct {
				MainText      string `json:"main_text"`
				SecondaryText string `json:"secondary_text"`
			} `json:"structured_formatting"`
		} `json:"predictions"`
	}

	params := url.Values{}
	params.Set("input", input)
	params.Set("types", "establishment")
	if err := c.call(ctx, "autocomplete", "/place/autocomplete/json", params, &resp, true); err != nil {
		return nil, err
	}

	predictions := make([]Prediction, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		predictions = append(predictions, Prediction{
			Description:   p.Description,
			PlaceID:       p.PlaceID,
			Types:         p.Types,
			MainText:      p.StructuredFormatting.MainText,
			SecondaryText: p.StructuredFormatting.SecondaryText,
		})
	}
	return predictions, nil
}

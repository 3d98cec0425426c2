package handlers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/trustbites/backend/internal/detection"
	"github.com/trustbites/backend/internal/places"
	"github.com/trustbites/backend/internal/reviews"
	"github.com/trustbites/backend/internal/storage/sqlite"
)

type countingInvoker struct {
	calls atomic.Int64
}

func (c *countingInvoker) Invoke(ctx context.Context, prompt, modelID string) (string, error) {
	c.calls.Add(1)
	return `{"classification":"genuine","confidence":0.9,"reasons":["specific_details"],"sentiment":"positive","languageConfidence":0.9,"explanation":"Specific"}`, nil
}

type placeDetails struct {
	details *places.PlaceDetails
}

func (p placeDetails) Details(ctx context.Context, placeID string) (*places.PlaceDetails, error) {
	return p.details, nil
}

func TestStreamAnalysisStopsWhenClientGone(t *testing.T) {
	t.Parallel()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "ws.db"))
	if err != nil {
		t.Fatalf("sqlite.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}

	details := &places.PlaceDetails{Place: places.Place{PlaceID: "place-ws", Name: "Mamak Corner"}}
	for i := 0; i < 6; i++ {
		details.Reviews = append(details.Reviews, places.PlaceReview{
			AuthorName: fmt.Sprintf("Diner %d", i),
			Rating:     4,
			Text:       fmt.Sprintf("Teh tarik number %d was frothy", i),
			Time:       1714550400 + int64(i),
			Language:   "en",
		})
	}

	inv := &countingInvoker{}
	detector := detection.NewDetector(inv, detection.Config{DefaultModel: "m", BatchSize: 1})
	svc := reviews.NewService(detector, store, nil, placeDetails{details: details}, reviews.Config{Models: []string{"m"}})
	h := NewWebSocketHandler(svc)

	var sent []string
	send := func(msg map[string]any) error {
		kind, _ := msg["type"].(string)
		if kind == "review" {
			return errors.New("broken pipe")
		}
		sent = append(sent, kind)
		return nil
	}

	err = h.streamAnalysis(context.Background(), send, wsRequest{Type: "analyze", PlaceID: "place-ws"})
	if err == nil {
		t.Fatalf("expected write error")
	}
	if n := inv.calls.Load(); n != 1 {
		t.Fatalf("model called %d times after client left, want 1", n)
	}
	if len(sent) != 1 || sent[0] != "status" {
		t.Fatalf("unexpected messages %v", sent)
	}
}

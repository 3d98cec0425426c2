package detection

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trustbites/backend/internal/llm"
)

type stubInvoker struct {
	text string
	err  error

	mu       sync.Mutex
	inFlight int
	maxSeen  int
	hold     time.Duration
	calls    atomic.Int64
}

func (s *stubInvoker) Invoke(ctx context.Context, prompt, modelID string) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxSeen {
		s.maxSeen = s.inFlight
	}
	s.mu.Unlock()

	if s.hold > 0 {
		time.Sleep(s.hold)
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	if s.err != nil {
		return "", &llm.ModelInvocationError{ModelID: modelID, Cause: s.err}
	}
	return s.text, nil
}

func review(text string) ReviewForAnalysis {
	return ReviewForAnalysis{
		ReviewID:   "r1",
		ReviewText: text,
		Rating:     4,
		Language:   "en",
		AuthorName: "Aisyah",
		ReviewDate: "2024-05-01T10:00:00Z",
	}
}

func checkAnalysisShape(t *testing.T, a FakeReviewAnalysis) {
	t.Helper()
	if !a.Classification.Valid() {
		t.Fatalf("invalid classification %q", a.Classification)
	}
	if a.IsFake != (a.Classification == Fake || a.Classification == Suspicious) {
		t.Fatalf("isFake %v inconsistent with %q", a.IsFake, a.Classification)
	}
	if a.Confidence < 0 || a.Confidence > 1 || a.LanguageConfidence < 0 || a.LanguageConfidence > 1 {
		t.Fatalf("confidence out of range: %v / %v", a.Confidence, a.LanguageConfidence)
	}
}

func TestBuildPromptEmbedsFields(t *testing.T) {
	t.Parallel()

	r := review("Nasi lemak was great")
	prompt := BuildPrompt(r)
	for _, want := range []string{
		`- Text: "Nasi lemak was great"`,
		"- Rating: 4/5 stars",
		"- Language: en",
		"- Author: Aisyah",
		"- Date: 2024-05-01T10:00:00Z",
		"- Restaurant: Unknown",
		"**Generic Language**",
		"**Specificity**",
		`"classification": "genuine/suspicious/fake"`,
		`"languageConfidence": 0.0-1.0`,
		"Medium confidence (0.5-0.8)",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}

	r.RestaurantName = "Village Park"
	if !strings.Contains(BuildPrompt(r), "- Restaurant: Village Park") {
		t.Fatalf("prompt missing restaurant name")
	}
}

func TestFallbackScenarios(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		text       string
		want       Classification
		confidence float64
		reasons    []string
	}{
		{
			name:       "promotional",
			text:       "This place is amazing! Best food ever! Highly recommend!",
			want:       Fake,
			confidence: 0.8,
			reasons:    []string{"excessive_positive_language", "promotional_content"},
		},
		{
			name:       "negative",
			text:       "Worst place ever, terrible service, never again, disgusting food.",
			want:       Suspicious,
			confidence: 0.7,
			reasons:    []string{"excessive_negative_language", "potentially_biased"},
		},
		{
			name:       "detailed",
			text:       "Booked with OpenTable, staff were attentive, the chili sauce was outstanding, though aircon was a bit weak - overall great 2-night stay",
			want:       Genuine,
			confidence: 0.85,
			reasons:    []string{"specific_details", "balanced_feedback", "authentic_language"},
		},
		{
			name:       "some detail",
			text:       "The roti canai came out quickly and the teh tarik was good but slightly sweet.",
			want:       Genuine,
			confidence: 0.75,
			reasons:    []string{"specific_details", "adequate_length"},
		},
		{
			name:       "too short",
			text:       "Food good.",
			want:       Suspicious,
			confidence: 0.6,
			reasons:    []string{"insufficient_content"},
		},
		{
			name:       "default",
			text:       "Nice lunch spot near the office, will come again.",
			want:       Genuine,
			confidence: 0.7,
			reasons:    []string{"neutral_content", "no_red_flags"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ClassifyFallback(review(tc.text))
			checkAnalysisShape(t, got)
			if got.Classification != tc.want || got.Confidence != tc.confidence {
				t.Fatalf("got %s %.2f, want %s %.2f", got.Classification, got.Confidence, tc.want, tc.confidence)
			}
			if !reflect.DeepEqual(got.Reasons, tc.reasons) {
				t.Fatalf("reasons %v, want %v", got.Reasons, tc.reasons)
			}
			if got.Sentiment != Neutral || got.LanguageConfidence != got.Confidence {
				t.Fatalf("unexpected sentiment/languageConfidence: %+v", got)
			}
		})
	}
}

func TestFallbackDeterministic(t *testing.T) {
	t.Parallel()

	r := review("Staff were friendly but the curry sauce was abit salty.")
	if a, b := ClassifyFallback(r), ClassifyFallback(r); !reflect.DeepEqual(a, b) {
		t.Fatalf("fallback not deterministic: %+v vs %+v", a, b)
	}
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	raw := `Here is my analysis:
{
  "classification": "suspicious",
  "confidence": 0.65,
  "reasons": ["generic_language", "timing"],
  "sentiment": "negative",
  "languageConfidence": 0.9,
  "explanation": "Mixed signals {not json}"
}
Thanks.`

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := &FakeReviewAnalysis{
		Classification:     Suspicious,
		IsFake:             true,
		Confidence:         0.65,
		Reasons:            []string{"generic_language", "timing"},
		Sentiment:          Negative,
		LanguageConfidence: 0.9,
		Explanation:        "Mixed signals {not json}",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParseNestedAndLeadingBraces(t *testing.T) {
	t.Parallel()

	raw := `Format {like this}. {"classification":"genuine","confidence":0.9,"meta":{"tokens":{"in":1}}} trailing }`
	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Classification != Genuine || got.Confidence != 0.9 || got.IsFake {
		t.Fatalf("unexpected analysis %+v", got)
	}
}

func TestParseDefaultsAndNormalization(t *testing.T) {
	t.Parallel()

	got, err := Parse(`{"isFake": true, "confidence": 85, "sentiment": "POSITIVE"}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Classification != Fake || !got.IsFake {
		t.Fatalf("expected fake from legacy isFake, got %+v", got)
	}
	if got.Confidence != 0.85 {
		t.Fatalf("expected 0-100 confidence to be scaled, got %v", got.Confidence)
	}
	if got.Sentiment != Positive || got.LanguageConfidence != 0.5 || got.Explanation != "AI analysis completed" || len(got.Reasons) != 0 {
		t.Fatalf("unexpected defaults %+v", got)
	}

	got, err = Parse(`{"isFake": false, "confidence": -3, "sentiment": "meh"}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Classification != Genuine || got.Confidence != 0 || got.Sentiment != Neutral {
		t.Fatalf("unexpected analysis %+v", got)
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	var parseErr *ParseError
	for _, raw := range []string{"", "no json here", `{"classification": "fake"`, `{not: json}`} {
		if _, err := Parse(raw); !errors.As(err, &parseErr) {
			t.Fatalf("Parse(%q): expected ParseError, got %v", raw, err)
		}
	}

	var valErr *ValidationError
	for _, raw := range []string{`{"confidence": 0.9}`, `{"classification": "maybe"}`, `{"classification": 3}`, `{"isFake": "yes"}`} {
		if _, err := Parse(raw); !errors.As(err, &valErr) {
			t.Fatalf("Parse(%q): expected ValidationError, got %v", raw, err)
		}
	}
}

func TestDetectUsesModelResult(t *testing.T) {
	t.Parallel()

	inv := &stubInvoker{text: `{"classification":"fake","confidence":0.92,"reasons":["promo"],"sentiment":"positive","languageConfidence":0.8,"explanation":"ad copy"}`}
	d := NewDetector(inv, Config{DefaultModel: "m"})

	got, source := d.DetectWithSource(context.Background(), review("Nice lunch spot near the office."), "")
	checkAnalysisShape(t, got)
	if source != SourceAI || got.Classification != Fake || got.Confidence != 0.92 {
		t.Fatalf("unexpected result %s %+v", source, got)
	}
}

func TestDetectFallsBackOnFailure(t *testing.T) {
	t.Parallel()

	cases := map[string]*stubInvoker{
		"invoker error":   {err: errors.New("timeout")},
		"no json":         {text: "I cannot help with that."},
		"bad enumeration": {text: `{"classification":"unsure"}`},
	}

	for name, inv := range cases {
		inv := inv
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			d := NewDetector(inv, Config{DefaultModel: "m"})
			r := review("This place is amazing! Best food ever! Highly recommend!")

			got, source := d.DetectWithSource(context.Background(), r, "m")
			if source != SourceFallback {
				t.Fatalf("expected fallback source, got %s", source)
			}
			if !reflect.DeepEqual(got, ClassifyFallback(r)) {
				t.Fatalf("result differs from fallback: %+v", got)
			}
		})
	}
}

func TestDetectWithoutInvoker(t *testing.T) {
	t.Parallel()

	d := NewDetector(nil, Config{})
	got := d.DetectFakeReview(context.Background(), review("Food good."), "")
	checkAnalysisShape(t, got)
	if got.Classification != Suspicious {
		t.Fatalf("expected fallback classification, got %+v", got)
	}
}

func TestProcessBatchCountsEveryItem(t *testing.T) {
	t.Parallel()

	inv := &stubInvoker{text: `{"classification":"genuine","confidence":0.9}`, hold: 5 * time.Millisecond}
	d := NewDetector(inv, Config{DefaultModel: "m", BatchSize: 5, BatchDelay: time.Millisecond})

	reviews := make([]ReviewForAnalysis, 12)
	for i := range reviews {
		reviews[i] = review(fmt.Sprintf("review number %d with some text", i))
		reviews[i].ReviewID = fmt.Sprintf("r%d", i)
	}

	var stored sync.Map
	sink := func(_ context.Context, r ReviewForAnalysis, a FakeReviewAnalysis, _ Source) error {
		if r.ReviewID == "r3" || r.ReviewID == "r7" {
			return errors.New("write failed")
		}
		stored.Store(r.ReviewID, a)
		return nil
	}

	res := d.ProcessBatch(context.Background(), reviews, "m", sink)
	if res.Processed+res.Errors != len(reviews) {
		t.Fatalf("processed %d + errors %d != %d", res.Processed, res.Errors, len(reviews))
	}
	if res.Errors != 2 || res.Processed != 10 {
		t.Fatalf("unexpected result %+v", res)
	}
	if inv.maxSeen > 5 {
		t.Fatalf("concurrency %d exceeded batch size", inv.maxSeen)
	}
}

func TestProcessBatchCancelled(t *testing.T) {
	t.Parallel()

	inv := &stubInvoker{text: `{"classification":"genuine"}`}
	d := NewDetector(inv, Config{DefaultModel: "m", BatchSize: 2, BatchDelay: time.Hour})

	reviews := make([]ReviewForAnalysis, 7)
	for i := range reviews {
		reviews[i] = review("some review text here")
	}

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	sink := func(context.Context, ReviewForAnalysis, FakeReviewAnalysis, Source) error {
		once.Do(cancel)
		return nil
	}

	res := d.ProcessBatch(ctx, reviews, "m", sink)
	if res.Processed != 2 || res.Errors != 5 {
		t.Fatalf("unexpected result %+v", res)
	}
	if inv.calls.Load() != 2 {
		t.Fatalf("expected only the first chunk to be analyzed, got %d calls", inv.calls.Load())
	}
}

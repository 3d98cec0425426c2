package evaluation

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/trustbites/backend/internal/detection"
)

const (
	genuineJSON = `{"classification":"genuine","confidence":0.9,"reasons":["specific_details"],"sentiment":"positive","languageConfidence":0.9,"explanation":"Specific"}`
	fakeJSON    = `{"classification":"fake","confidence":0.85,"reasons":["generic_praise"],"sentiment":"positive","languageConfidence":0.8,"explanation":"Generic"}`
)

type markerInvoker struct {
	err error
}

func (m markerInvoker) Invoke(ctx context.Context, prompt, modelID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if strings.Contains(prompt, "BEST EVER") {
		return fakeJSON, nil
	}
	return genuineJSON, nil
}

const datasetJSON = `{"items":[
	{"reviewText":"The pho broth was rich and the basil fresh.","rating":5,"label":"genuine"},
	{"reviewText":"BEST EVER amazing perfect","rating":5,"label":"fake"},
	{"reviewText":"Nice place","rating":4,"label":"suspicious"},
	{"reviewText":"BEST EVER noodles, the broth had star anise","rating":5,"label":"genuine"}
]}`

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRunComputesMetrics(t *testing.T) {
	t.Parallel()

	dataset, err := LoadDataset(strings.NewReader(datasetJSON))
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}

	detector := detection.NewDetector(markerInvoker{}, detection.Config{DefaultModel: "m", BatchSize: 2})
	report := NewEvaluator(detector).Run(context.Background(), dataset, "m")

	if report.Total != 4 || report.Correct != 2 || report.Fallbacks != 0 {
		t.Fatalf("report counts = %+v", report)
	}
	checks := map[string][2]float64{
		"accuracy":      {report.Accuracy, 0.5},
		"flagAccuracy":  {report.FlagAccuracy, 0.5},
		"precision":     {report.Precision, 0.5},
		"recall":        {report.Recall, 0.5},
		"f1":            {report.F1, 0.5},
		"avgConfidence": {report.AvgConfidence, 0.875},
	}
	for name, c := range checks {
		if !near(c[0], c[1]) {
			t.Fatalf("%s = %v, want %v", name, c[0], c[1])
		}
	}

	if got := report.Confusion[detection.Genuine][detection.Fake]; got != 1 {
		t.Fatalf("genuine->fake = %d, want 1", got)
	}
	if got := report.Confusion[detection.Suspicious][detection.Genuine]; got != 1 {
		t.Fatalf("suspicious->genuine = %d, want 1", got)
	}

	text := GenerateReport(report)
	if !strings.Contains(text, "Exact Accuracy: 50.0%") || !strings.Contains(text, "- genuine: genuine=1 suspicious=0 fake=1") {
		t.Fatalf("unexpected report text:\n%s", text)
	}
}

func TestRunCountsFallbacks(t *testing.T) {
	t.Parallel()

	dataset, err := LoadDataset(strings.NewReader(datasetJSON))
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}

	detector := detection.NewDetector(markerInvoker{err: errors.New("throttled")}, detection.Config{DefaultModel: "m"})
	report := NewEvaluator(detector).Run(context.Background(), dataset, "m")

	if report.Total != 4 || report.Fallbacks != 4 {
		t.Fatalf("report = %+v, want 4 fallbacks", report)
	}
}

func TestLoadDatasetRejectsBadItems(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"bad label":  `{"items":[{"reviewText":"ok","label":"spam"}]}`,
		"blank text": `{"items":[{"reviewText":"  ","label":"fake"}]}`,
		"not json":   `{"items":`,
	}
	for name, in := range cases {
		if _, err := LoadDataset(strings.NewReader(in)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	report := summarize(nil)
	if report.Total != 0 || report.Accuracy != 0 || report.F1 != 0 {
		t.Fatalf("empty report = %+v", report)
	}
}

package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/detection"
	"github.com/trustbites/backend/pkg/logger"
)

// Evaluator scores the classifier against hand-labeled reviews.
type Evaluator struct {
	detector *detection.Detector
}

type Dataset struct {
	Items []DatasetItem `json:"items"`
}

type DatasetItem struct {
	ReviewText     string                   `json:"reviewText"`
	Rating         int                      `json:"rating"`
	AuthorName     string                   `json:"authorName"`
	Language       string                   `json:"language"`
	RestaurantName string                   `json:"restaurantName"`
	Label          detection.Classification `json:"label"`
}

type Report struct {
	Total     int `json:"total"`
	Correct   int `json:"correct"`
	Fallbacks int `json:"fallbacks"`

	Accuracy float64 `json:"accuracy"`
	// Flag metrics treat suspicious and fake as the positive class.
	FlagAccuracy  float64 `json:"flagAccuracy"`
	Precision     float64 `json:"precision"`
	Recall        float64 `json:"recall"`
	F1            float64 `json:"f1"`
	AvgConfidence float64 `json:"avgConfidence"`

	// Confusion is indexed by label, then predicted classification.
	Confusion map[detection.Classification]map[detection.Classification]int `json:"confusion"`
}

func NewEvaluator(detector *detection.Detector) *Evaluator {
	return &Evaluator{detector: detector}
}

func LoadDataset(r io.Reader) (*Dataset, error) {
	var dataset Dataset
	if err := json.NewDecoder(r).Decode(&dataset); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	for i, item := range dataset.Items {
		if !item.Label.Valid() {
			return nil, fmt.Errorf("item %d: invalid label %q", i, item.Label)
		}
		if strings.TrimSpace(item.ReviewText) == "" {
			return nil, fmt.Errorf("item %d: reviewText is required", i)
		}
	}
	return &dataset, nil
}

func LoadDatasetFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return LoadDataset(f)
}

type outcome struct {
	label     detection.Classification
	predicted detection.Classification
	isFake    bool
	conf      float64
	fallback  bool
}

// Run classifies every dataset item with modelID and aggregates the results.
func (e *Evaluator) Run(ctx context.Context, dataset *Dataset, modelID string) *Report {
	logger.Info("Running classifier evaluation", zap.Int("items", len(dataset.Items)), zap.String("model_id", modelID))

	inputs := make([]detection.ReviewForAnalysis, len(dataset.Items))
	labels := make(map[string]detection.Classification, len(dataset.Items))
	for i, item := range dataset.Items {
		id := fmt.Sprintf("eval_%d", i)
		lang := item.Language
		if lang == "" {
			lang = "en"
		}
		rating := item.Rating
		if rating < 1 || rating > 5 {
			rating = 3
		}
		inputs[i] = detection.ReviewForAnalysis{
			ReviewID:       id,
			ReviewText:     item.ReviewText,
			Rating:         rating,
			Language:       lang,
			AuthorName:     item.AuthorName,
			RestaurantName: item.RestaurantName,
		}
		labels[id] = item.Label
	}

	var (
		mu       sync.Mutex
		outcomes []outcome
	)
	e.detector.ProcessBatch(ctx, inputs, modelID, func(_ context.Context, review detection.ReviewForAnalysis, a detection.FakeReviewAnalysis, source detection.Source) error {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, outcome{
			label:     labels[review.ReviewID],
			predicted: a.Classification,
			isFake:    a.IsFake,
			conf:      a.Confidence,
			fallback:  source == detection.SourceFallback,
		})
		return nil
	})

	report := summarize(outcomes)
	logger.Info("Classifier evaluation completed",
		zap.Int("total", report.Total),
		zap.Float64("accuracy", report.Accuracy),
		zap.Float64("f1", report.F1),
		zap.Int("fallbacks", report.Fallbacks),
	)
	return report
}

func summarize(outcomes []outcome) *Report {
	report := &Report{
		Total:     len(outcomes),
		Confusion: make(map[detection.Classification]map[detection.Classification]int),
	}

	var tp, fp, fn, flagCorrect int
	var confSum float64
	for _, o := range outcomes {
		row := report.Confusion[o.label]
		if row == nil {
			row = make(map[detection.Classification]int)
			report.Confusion[o.label] = row
		}
		row[o.predicted]++

		if o.label == o.predicted {
			report.Correct++
		}
		if o.fallback {
			report.Fallbacks++
		}
		confSum += o.conf

		want := o.label.IsFake()
		switch {
		case want && o.isFake:
			tp++
		case !want && o.isFake:
			fp++
		case want && !o.isFake:
			fn++
		}
		if want == o.isFake {
			flagCorrect++
		}
	}

	if report.Total == 0 {
		return report
	}
	total := float64(report.Total)
	report.Accuracy = float64(report.Correct) / total
	report.FlagAccuracy = float64(flagCorrect) / total
	report.AvgConfidence = confSum / total
	if tp+fp > 0 {
		report.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		report.Recall = float64(tp) / float64(tp+fn)
	}
	if report.Precision+report.Recall > 0 {
		report.F1 = 2 * report.Precision * report.Recall / (report.Precision + report.Recall)
	}
	return report
}

func GenerateReport(report *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, `
Classifier Evaluation Report
============================

Total Reviews: %d
Exact Accuracy: %.1f%% (%d correct)
Flag Accuracy: %.1f%%
Precision: %.3f
Recall: %.3f
F1: %.3f
Average Confidence: %.3f
Fallback Analyses: %d

Confusion (label -> predicted):
`,
		report.Total,
		report.Accuracy*100, report.Correct,
		report.FlagAccuracy*100,
		report.Precision,
		report.Recall,
		report.F1,
		report.AvgConfidence,
		report.Fallbacks,
	)

	labels := make([]string, 0, len(report.Confusion))
	for label := range report.Confusion {
		labels = append(labels, string(label))
	}
	sort.Strings(labels)
	for _, label := range labels {
		row := report.Confusion[detection.Classification(label)]
		fmt.Fprintf(&b, "- %s: genuine=%d suspicious=%d fake=%d\n",
			label, row[detection.Genuine], row[detection.Suspicious], row[detection.Fake])
	}
	return b.String()
}

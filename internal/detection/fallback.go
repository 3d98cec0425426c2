package detection

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var genuineIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)booked with \w+`),
	regexp.MustCompile(`(?i)staff were \w+`),
	regexp.MustCompile(`(?i)\w+ sauce`),
	regexp.MustCompile(`(?i)aircon|air.?con`),
	regexp.MustCompile(`(?i)massive venue|large venue`),
	regexp.MustCompile(`(?i)\d+ night|\d+ day`),
	regexp.MustCompile(`(?i)highlights?[-:\s]`),
	regexp.MustCompile(`(?i)\bi'd prefer\b|\bi would prefer\b`),
	regexp.MustCompile(`(?i)except \w+|but \w+`),
	regexp.MustCompile(`(?i)abit|a bit`),
	regexp.MustCompile(`(?i)extensive|focus on`),
}

var fakeIndicators = []string{
	"amazing",
	"perfect",
	"best ever",
	"highly recommend",
	"absolutely incredible",
	"outstanding",
	"exceeded expectations",
}

var suspiciousIndicators = []string{
	"worst",
	"terrible",
	"horrible",
	"never again",
	"scam",
	"disgusting",
	"awful",
}

// IndicatorCounts holds the number of matched patterns per indicator set.
type IndicatorCounts struct {
	Genuine    int
	Fake       int
	Suspicious int
}

func CountIndicators(text string) IndicatorCounts {
	lower := strings.ToLower(text)

	var counts IndicatorCounts
	for _, re := range genuineIndicators {
		if re.MatchString(lower) {
			counts.Genuine++
		}
	}
	for _, phrase := range fakeIndicators {
		if strings.Contains(lower, phrase) {
			counts.Fake++
		}
	}
	for _, phrase := range suspiciousIndicators {
		if strings.Contains(lower, phrase) {
			counts.Suspicious++
		}
	}
	return counts
}

// ClassifyFallback scores a review with fixed keyword and pattern lists.
// It never touches the network and returns the same result for the same text.
func ClassifyFallback(review ReviewForAnalysis) FakeReviewAnalysis {
	counts := CountIndicators(review.ReviewText)
	length := utf8.RuneCountInString(review.ReviewText)

	var (
		classification Classification
		confidence     float64
		reasons        []string
		explanation    string
	)

	switch {
	case counts.Fake >= 2:
		classification, confidence = Fake, 0.8
		reasons = []string{"excessive_positive_language", "promotional_content"}
		explanation = "Multiple promotional phrases detected (enhanced fallback analysis)"
	case counts.Suspicious >= 2:
		classification, confidence = Suspicious, 0.7
		reasons = []string{"excessive_negative_language", "potentially_biased"}
		explanation = "Multiple negative indicators detected (enhanced fallback analysis)"
	case counts.Genuine >= 3:
		classification, confidence = Genuine, 0.85
		reasons = []string{"specific_details", "balanced_feedback", "authentic_language"}
		explanation = "Multiple genuine indicators: specific details, balanced feedback, authentic language (enhanced fallback analysis)"
	case counts.Genuine >= 1 && length > 50:
		classification, confidence = Genuine, 0.75
		reasons = []string{"specific_details", "adequate_length"}
		explanation = "Genuine indicators with sufficient detail (enhanced fallback analysis)"
	case length < 20:
		classification, confidence = Suspicious, 0.6
		reasons = []string{"insufficient_content"}
		explanation = "Review too short for reliable analysis (enhanced fallback analysis)"
	default:
		classification, confidence = Genuine, 0.7
		reasons = []string{"neutral_content", "no_red_flags"}
		explanation = "No strong negative indicators, appears authentic (enhanced fallback analysis)"
	}

	return FakeReviewAnalysis{
		Classification:     classification,
		IsFake:             classification.IsFake(),
		Confidence:         confidence,
		Reasons:            reasons,
		Sentiment:          Neutral,
		LanguageConfidence: confidence,
		Explanation:        explanation,
	}
}

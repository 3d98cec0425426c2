package detection

import "strings"

type Classification string

const (
	Genuine    Classification = "genuine"
	Suspicious Classification = "suspicious"
	Fake       Classification = "fake"
)

func (c Classification) Valid() bool {
	switch c {
	case Genuine, Suspicious, Fake:
		return true
	}
	return false
}

// IsFake reports whether the classification counts as fake for consumers
// that only understand a boolean flag.
func (c Classification) IsFake() bool {
	return c == Fake || c == Suspicious
}

type Sentiment string

const (
	Positive Sentiment = "positive"
	Negative Sentiment = "negative"
	Neutral  Sentiment = "neutral"
)

// NormalizeSentiment lower-cases s and maps anything unrecognised to neutral.
func NormalizeSentiment(s string) Sentiment {
	switch v := Sentiment(strings.ToLower(strings.TrimSpace(s))); v {
	case Positive, Negative, Neutral:
		return v
	}
	return Neutral
}

// Source records which path produced an analysis.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

type ReviewForAnalysis struct {
	ReviewID       string `json:"reviewId"`
	ReviewText     string `json:"reviewText"`
	Rating         int    `json:"rating"`
	Language       string `json:"language"`
	AuthorName     string `json:"authorName"`
	ReviewDate     string `json:"reviewDate"`
	RestaurantName string `json:"restaurantName,omitempty"`
}

type FakeReviewAnalysis struct {
	Classification     Classification `json:"classification"`
	IsFake             bool           `json:"isFake"`
	Confidence         float64        `json:"confidence"`
	Reasons            []string       `json:"reasons"`
	Sentiment          Sentiment      `json:"sentiment"`
	LanguageConfidence float64        `json:"languageConfidence"`
	Explanation        string         `json:"explanation"`
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package dashboard

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/trustbites/backend/internal/storage/models"
)

const (
	day        = 24 * time.Hour
	dateLayout = "2006-01-02"

	ratingTrendThreshold     = 0.1
	confidenceTrendThreshold = 0.05
	highConfidence           = 0.8
	topReasons               = 10
)

type Summary struct {
	TotalReviews         int     `json:"totalReviews"`
	TotalFakeReviews     int     `json:"totalFakeReviews"`
	FakeReviewPercentage float64 `json:"fakeReviewPercentage"`
	AverageRating        float64 `json:"averageRating"`
	RecentReviewsCount   int     `json:"recentReviewsCount"`
	TotalRestaurants     int     `json:"totalRestaurants"`
	GenuineReviewsCount  int     `json:"genuineReviewsCount"`
	PendingReviews       int     `json:"pendingReviews"`
}

// Summarize computes headline metrics. Ratings of reviews flagged fake are
// left out of the average.
func Summarize(reviews []models.Review, restaurants int, now time.Time) Summary {
	s := Summary{TotalReviews: len(reviews), TotalRestaurants: restaurants}
	weekAgo := now.Add(-7 * day)

	var ratingSum int
	for _, r := range reviews {
		if r.IsFake {
			s.TotalFakeReviews++
		} else {
			s.GenuineReviewsCount++
			ratingSum += r.Rating
		}
		if !r.Analyzed() {
			s.PendingReviews++
		}
		if !r.ReviewDate.IsZero() && !r.ReviewDate.Before(weekAgo) {
			s.RecentReviewsCount++
		}
	}

	if s.TotalReviews > 0 {
		s.FakeReviewPercentage = round(float64(s.TotalFakeReviews)/float64(s.TotalReviews)*100, 1)
	}
	if s.GenuineReviewsCount > 0 {
		s.AverageRating = round(float64(ratingSum)/float64(s.GenuineReviewsCount), 1)
	}
	return s
}

type DailyRating struct {
	Date          string  `json:"date"`
	AverageRating float64 `json:"averageRating"`
	ReviewCount   int     `json:"reviewCount"`
}

type DailyFakeRatio struct {
	Date            string  `json:"date"`
	FakeReviewRatio float64 `json:"fakeReviewRatio"`
	TotalReviews    int     `json:"totalReviews"`
	FakeReviews     int     `json:"fakeReviews"`
}

type DailyVolume struct {
	Date        string `json:"date"`
	ReviewCount int    `json:"reviewCount"`
}

type RatingTrend struct {
	Current float64 `json:"current"`
	Change  float64 `json:"change"`
	Trend   string  `json:"trend"`
}

type ConfidenceTrend struct {
	AverageConfidence   float64 `json:"averageConfidence"`
	HighConfidenceCount int     `json:"highConfidenceCount"`
	Change              float64 `json:"change"`
	Trend               string  `json:"trend"`
}

type Trends struct {
	Period                  int              `json:"period"`
	TotalReviews            int              `json:"totalReviews"`
	RatingsOverTime         []DailyRating    `json:"ratingsOverTime"`
	FakeReviewRatioOverTime []DailyFakeRatio `json:"fakeReviewRatioOverTime"`
	VolumeOverTime          []DailyVolume    `json:"volumeOverTime"`
	AverageRatingTrend      RatingTrend      `json:"averageRatingTrend"`
	DetectionAccuracyTrend  ConfidenceTrend  `json:"detectionAccuracyTrend"`
}

type dayBucket struct {
	ratingSum int
	rated     int
	total     int
	fake      int
}

// ComputeTrends buckets the last period days of reviews by UTC date and
// compares the recent half of the window with the older half.
func ComputeTrends(reviews []models.Review, period int, now time.Time) Trends {
	if period <= 0 {
		period = 30
	}
	cutoff := now.Add(-time.Duration(period) * day)

	var inWindow []models.Review
	for _, r := range reviews {
		if !r.ReviewDate.IsZero() && !r.ReviewDate.Before(cutoff) {
			inWindow = append(inWindow, r)
		}
	}

	keys := make([]string, 0, period)
	buckets := make(map[string]*dayBucket, period)
	for i := period - 1; i >= 0; i-- {
		key := now.Add(-time.Duration(i) * day).UTC().Format(dateLayout)
		keys = append(keys, key)
		buckets[key] = &dayBucket{}
	}

	for _, r := range inWindow {
		b, ok := buckets[r.ReviewDate.UTC().Format(dateLayout)]
		if !ok {
			continue
		}
		b.total++
		if r.IsFake {
			b.fake++
		} else if r.Rating > 0 {
			b.ratingSum += r.Rating
			b.rated++
		}
	}

	t := Trends{
		Period:                  period,
		TotalReviews:            len(inWindow),
		RatingsOverTime:         make([]DailyRating, 0, period),
		FakeReviewRatioOverTime: make([]DailyFakeRatio, 0, period),
		VolumeOverTime:          make([]DailyVolume, 0, period),
	}
	for _, key := range keys {
		b := buckets[key]
		dr := DailyRating{Date: key, ReviewCount: b.rated}
		if b.rated > 0 {
			dr.AverageRating = round(float64(b.ratingSum)/float64(b.rated), 2)
		}
		fr := DailyFakeRatio{Date: key, TotalReviews: b.total, FakeReviews: b.fake}
		if b.total > 0 {
			fr.FakeReviewRatio = round(float64(b.fake)/float64(b.total)*100, 2)
		}
		t.RatingsOverTime = append(t.RatingsOverTime, dr)
		t.FakeReviewRatioOverTime = append(t.FakeReviewRatioOverTime, fr)
		t.VolumeOverTime = append(t.VolumeOverTime, DailyVolume{Date: key, ReviewCount: b.total})
	}

	mid := now.Add(-time.Duration(period/2) * day)
	t.AverageRatingTrend = ratingTrend(inWindow, mid)
	t.DetectionAccuracyTrend = confidenceTrend(inWindow, mid)
	return t
}

func ratingTrend(reviews []models.Review, mid time.Time) RatingTrend {
	var recent, older []float64
	for _, r := range reviews {
		if r.IsFake || r.Rating == 0 {
			continue
		}
		if r.ReviewDate.Before(mid) {
			older = append(older, float64(r.Rating))
		} else {
			recent = append(recent, float64(r.Rating))
		}
	}
	if len(recent)+len(older) == 0 {
		return RatingTrend{Trend: "stable"}
	}

	current := mean(recent)
	previous := current
	if len(older) > 0 {
		previous = mean(older)
	}
	change := current - previous
	return RatingTrend{
		Current: round(current, 2),
		Change:  round(change, 2),
		Trend:   direction(change, ratingTrendThreshold),
	}
}

func confidenceTrend(reviews []models.Review, mid time.Time) ConfidenceTrend {
	var recent, older []float64
	for _, r := range reviews {
		if !r.IsFake {
			continue
		}
		if r.ReviewDate.Before(mid) {
			older = append(older, r.Confidence)
		} else {
			recent = append(recent, r.Confidence)
		}
	}
	if len(recent)+len(older) == 0 {
		return ConfidenceTrend{Trend: "stable"}
	}

	current := mean(recent)
	previous := current
	if len(older) > 0 {
		previous = mean(older)
	}
	high := 0
	for _, c := range recent {
		if c >= highConfidence {
			high++
		}
	}
	change := current - previous
	return ConfidenceTrend{
		AverageConfidence:   round(current, 3),
		HighConfidenceCount: high,
		Change:              round(change, 3),
		Trend:               direction(change, confidenceTrendThreshold),
	}
}

func direction(change, threshold float64) string {
	switch {
	case math.Abs(change) < threshold:
		return "stable"
	case change > 0:
		return "improving"
	default:
		return "declining"
	}
}

type ReasonCount struct {
	Reason     string  `json:"reason"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type LanguageCount struct {
	Language   string  `json:"language"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type RatingCount struct {
	Rating     int     `json:"rating"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type ConfidenceBand struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type PatternCount struct {
	Pattern     string  `json:"pattern"`
	Description string  `json:"description"`
	Count       int     `json:"count"`
	Percentage  float64 `json:"percentage"`
}

type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

type WeekdayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type TimePatterns struct {
	HourlyDistribution []HourCount    `json:"hourlyDistribution"`
	DailyDistribution  []WeekdayCount `json:"dailyDistribution"`
}

type Insights struct {
	TotalFakeReviews       int              `json:"totalFakeReviews"`
	CommonReasons          []ReasonCount    `json:"commonReasons"`
	LanguageBreakdown      []LanguageCount  `json:"languageBreakdown"`
	RatingDistribution     []RatingCount    `json:"ratingDistribution"`
	ConfidenceDistribution []ConfidenceBand `json:"confidenceDistribution"`
	TopSuspiciousPatterns  []PatternCount   `json:"topSuspiciousPatterns"`
	TimePatterns           TimePatterns     `json:"timePatterns"`
}

var confidenceBands = []struct {
	min, max float64
	label    string
}{
	{0.9, 1.0, "Very High (90-100%)"},
	{0.8, 0.9, "High (80-90%)"},
	{0.7, 0.8, "Medium (70-80%)"},
	{0.5, 0.7, "Low (50-70%)"},
	{0, 0.5, "Very Low (0-50%)"},
}

var suspiciousPatterns = []struct {
	pattern, description string
}{
	{"excessive_positivity", "Overly positive language"},
	{"generic_praise", "Generic praise without specifics"},
	{"perfect_rating", "Perfect 5-star rating"},
	{"short_review", "Suspiciously short review"},
	{"repeated_phrases", "Repeated phrases or templates"},
	{"timing_suspicious", "Suspicious timing patterns"},
}

// ComputeInsights describes the reviews flagged fake or suspicious.
func ComputeInsights(reviews []models.Review) Insights {
	var flagged []models.Review
	for _, r := range reviews {
		if r.IsFake {
			flagged = append(flagged, r)
		}
	}
	n := len(flagged)

	in := Insights{
		TotalFakeReviews:       n,
		CommonReasons:          []ReasonCount{},
		LanguageBreakdown:      []LanguageCount{},
		RatingDistribution:     []RatingCount{},
		ConfidenceDistribution: make([]ConfidenceBand, 0, len(confidenceBands)),
		TopSuspiciousPatterns:  []PatternCount{},
		TimePatterns: TimePatterns{
			HourlyDistribution: []HourCount{},
			DailyDistribution:  []WeekdayCount{},
		},
	}

	reasons := map[string]int{}
	languages := map[string]int{}
	ratings := map[int]int{}
	hours := map[int]int{}
	weekdays := map[time.Weekday]int{}
	for _, r := range flagged {
		for _, reason := range r.Reasons {
			reasons[reason]++
		}
		lang := r.Language
		if lang == "" {
			lang = "unknown"
		}
		languages[lang]++
		ratings[r.Rating]++
		if !r.ReviewDate.IsZero() {
			d := r.ReviewDate.UTC()
			hours[d.Hour()]++
			weekdays[d.Weekday()]++
		}
	}

	for reason, count := range reasons {
		in.CommonReasons = append(in.CommonReasons, ReasonCount{Reason: reason, Count: count, Percentage: share(count, n)})
	}
	sort.Slice(in.CommonReasons, func(i, j int) bool {
		a, b := in.CommonReasons[i], in.CommonReasons[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Reason < b.Reason
	})
	if len(in.CommonReasons) > topReasons {
		in.CommonReasons = in.CommonReasons[:topReasons]
	}

	for lang, count := range languages {
		in.LanguageBreakdown = append(in.LanguageBreakdown, LanguageCount{Language: lang, Count: count, Percentage: share(count, n)})
	}
	sort.Slice(in.LanguageBreakdown, func(i, j int) bool {
		a, b := in.LanguageBreakdown[i], in.LanguageBreakdown[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Language < b.Language
	})

	for rating, count := range ratings {
		in.RatingDistribution = append(in.RatingDistribution, RatingCount{Rating: rating, Count: count, Percentage: share(count, n)})
	}
	sort.Slice(in.RatingDistribution, func(i, j int) bool {
		return in.RatingDistribution[i].Rating > in.RatingDistribution[j].Rating
	})

	for _, band := range confidenceBands {
		count := 0
		for _, r := range flagged {
			if r.Confidence >= band.min && r.Confidence < band.max {
				count++
			}
		}
		in.ConfidenceDistribution = append(in.ConfidenceDistribution, ConfidenceBand{Label: band.label, Count: count, Percentage: share(count, n)})
	}

	for _, p := range suspiciousPatterns {
		needle := strings.ReplaceAll(p.pattern, "_", " ")
		count := 0
		for _, r := range flagged {
			for _, reason := range r.Reasons {
				if strings.Contains(strings.ReplaceAll(strings.ToLower(reason), "_", " "), needle) {
					count++
					break
				}
			}
		}
		if count > 0 {
			in.TopSuspiciousPatterns = append(in.TopSuspiciousPatterns, PatternCount{
				Pattern:     p.pattern,
				Description: p.description,
				Count:       count,
				Percentage:  share(count, n),
			})
		}
	}

	for hour := 0; hour < 24; hour++ {
		if count := hours[hour]; count > 0 {
			in.TimePatterns.HourlyDistribution = append(in.TimePatterns.HourlyDistribution, HourCount{Hour: hour, Count: count})
		}
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if count := weekdays[wd]; count > 0 {
			in.TimePatterns.DailyDistribution = append(in.TimePatterns.DailyDistribution, WeekdayCount{Day: wd.String(), Count: count})
		}
	}

	return in
}

// RiskLevel grades a fake review percentage.
func RiskLevel(fakePercentage float64) string {
	switch {
	case fakePercentage < 10:
		return "Low"
	case fakePercentage < 25:
		return "Medium"
	default:
		return "High"
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func share(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(count)/float64(total)*100, 1)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

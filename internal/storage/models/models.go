package models

import "time"

const (
	ReviewStatusPending  = "pending"
	ReviewStatusAnalyzed = "analyzed"

	ReviewSourcePlaces = "google_places"
	ReviewSourceUser   = "user"
)

type Restaurant struct {
	ID           string    `json:"restaurantId"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	Rating       float64   `json:"rating"`
	TotalReviews int       `json:"totalReviews"`
	PriceLevel   *int      `json:"priceLevel,omitempty"`
	Cuisine      string    `json:"cuisine,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Review struct {
	ID           string    `json:"reviewId"`
	RestaurantID string    `json:"restaurantId"`
	ReviewText   string    `json:"reviewText"`
	Rating       int       `json:"rating"`
	Language     string    `json:"language"`
	AuthorName   string    `json:"authorName"`
	ReviewDate   time.Time `json:"reviewDate"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	ReviewHash   string    `json:"reviewHash"`
	CreatedAt    time.Time `json:"createdAt"`

	// Last analysis; zero until Status is analyzed.
	Classification string     `json:"classification,omitempty"`
	IsFake         bool       `json:"isFake"`
	Confidence     float64    `json:"confidence"`
	Reasons        []string   `json:"detectionReasons"`
	Sentiment      string     `json:"sentiment,omitempty"`
	Explanation    string     `json:"explanation,omitempty"`
	AIModel        string     `json:"aiModel,omitempty"`
	AIVersion      string     `json:"aiVersion,omitempty"`
	AnalyzedAt     *time.Time `json:"analyzedAt,omitempty"`
}

func (r *Review) Analyzed() bool {
	return r.Status == ReviewStatusAnalyzed
}

type AnalysisRecord struct {
	ID                 string    `json:"analysisId"`
	ReviewID           string    `json:"reviewId"`
	RestaurantID       string    `json:"restaurantId"`
	ReviewHash         string    `json:"reviewHash"`
	Classification     string    `json:"classification"`
	IsFake             bool      `json:"isFake"`
	Confidence         float64   `json:"confidence"`
	Reasons            []string  `json:"reasons"`
	Sentiment          string    `json:"sentiment"`
	LanguageConfidence float64   `json:"languageConfidence"`
	Explanation        string    `json:"explanation"`
	AIModel            string    `json:"aiModel"`
	AIVersion          string    `json:"aiVersion"`
	AnalyzedAt         time.Time `json:"analyzedAt"`
}

type BusinessOwner struct {
	ID           string    `json:"ownerId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	OwnerName    string    `json:"ownerName"`
	BusinessName string    `json:"businessName"`
	RestaurantID string    `json:"restaurantId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ReviewFilter narrows ListReviews. Zero values mean no constraint.
type ReviewFilter struct {
	RestaurantID string
	Status       string
	Fake         *bool
	Since        time.Time
	Limit        int
}

// PersistResult tells the caller whether an analysis reached storage.
type PersistResult struct {
	Saved bool
	Err   error
}

package places

import (
	"fmt"
	"regexp"
	"time"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Photo struct {
	Reference string `json:"reference"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type Place struct {
	PlaceID      string     `json:"placeId"`
	Name         string     `json:"name"`
	Address      string     `json:"address"`
	Location     LatLng     `json:"location"`
	Rating       float64    `json:"rating"`
	TotalReviews int        `json:"totalReviews"`
	PriceLevel   *int       `json:"priceLevel,omitempty"`
	PriceRange   PriceRange `json:"priceRange"`
	Cuisine      string     `json:"cuisine"`
	Types        []string   `json:"types"`
	IsOpen       *bool      `json:"isOpen,omitempty"`
	Photos       []Photo    `json:"photos"`
}

type PlaceReview struct {
	AuthorName              string `json:"authorName"`
	AuthorURL               string `json:"authorUrl,omitempty"`
	ProfilePhotoURL         string `json:"profilePhotoUrl,omitempty"`
	Rating                  int    `json:"rating"`
	Text                    string `json:"reviewText"`
	Time                    int64  `json:"time"`
	Language                string `json:"language"`
	RelativeTimeDescription string `json:"relativeTimeDescription,omitempty"`
}

var whitespace = regexp.MustCompile(`\s`)

// ID derives the stable review id used for places reviews.
func (r PlaceReview) ID() string {
	return fmt.Sprintf("google_%d_%s", r.Time, whitespace.ReplaceAllString(r.AuthorName, "_"))
}

func (r PlaceReview) Date() time.Time {
	return time.Unix(r.Time, 0).UTC()
}

type PlaceDetails struct {
	Place
	Phone        string        `json:"phone,omitempty"`
	Website      string        `json:"website,omitempty"`
	OpeningHours []string      `json:"openingHours"`
	Reviews      []PlaceReview `json:"reviews"`
}

type Prediction struct {
	Description   string   `json:"description"`
	PlaceID       string   `json:"place_id"`
	Types         []string `json:"types"`
	MainText      string   `json:"mainText"`
	SecondaryText string   `json:"secondaryText"`
}

var genericTypes = map[string]bool{
	"establishment":     true,
	"point_of_interest": true,
	"food":              true,
}

// Cuisine picks the first place type that says something about the food.
func Cuisine(types []string) string {
	for _, t := range types {
		if !genericTypes[t] {
			return t
		}
	}
	return "restaurant"
}

type rawPlace struct {
	PlaceID          string  `json:"place_id"`
	Name             string  `json:"name"`
	Vicinity         string  `json:"vicinity"`
	FormattedAddress string  `json:"formatted_address"`
	Rating           float64 `json:"rating"`
	UserRatingsTotal int     `json:"user_ratings_total"`
	PriceLevel       *int    `json:"price_level"`
	Geometry         struct {
		Location LatLng `json:"location"`
	} `json:"geometry"`
	Types        []string `json:"types"`
	OpeningHours *struct {
		OpenNow     *bool    `json:"open_now"`
		WeekdayText []string `json:"weekday_text"`
	} `json:"opening_hours"`
	Photos []struct {
		PhotoReference string `json:"photo_reference"`
		Width          int    `json:"width"`
		Height         int    `json:"height"`
	} `json:"photos"`
	FormattedPhoneNumber string `json:"formatted_phone_number"`
	Website              string `json:"website"`
	Reviews              []struct {
		AuthorName              string `json:"author_name"`
		AuthorURL               string `json:"author_url"`
		ProfilePhotoURL         string `json:"profile_photo_url"`
		Rating                  int    `json:"rating"`
		Text                    string `json:"text"`
		Time                    int64  `json:"time"`
		Language                string `json:"language"`
		RelativeTimeDescription string `json:"relative_time_description"`
	} `json:"reviews"`
}

func (p rawPlace) toPlace(maxPhotos int) Place {
	address := p.Vicinity
	if address == "" {
		address = p.FormattedAddress
	}

	place := Place{
		PlaceID:      p.PlaceID,
		Name:         p.Name,
		Address:      address,
		Location:     p.Geometry.Location,
		Rating:       p.Rating,
		TotalReviews: p.UserRatingsTotal,
		PriceLevel:   p.PriceLevel,
		PriceRange:   FormatPriceRange(p.PriceLevel),
		Cuisine:      Cuisine(p.Types),
		Types:        p.Types,
		Photos:       []Photo{},
	}
	if place.Types == nil {
		place.Types = []string{}
	}
	if p.OpeningHours != nil {
		place.IsOpen = p.OpeningHours.OpenNow
	}
	for i, ph := range p.Photos {
		if i == maxPhotos {
			break
		}
		place.Photos = append(place.Photos, Photo{Reference: ph.PhotoReference, Width: ph.Width, Height: ph.Height})
	}
	return place
}

func (p rawPlace) toDetails() *PlaceDetails {
	place := p.toPlace(5)
	if p.FormattedAddress != "" {
		place.Address = p.FormattedAddress
	}

	details := &PlaceDetails{
		Place:        place,
		Phone:        p.FormattedPhoneNumber,
		Website:      p.Website,
		OpeningHours: []string{},
		Reviews:      make([]PlaceReview, 0, len(p.Reviews)),
	}
	if p.OpeningHours != nil && p.OpeningHours.WeekdayText != nil {
		details.OpeningHours = p.OpeningHours.WeekdayText
	}
	for _, r := range p.Reviews {
		lang := r.Language
		if lang == "" {
			lang = "en"
		}
		details.Reviews = append(details.Reviews, PlaceReview{
			AuthorName:              r.AuthorName,
			AuthorURL:               r.AuthorURL,
			ProfilePhotoURL:         r.ProfilePhotoURL,
			Rating:                  r.Rating,
			Text:                    r.Text,
			Time:                    r.Time,
			Language:                lang,
			RelativeTimeDescription: r.RelativeTimeDescription,
		})
	}
	return details
}

package places

import (
	"math"
	"strconv"
	"strings"
)

type PriceRange struct {
	Level       *int   `json:"level"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Range       string `json:"range"`
	Color       string `json:"color"`
}

type priceBand struct {
	symbol, description, label, rng, color string
}

var priceBands = [...]priceBand{
	{"FREE", "Free or very cheap", "Free/Very Cheap", "Under RM10", "#10B981"},
	{"$", "Inexpensive", "Inexpensive", "RM10-25", "#059669"},
	{"$$", "Moderate", "Moderate", "RM25-60", "#D97706"},
	{"$$$", "Expensive", "Expensive", "RM60-120", "#DC2626"},
	{"$$$$", "Very expensive", "Very Expensive", "RM120+", "#7C2D12"},
}

// FormatPriceRange converts a places price level (0-4) into display bands.
// Out-of-range levels are shown as inexpensive.
func FormatPriceRange(level *int) PriceRange {
	if level == nil {
		return PriceRange{Symbol: "?", Description: "Price not available", Range: "Unknown", Color: "#6B7280"}
	}

	band := priceBands[1]
	if *level >= 0 && *level < len(priceBands) {
		band = priceBands[*level]
	}
	l := *level
	return PriceRange{Level: &l, Symbol: band.symbol, Description: band.description, Range: band.rng, Color: band.color}
}

// ParseMaxPrice reads a maxPrice query value. It reports false for "all",
// empty and anything outside 0-4.
func ParseMaxPrice(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "all" {
		return 0, false
	}
	level, err := strconv.Atoi(raw)
	if err != nil || level < 0 || level > 4 {
		return 0, false
	}
	return level, true
}

// FilterByPriceLevel keeps places at or below maxLevel. Places with no
// price level are always kept.
func FilterByPriceLevel(places []Place, maxLevel int) []Place {
	filtered := make([]Place, 0, len(places))
	for _, p := range places {
		if p.PriceLevel == nil || *p.PriceLevel <= maxLevel {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

type PriceBucket struct {
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
	Label      string `json:"label"`
}

// PriceDistribution counts places per price level, keyed "0".."4" and "unknown".
func PriceDistribution(places []Place) map[string]PriceBucket {
	dist := make(map[string]PriceBucket, len(priceBands)+1)
	for i, band := range priceBands {
		dist[strconv.Itoa(i)] = PriceBucket{Label: band.label}
	}
	dist["unknown"] = PriceBucket{Label: "Unknown"}

	for _, p := range places {
		key := "unknown"
		if p.PriceLevel != nil && *p.PriceLevel >= 0 && *p.PriceLevel <= 4 {
			key = strconv.Itoa(*p.PriceLevel)
		}
		b := dist[key]
		b.Count++
		dist[key] = b
	}

	total := len(places)
	for key, b := range dist {
		if total > 0 {
			b.Percentage = int(math.Round(float64(b.Count) / float64(total) * 100))
		}
		dist[key] = b
	}
	return dist
}

type AveragePrice struct {
	Average     *float64 `json:"average"`
	Description string   `json:"description"`
	Symbol      string   `json:"symbol"`
	Range       string   `json:"range,omitempty"`
}

func AveragePriceLevel(places []Place) AveragePrice {
	sum, n := 0, 0
	for _, p := range places {
		if p.PriceLevel != nil && *p.PriceLevel >= 0 && *p.PriceLevel <= 4 {
			sum += *p.PriceLevel
			n++
		}
	}
	if n == 0 {
		return AveragePrice{Description: "Price information not available", Symbol: "?"}
	}

	avg := float64(sum) / float64(n)
	rounded := int(math.Round(avg))
	info := FormatPriceRange(&rounded)
	avg = math.Round(avg*10) / 10
	return AveragePrice{Average: &avg, Description: info.Description, Symbol: info.Symbol, Range: info.Range}
}

package api

import (
	"strconv"
	"time"
)

// Bathroom is a restroom listed on the map.
type Bathroom struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Address          string  `json:"address"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	IsUnisex         bool    `json:"is_unisex"`
	IsAccessible     bool    `json:"is_accessible"`
	HasChangingTable bool    `json:"has_changing_table"`
	Directions       string  `json:"directions,omitempty"`
	Comment          string  `json:"comment,omitempty"`
	AverageRating    float64 `json:"average_rating"`
	TotalRatings     int     `json:"total_ratings"`
	ExternalID       string  `json:"external_id,omitempty"`
	ExternalSource   string  `json:"external_source,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

// BathroomInput is the payload for creating a bathroom.
type BathroomInput struct {
	Name             string  `json:"name"`
	Address          string  `json:"address,omitempty"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	IsUnisex         *bool   `json:"is_unisex,omitempty"`
	IsAccessible     *bool   `json:"is_accessible,omitempty"`
	HasChangingTable *bool   `json:"has_changing_table,omitempty"`
	Directions       string  `json:"directions,omitempty"`
	Comment          string  `json:"comment,omitempty"`
	ExternalID       string  `json:"external_id,omitempty"`
	ExternalSource   string  `json:"external_source,omitempty"`
}

// BathroomUpdate is a partial update; nil fields are left unchanged.
type BathroomUpdate struct {
	Name             *string  `json:"name,omitempty"`
	Address          *string  `json:"address,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	IsUnisex         *bool    `json:"is_unisex,omitempty"`
	IsAccessible     *bool    `json:"is_accessible,omitempty"`
	HasChangingTable *bool    `json:"has_changing_table,omitempty"`
	Directions       *string  `json:"directions,omitempty"`
	Comment          *string  `json:"comment,omitempty"`
}

// Review is a rating left on a bathroom.
type Review struct {
	ID         int64  `json:"id"`
	BathroomID int64  `json:"bathroom_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitempty"`
	Directions string `json:"directions,omitempty"`
	CreatedAt  string `json:"created_at"`
	UserID     *int64 `json:"user_id,omitempty"`
}

// ReviewInput is the payload for creating a review. Rating is 1 to 5.
type ReviewInput struct {
	BathroomID int64  `json:"bathroom_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitempty"`
	Directions string `json:"directions,omitempty"`
}

// FilterOptions narrows a bathroom search. Zero values are not sent.
// Setting any of the feature flags disables request deduplication for the
// call, since filtered results are not shared between callers.
type FilterOptions struct {
	Radius           float64 `json:"radius,omitempty"`
	RatingMin        float64 `json:"rating_min,omitempty"`
	IsUnisex         bool    `json:"is_unisex,omitempty"`
	IsAccessible     bool    `json:"is_accessible,omitempty"`
	HasChangingTable bool    `json:"has_changing_table,omitempty"`
}

// BathroomDetails is a bathroom together with its recent reviews.
type BathroomDetails struct {
	Bathroom *Bathroom `json:"bathroom"`
	Reviews  []Review  `json:"reviews"`
}

// Sentiment is the three-level rating used by the legacy location API.
type Sentiment string

// Sentiment values.
const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// SentimentFromRating maps a 1-5 rating to a sentiment.
func SentimentFromRating(rating int) Sentiment {
	switch {
	case rating >= 4:
		return SentimentPositive
	case rating >= 2:
		return SentimentNeutral
	default:
		return SentimentNegative
	}
}

// Rating maps a sentiment to a 1-5 rating.
func (s Sentiment) Rating() int {
	switch s {
	case SentimentPositive:
		return 5
	case SentimentNeutral:
		return 3
	default:
		return 1
	}
}

// Location is the legacy representation of a bathroom.
type Location struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Address       string  `json:"address"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	PositiveCount int     `json:"positive_count"`
	NeutralCount  int     `json:"neutral_count"`
	NegativeCount int     `json:"negative_count"`
	TotalRatings  int     `json:"total_ratings"`
	Source        string  `json:"source,omitempty"`
	ExternalID    string  `json:"external_id,omitempty"`
	ADAAccessible bool    `json:"ada_accessible,omitempty"`
	Unisex        bool    `json:"unisex,omitempty"`
	LastUpdated   int64   `json:"last_updated,omitempty"`
}

// LocationFilters is the legacy filter set.
type LocationFilters struct {
	Type   string  `json:"type,omitempty"`
	Radius float64 `json:"radius,omitempty"`
}

// Rating is the legacy representation of a review.
type Rating struct {
	ID         string    `json:"id"`
	LocationID string    `json:"location_id"`
	Sentiment  Sentiment `json:"sentiment"`
	Comment    string    `json:"comment,omitempty"`
	Timestamp  int64     `json:"timestamp"`
	BathroomID int64     `json:"bathroom_id,omitempty"`
	Rating     int       `json:"rating,omitempty"`
	CreatedAt  string    `json:"created_at,omitempty"`
	UserID     *int64    `json:"user_id,omitempty"`
}

// LocationTypeRestroom is the only legacy location type backed by data.
const LocationTypeRestroom = "restroom"

// timestampLayouts are the formats the backend uses for timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp returns the Unix milliseconds of a backend timestamp,
// or 0 when it cannot be parsed.
func parseTimestamp(s string) int64 {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

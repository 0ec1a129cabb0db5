package api

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/restroommap/internal/observability"
)

// defaultLocationRadius is the search radius used by GetLocations when the
// filters leave it unset.
const defaultLocationRadius = 2.0

// unknownLocationName names bathrooms created from a location without one.
const unknownLocationName = "Unknown"

// GetLocations returns the bathrooms around a point as legacy locations.
// It returns an empty slice when either coordinate is zero or the filters
// ask for a type other than restrooms.
func (c *Client) GetLocations(ctx context.Context, filters LocationFilters, lat, lng float64) []Location {
	if lat == 0 || lng == 0 {
		return []Location{}
	}
	if filters.Type != "" && filters.Type != LocationTypeRestroom {
		return []Location{}
	}

	radius := filters.Radius
	if radius <= 0 {
		radius = defaultLocationRadius
	}

	bathrooms := c.GetBathrooms(ctx, lat, lng, FilterOptions{Radius: radius})

	locations := make([]Location, 0, len(bathrooms))
	for i := range bathrooms {
		locations = append(locations, locationFromBathroom(&bathrooms[i]))
	}
	return locations
}

// locationFromBathroom converts a bathroom, deriving sentiment counts from
// the average rating.
func locationFromBathroom(b *Bathroom) Location {
	total := float64(b.TotalRatings)

	return Location{
		ID:            formatID(b.ID),
		Name:          b.Name,
		Type:          LocationTypeRestroom,
		Address:       b.Address,
		Lat:           b.Latitude,
		Lng:           b.Longitude,
		PositiveCount: roundHalfUp(b.AverageRating * total / 5),
		NeutralCount:  roundHalfUp(total / 5),
		NegativeCount: roundHalfUp((5 - b.AverageRating) * total / 5),
		TotalRatings:  b.TotalRatings,
		Source:        b.ExternalSource,
		ExternalID:    b.ExternalID,
		ADAAccessible: b.IsAccessible,
		Unisex:        b.IsUnisex,
		LastUpdated:   parseTimestamp(b.UpdatedAt),
	}
}

func roundHalfUp(f float64) int {
	return int(math.Floor(f + 0.5))
}

// GetRatings returns the reviews of a location as legacy ratings. It
// returns an empty slice when the location ID is not numeric.
func (c *Client) GetRatings(ctx context.Context, locationID string) []Rating {
	bathroomID, ok := parseLocationID(locationID)
	if !ok {
		c.logger.WithContext(ctx).Debug("ignoring non-numeric location id",
			observability.String("locationID", locationID))
		return []Rating{}
	}

	reviews := c.GetReviews(ctx, bathroomID, 0)

	ratings := make([]Rating, 0, len(reviews))
	for i := range reviews {
		ratings = append(ratings, ratingFromReview(&reviews[i]))
	}
	return ratings
}

func ratingFromReview(r *Review) Rating {
	return Rating{
		ID:         formatID(r.ID),
		LocationID: formatID(r.BathroomID),
		Sentiment:  SentimentFromRating(r.Rating),
		Comment:    r.Comment,
		Timestamp:  parseTimestamp(r.CreatedAt),
		BathroomID: r.BathroomID,
		Rating:     r.Rating,
		CreatedAt:  r.CreatedAt,
		UserID:     r.UserID,
	}
}

// SubmitRating records a legacy rating. With isNew and a location, the
// bathroom is created first and the review is attached to it; otherwise
// the rating's LocationID must name an existing bathroom.
func (c *Client) SubmitRating(ctx context.Context, rating Rating, isNew bool, loc *Location) bool {
	ctx = withRequestID(ctx)

	var bathroomID int64
	if isNew && loc != nil {
		b := c.CreateBathroom(ctx, bathroomInputFromLocation(loc))
		if b == nil {
			return false
		}
		bathroomID = b.ID
	} else {
		id, ok := parseLocationID(rating.LocationID)
		if !ok {
			return false
		}
		bathroomID = id
	}

	review := c.CreateReview(ctx, ReviewInput{
		BathroomID: bathroomID,
		Rating:     rating.Sentiment.Rating(),
		Comment:    rating.Comment,
	})
	return review != nil
}

func bathroomInputFromLocation(loc *Location) BathroomInput {
	name := loc.Name
	if name == "" {
		name = unknownLocationName
	}

	unisex := loc.Unisex
	accessible := loc.ADAAccessible

	return BathroomInput{
		Name:           name,
		Address:        loc.Address,
		Latitude:       loc.Lat,
		Longitude:      loc.Lng,
		IsUnisex:       &unisex,
		IsAccessible:   &accessible,
		ExternalID:     loc.ExternalID,
		ExternalSource: loc.Source,
	}
}

// parseLocationID reads the leading base-10 integer of s, ignoring
// surrounding whitespace and any trailing non-digits.
func parseLocationID(s string) (int64, bool) {
	s = strings.TrimSpace(s)

	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}

	id, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

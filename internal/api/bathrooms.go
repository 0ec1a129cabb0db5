package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/vyrodovalexey/restroommap/internal/observability"
)

// Route templates.
const (
	routeBathrooms    = "/bathrooms/"
	routeBathroom     = "/bathrooms/{id}/"
	routeReviews      = "/reviews/{bathroomId}/"
	routeCreateReview = "/reviews/"
)

// Query parameters.
const (
	paramLatitude         = "latitude"
	paramLongitude        = "longitude"
	paramRadius           = "radius"
	paramLimit            = "limit"
	paramRatingMin        = "rating_min"
	paramIsUnisex         = "is_unisex"
	paramIsAccessible     = "is_accessible"
	paramHasChangingTable = "has_changing_table"
)

func bathroomPath(id int64) string {
	return "/bathrooms/" + formatID(id) + "/"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// GetBathrooms returns the bathrooms around a point. Entries without
// numeric coordinates are dropped. It returns an empty slice on failure.
func (c *Client) GetBathrooms(ctx context.Context, lat, lng float64, opts FilterOptions) []Bathroom {
	ctx = withRequestID(ctx)

	bathrooms, err := c.listBathrooms(ctx, lat, lng, opts)
	if err != nil {
		c.report(ctx, "GetBathrooms", err)
		return []Bathroom{}
	}
	return bathrooms
}

func (c *Client) listBathrooms(ctx context.Context, lat, lng float64, opts FilterOptions) ([]Bathroom, error) {
	radius := opts.Radius
	if radius <= 0 {
		radius = c.cfg.API.DefaultRadius
	}

	now := c.now()
	policy := c.dedup.Policy()

	query := url.Values{}
	query.Set(paramLatitude, formatFloat(lat))
	query.Set(paramLongitude, formatFloat(lng))
	query.Set(paramRadius, formatFloat(radius))
	query.Set(paramLimit, strconv.Itoa(c.cfg.API.ListLimit))
	query.Set(policy.BucketParam, policy.BucketValue(now))

	if opts.RatingMin > 0 {
		query.Set(paramRatingMin, formatFloat(opts.RatingMin))
	}
	if opts.IsUnisex {
		query.Set(paramIsUnisex, "true")
	}
	if opts.IsAccessible {
		query.Set(paramIsAccessible, "true")
	}
	if opts.HasChangingTable {
		query.Set(paramHasChangingTable, "true")
	}

	req := &request{
		method: http.MethodGet,
		route:  routeBathrooms,
		path:   routeBathrooms,
		query:  query,
		issued: now,
	}

	bathrooms, err := readList(ctx, c, "GetBathrooms", req, decodeBathrooms)
	if err != nil {
		return nil, err
	}

	c.logger.WithContext(ctx).Debug("bathrooms fetched",
		observability.Int("count", len(bathrooms)))

	return bathrooms, nil
}

// decodeBathrooms decodes a bathroom list, keeping only entries whose
// latitude and longitude are JSON numbers.
func decodeBathrooms(body []byte) ([]Bathroom, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decode bathrooms: %w", ErrInvalidJSON)
	}

	result := gjson.ParseBytes(body)
	if !result.IsArray() {
		return nil, ErrNotArray
	}

	bathrooms := make([]Bathroom, 0, len(result.Array()))
	result.ForEach(func(_, item gjson.Result) bool {
		if item.Get(paramLatitude).Type != gjson.Number || item.Get(paramLongitude).Type != gjson.Number {
			return true
		}
		var b Bathroom
		if err := json.Unmarshal([]byte(item.Raw), &b); err != nil {
			return true
		}
		bathrooms = append(bathrooms, b)
		return true
	})

	return bathrooms, nil
}

// GetBathroom returns a bathroom by ID, or nil on failure.
func (c *Client) GetBathroom(ctx context.Context, id int64) *Bathroom {
	ctx = withRequestID(ctx)

	b, err := c.fetchBathroom(ctx, id)
	if err != nil {
		c.report(ctx, "GetBathroom", err)
		return nil
	}
	return b
}

func (c *Client) fetchBathroom(ctx context.Context, id int64) (*Bathroom, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}

	body, err := c.read(ctx, "GetBathroom", &request{
		method: http.MethodGet,
		route:  routeBathroom,
		path:   bathroomPath(id),
	})
	if err != nil {
		return nil, err
	}

	var b Bathroom
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("decode bathroom: %w", err)
	}
	return &b, nil
}

// CreateBathroom creates a bathroom and returns it, or nil on failure.
func (c *Client) CreateBathroom(ctx context.Context, in BathroomInput) *Bathroom {
	ctx = withRequestID(ctx)

	b, err := c.createBathroom(ctx, in)
	if err != nil {
		c.report(ctx, "CreateBathroom", err)
		return nil
	}
	return b
}

func (c *Client) createBathroom(ctx context.Context, in BathroomInput) (*Bathroom, error) {
	resp, err := c.mutate(ctx, "CreateBathroom", &request{
		method: http.MethodPost,
		route:  routeBathrooms,
		path:   routeBathrooms,
	}, in)
	if err != nil {
		return nil, err
	}

	var b Bathroom
	if err := json.Unmarshal(resp.body, &b); err != nil {
		return nil, fmt.Errorf("decode bathroom: %w", err)
	}
	return &b, nil
}

// UpdateBathroom applies a partial update and returns the updated
// bathroom, or nil on failure.
func (c *Client) UpdateBathroom(ctx context.Context, id int64, update BathroomUpdate) *Bathroom {
	ctx = withRequestID(ctx)

	b, err := c.updateBathroom(ctx, id, update)
	if err != nil {
		c.report(ctx, "UpdateBathroom", err)
		return nil
	}
	return b
}

func (c *Client) updateBathroom(ctx context.Context, id int64, update BathroomUpdate) (*Bathroom, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}

	resp, err := c.mutate(ctx, "UpdateBathroom", &request{
		method: http.MethodPut,
		route:  routeBathroom,
		path:   bathroomPath(id),
	}, update)
	if err != nil {
		return nil, err
	}
	c.forget(bathroomPath(id))

	var b Bathroom
	if err := json.Unmarshal(resp.body, &b); err != nil {
		return nil, fmt.Errorf("decode bathroom: %w", err)
	}
	return &b, nil
}

// DeleteBathroom deletes a bathroom. It reports true when the backend
// answers 204 or with an empty body.
func (c *Client) DeleteBathroom(ctx context.Context, id int64) bool {
	ctx = withRequestID(ctx)

	if id <= 0 {
		c.report(ctx, "DeleteBathroom", fmt.Errorf("%w: %d", ErrInvalidID, id))
		return false
	}

	resp, err := c.mutate(ctx, "DeleteBathroom", &request{
		method: http.MethodDelete,
		route:  routeBathroom,
		path:   bathroomPath(id),
	}, nil)
	if err != nil {
		c.report(ctx, "DeleteBathroom", err)
		return false
	}
	c.forget(bathroomPath(id))

	return resp.status == http.StatusNoContent || len(bytes.TrimSpace(resp.body)) == 0
}

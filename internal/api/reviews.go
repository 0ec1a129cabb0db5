package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
)

func reviewsPath(bathroomID int64) string {
	return "/reviews/" + formatID(bathroomID) + "/"
}

// GetReviews returns up to limit reviews for a bathroom. A limit of zero
// or less uses the configured default. It returns an empty slice on failure.
func (c *Client) GetReviews(ctx context.Context, bathroomID int64, limit int) []Review {
	ctx = withRequestID(ctx)

	reviews, err := c.listReviews(ctx, bathroomID, limit)
	if err != nil {
		c.report(ctx, "GetReviews", err)
		return []Review{}
	}
	return reviews
}

func (c *Client) listReviews(ctx context.Context, bathroomID int64, limit int) ([]Review, error) {
	if bathroomID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, bathroomID)
	}
	if limit <= 0 {
		limit = c.cfg.API.ReviewsLimit
	}

	req := &request{
		method: http.MethodGet,
		route:  routeReviews,
		path:   reviewsPath(bathroomID),
		query:  url.Values{paramLimit: {strconv.Itoa(limit)}},
	}

	return readList(ctx, c, "GetReviews", req, decodeReviews)
}

func decodeReviews(body []byte) ([]Review, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decode reviews: %w", ErrInvalidJSON)
	}
	if !gjson.ParseBytes(body).IsArray() {
		return nil, ErrNotArray
	}

	reviews := make([]Review, 0)
	if err := json.Unmarshal(body, &reviews); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	return reviews, nil
}

// CreateReview submits a review and returns it, or nil on failure.
func (c *Client) CreateReview(ctx context.Context, in ReviewInput) *Review {
	ctx = withRequestID(ctx)

	r, err := c.createReview(ctx, in)
	if err != nil {
		c.report(ctx, "CreateReview", err)
		return nil
	}
	return r
}

func (c *Client) createReview(ctx context.Context, in ReviewInput) (*Review, error) {
	if in.BathroomID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, in.BathroomID)
	}

	resp, err := c.mutate(ctx, "CreateReview", &request{
		method: http.MethodPost,
		route:  routeCreateReview,
		path:   routeCreateReview,
	}, in)
	if err != nil {
		return nil, err
	}

	var r Review
	if err := json.Unmarshal(resp.body, &r); err != nil {
		return nil, fmt.Errorf("decode review: %w", err)
	}
	return &r, nil
}

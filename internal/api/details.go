package api

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// GetBathroomDetails fetches a bathroom and its recent reviews
// concurrently. It returns nil if either fetch fails.
func (c *Client) GetBathroomDetails(ctx context.Context, id int64) *BathroomDetails {
	ctx = withRequestID(ctx)

	details, err := c.fetchDetails(ctx, id)
	if err != nil {
		c.report(ctx, "GetBathroomDetails", err)
		return nil
	}
	return details
}

func (c *Client) fetchDetails(ctx context.Context, id int64) (*BathroomDetails, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}

	var details BathroomDetails
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b, err := c.fetchBathroom(gctx, id)
		if err != nil {
			return fmt.Errorf("bathroom: %w", err)
		}
		details.Bathroom = b
		return nil
	})

	g.Go(func() error {
		reviews, err := c.listReviews(gctx, id, 0)
		if err != nil {
			return fmt.Errorf("reviews: %w", err)
		}
		details.Reviews = reviews
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &details, nil
}

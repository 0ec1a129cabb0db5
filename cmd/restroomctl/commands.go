package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/restroommap/internal/api"
)

// errNotDeleted is returned when the backend answered a delete without
// confirming it.
var errNotDeleted = errors.New("backend did not confirm the deletion")

// parseID parses a positive resource ID argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}

func newNearbyCommand(a *app) *cobra.Command {
	var (
		lat, lng float64
		opts     api.FilterOptions
	)

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "List bathrooms around a point",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, _ []string) error {
			return a.emit(a.client.GetBathrooms(ctx, lat, lng, opts))
		}),
	}

	f := cmd.Flags()
	f.Float64Var(&lat, "lat", 0, "Latitude")
	f.Float64Var(&lng, "lng", 0, "Longitude")
	f.Float64Var(&opts.Radius, "radius", 0, "Search radius in km (default from configuration)")
	f.Float64Var(&opts.RatingMin, "rating-min", 0, "Minimum average rating")
	f.BoolVar(&opts.IsUnisex, "unisex", false, "Only unisex bathrooms")
	f.BoolVar(&opts.IsAccessible, "accessible", false, "Only accessible bathrooms")
	f.BoolVar(&opts.HasChangingTable, "changing-table", false, "Only bathrooms with a changing table")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")

	return cmd
}

func newShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a bathroom",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.emit(a.client.GetBathroom(ctx, id))
		}),
	}
}

func newDetailsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "details <id>",
		Short: "Show a bathroom with its recent reviews",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.emit(a.client.GetBathroomDetails(ctx, id))
		}),
	}
}

func newReviewsCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reviews <id>",
		Short: "List the reviews of a bathroom",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.emit(a.client.GetReviews(ctx, id, limit))
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of reviews (default from configuration)")

	return cmd
}

func newReviewCommand(a *app) *cobra.Command {
	var in api.ReviewInput

	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Review a bathroom",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if in.Rating < 1 || in.Rating > 5 {
				return fmt.Errorf("invalid rating %d: must be between 1 and 5", in.Rating)
			}
			in.BathroomID = id
			return a.emit(a.client.CreateReview(ctx, in))
		}),
	}

	f := cmd.Flags()
	f.IntVar(&in.Rating, "rating", 0, "Rating from 1 to 5")
	f.StringVar(&in.Comment, "comment", "", "Comment")
	f.StringVar(&in.Directions, "directions", "", "Directions to the bathroom")
	_ = cmd.MarkFlagRequired("rating")

	return cmd
}

func newAddCommand(a *app) *cobra.Command {
	var (
		in                                api.BathroomInput
		unisex, accessible, changingTable bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a bathroom",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, _ []string) error {
			in.IsUnisex = &unisex
			in.IsAccessible = &accessible
			in.HasChangingTable = &changingTable
			return a.emit(a.client.CreateBathroom(ctx, in))
		}),
	}

	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "Name")
	f.StringVar(&in.Address, "address", "", "Street address")
	f.Float64Var(&in.Latitude, "lat", 0, "Latitude")
	f.Float64Var(&in.Longitude, "lng", 0, "Longitude")
	f.BoolVar(&unisex, "unisex", false, "Unisex")
	f.BoolVar(&accessible, "accessible", false, "Wheelchair accessible")
	f.BoolVar(&changingTable, "changing-table", false, "Has a changing table")
	f.StringVar(&in.Directions, "directions", "", "Directions")
	f.StringVar(&in.Comment, "comment", "", "Comment")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")

	return cmd
}

func newUpdateCommand(a *app) *cobra.Command {
	var (
		name, address, directions, comment string
		lat, lng                           float64
		unisex, accessible, changingTable  bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update the given fields of a bathroom",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		f := cmd.Flags()
		var update api.BathroomUpdate
		if f.Changed("name") {
			update.Name = &name
		}
		if f.Changed("address") {
			update.Address = &address
		}
		if f.Changed("lat") {
			update.Latitude = &lat
		}
		if f.Changed("lng") {
			update.Longitude = &lng
		}
		if f.Changed("unisex") {
			update.IsUnisex = &unisex
		}
		if f.Changed("accessible") {
			update.IsAccessible = &accessible
		}
		if f.Changed("changing-table") {
			update.HasChangingTable = &changingTable
		}
		if f.Changed("directions") {
			update.Directions = &directions
		}
		if f.Changed("comment") {
			update.Comment = &comment
		}
		if update == (api.BathroomUpdate{}) {
			return errors.New("nothing to update: set at least one field flag")
		}

		return a.emit(a.client.UpdateBathroom(ctx, id, update))
	})

	f := cmd.Flags()
	f.StringVar(&name, "name", "", "Name")
	f.StringVar(&address, "address", "", "Street address")
	f.Float64Var(&lat, "lat", 0, "Latitude")
	f.Float64Var(&lng, "lng", 0, "Longitude")
	f.BoolVar(&unisex, "unisex", false, "Unisex")
	f.BoolVar(&accessible, "accessible", false, "Wheelchair accessible")
	f.BoolVar(&changingTable, "changing-table", false, "Has a changing table")
	f.StringVar(&directions, "directions", "", "Directions")
	f.StringVar(&comment, "comment", "", "Comment")

	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a bathroom",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			deleted := a.client.DeleteBathroom(ctx, id)
			if !deleted {
				if err := a.failure(); err != nil {
					return err
				}
				return errNotDeleted
			}
			return a.emit(map[string]any{"id": id, "deleted": true})
		}),
	}
}

func newLocationsCommand(a *app) *cobra.Command {
	var (
		lat, lng float64
		filters  api.LocationFilters
	)

	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List bathrooms around a point in the legacy location format",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, _ []string) error {
			return a.emit(a.client.GetLocations(ctx, filters, lat, lng))
		}),
	}

	f := cmd.Flags()
	f.Float64Var(&lat, "lat", 0, "Latitude")
	f.Float64Var(&lng, "lng", 0, "Longitude")
	f.StringVar(&filters.Type, "type", "", "Location type (only restroom is supported)")
	f.Float64Var(&filters.Radius, "radius", 0, "Search radius in km (default 2)")

	return cmd
}

func newRatingsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ratings <location-id>",
		Short: "List the reviews of a location in the legacy rating format",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, args []string) error {
			return a.emit(a.client.GetRatings(ctx, args[0]))
		}),
	}
}

func newRateCommand(a *app) *cobra.Command {
	var (
		sentiment string
		comment   string
	)

	cmd := &cobra.Command{
		Use:   "rate <location-id>",
		Short: "Rate a location with a positive, neutral or negative sentiment",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, args []string) error {
			s := api.Sentiment(sentiment)
			switch s {
			case api.SentimentPositive, api.SentimentNeutral, api.SentimentNegative:
			default:
				return fmt.Errorf("invalid sentiment %q", sentiment)
			}

			ok := a.client.SubmitRating(ctx, api.Rating{
				LocationID: args[0],
				Sentiment:  s,
				Comment:    comment,
			}, false, nil)
			if !ok {
				if err := a.failure(); err != nil {
					return err
				}
				return fmt.Errorf("invalid location id %q", args[0])
			}
			return a.emit(map[string]any{"location_id": args[0], "submitted": true})
		}),
	}

	f := cmd.Flags()
	f.StringVar(&sentiment, "sentiment", "", "positive, neutral or negative")
	f.StringVar(&comment, "comment", "", "Comment")
	_ = cmd.MarkFlagRequired("sentiment")

	return cmd
}

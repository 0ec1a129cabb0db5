package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewListJSON = `[
	{"id": 11, "bathroom_id": 7, "rating": 5, "comment": "Clean", "created_at": "2024-04-01T08:30:00Z", "user_id": 3},
	{"id": 12, "bathroom_id": 7, "rating": 3, "created_at": "2024-04-02T08:30:00Z"},
	{"id": 13, "bathroom_id": 7, "rating": 1, "comment": "Closed", "created_at": "not a date"}
]`

func TestGetReviews(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	backend.api.GET("/reviews/:bathroomId/", serveJSON(http.StatusOK, reviewListJSON))

	client, _ := newTestClient(t, backend, nil)
	ctx := context.Background()

	got := client.GetReviews(ctx, 7, 0)
	require.Len(t, got, 3)
	assert.Equal(t, "Clean", got[0].Comment)
	require.NotNil(t, got[0].UserID)
	assert.Equal(t, int64(3), *got[0].UserID)
	assert.Nil(t, got[1].UserID)
	assert.Equal(t, "10", backend.Last(t, http.MethodGet, "/api/reviews/7/").Query.Get("limit"))

	client.GetReviews(ctx, 7, 25)
	assert.Equal(t, "25", backend.Last(t, http.MethodGet, "/api/reviews/7/").Query.Get("limit"))
	assert.Equal(t, 2, backend.Calls(http.MethodGet, "/api/reviews/7/"))

	// same limit within the window is deduplicated
	client.GetReviews(ctx, 7, 25)
	assert.Equal(t, 2, backend.Calls(http.MethodGet, "/api/reviews/7/"))
}

func TestGetReviews_Failures(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	backend.api.GET("/reviews/:bathroomId/", func(c *gin.Context) {
		if c.Param("bathroomId") == "404" {
			c.JSON(http.StatusNotFound, gin.H{"detail": "missing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": []int{}})
	})

	client, failures := newTestClient(t, backend, nil)
	ctx := context.Background()

	assert.Equal(t, []Review{}, client.GetReviews(ctx, 404, 0))
	assert.Equal(t, []Review{}, client.GetReviews(ctx, 1, 0))
	assert.Equal(t, []Review{}, client.GetReviews(ctx, 0, 0))

	reported := failures.All()
	require.Len(t, reported, 3)
	assert.True(t, IsStatus(reported[0].Err, http.StatusNotFound))
	assert.ErrorIs(t, reported[1].Err, ErrNotArray)
	assert.ErrorIs(t, reported[2].Err, ErrInvalidID)
}

func TestCreateReview(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	backend.api.POST("/reviews/", func(c *gin.Context) {
		var in ReviewInput
		if err := c.ShouldBindJSON(&in); err != nil || in.Rating < 1 || in.Rating > 5 {
			c.JSON(http.StatusBadRequest, gin.H{"rating": "invalid"})
			return
		}
		c.JSON(http.StatusCreated, Review{ID: 99, BathroomID: in.BathroomID, Rating: in.Rating, Comment: in.Comment})
	})

	client, failures := newTestClient(t, backend, nil)
	ctx := context.Background()

	got := client.CreateReview(ctx, ReviewInput{BathroomID: 7, Rating: 4, Comment: "ok"})
	require.NotNil(t, got)
	assert.Equal(t, int64(99), got.ID)
	assert.Equal(t, 4, got.Rating)

	var sent ReviewInput
	require.NoError(t, json.Unmarshal(backend.Last(t, http.MethodPost, "/api/reviews/").Body, &sent))
	assert.Equal(t, ReviewInput{BathroomID: 7, Rating: 4, Comment: "ok"}, sent)

	assert.Nil(t, client.CreateReview(ctx, ReviewInput{BathroomID: 7, Rating: 9}))
	assert.Equal(t, 2, backend.Calls(http.MethodPost, "/api/reviews/"))
	require.Len(t, failures.All(), 1)
	assert.True(t, IsStatus(failures.All()[0].Err, http.StatusBadRequest))
}

func TestGetBathroomDetails(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	backend.api.GET("/bathrooms/:id/", serveJSON(http.StatusOK, bathroomJSON))
	backend.api.GET("/reviews/:bathroomId/", serveJSON(http.StatusOK, reviewListJSON))

	client, _ := newTestClient(t, backend, nil)

	got := client.GetBathroomDetails(context.Background(), 7)
	require.NotNil(t, got)
	require.NotNil(t, got.Bathroom)
	assert.Equal(t, "Cafe", got.Bathroom.Name)
	assert.Len(t, got.Reviews, 3)
}

func TestGetBathroomDetails_AnyFailureReturnsNil(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	backend.api.GET("/bathrooms/:id/", serveJSON(http.StatusOK, bathroomJSON))
	backend.api.GET("/reviews/:bathroomId/", serveJSON(http.StatusForbidden, `{}`))

	client, failures := newTestClient(t, backend, nil)

	assert.Nil(t, client.GetBathroomDetails(context.Background(), 7))

	reported := failures.All()
	require.Len(t, reported, 1)
	assert.Equal(t, "GetBathroomDetails", reported[0].Operation)
	assert.True(t, IsStatus(reported[0].Err, http.StatusForbidden))
}

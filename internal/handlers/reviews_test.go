package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/foodmap/apiserver/internal/services"
	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/types"
)

type memReviewRepo struct {
	reviews map[primitive.ObjectID]types.Review
}

func newMemReviewRepo() *memReviewRepo {
	return &memReviewRepo{reviews: map[primitive.ObjectID]types.Review{}}
}

func (m *memReviewRepo) Create(_ context.Context, review types.Review) (types.Review, error) {
	review = types.NewReview(review)
	m.reviews[review.ID] = review
	return review, nil
}

func (m *memReviewRepo) GetByID(_ context.Context, id primitive.ObjectID) (types.Review, error) {
	review, ok := m.reviews[id]
	if !ok {
		return types.Review{}, store.ErrNotFound
	}
	return review, nil
}

func (m *memReviewRepo) List(_ context.Context, _ store.ListParams) ([]types.Review, int64, error) {
	out := []types.Review{}
	for _, review := range m.reviews {
		out = append(out, review)
	}
	return out, int64(len(out)), nil
}

func (m *memReviewRepo) ListByRestaurant(_ context.Context, restaurantID primitive.ObjectID, _ store.ListParams) ([]types.Review, int64, error) {
	out := []types.Review{}
	for _, review := range m.reviews {
		if review.RestaurantID == restaurantID {
			out = append(out, review)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memReviewRepo) ListByUser(_ context.Context, userID primitive.ObjectID, _ store.ListParams) ([]types.Review, int64, error) {
	out := []types.Review{}
	for _, review := range m.reviews {
		if review.UserID == userID {
			out = append(out, review)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memReviewRepo) Recent(_ context.Context) ([]types.Review, error) {
	out := []types.Review{}
	for _, review := range m.reviews {
		out = append(out, review)
	}
	return out, nil
}

func (m *memReviewRepo) UpdateFields(_ context.Context, id primitive.ObjectID, _ bson.M) error {
	if _, ok := m.reviews[id]; !ok {
		return store.ErrNotFound
	}
	return nil
}

func (m *memReviewRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := m.reviews[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.reviews, id)
	return nil
}

// noAggregator satisfies the aggregator slice for listing tests; a
// missing restaurant is skipped by the service.
type noAggregator struct{}

func (noAggregator) GetByID(context.Context, primitive.ObjectID) (types.Restaurant, error) {
	return types.Restaurant{}, store.ErrNotFound
}

func (noAggregator) UpdateAggregates(context.Context, primitive.ObjectID, float64, int) error {
	return nil
}

type noRemover struct{}

func (noRemover) DeleteAll(context.Context, []types.Media) error { return nil }

type reviewFixture struct {
	*userFixture
	reviews *memReviewRepo
}

func newReviewListFixture(t *testing.T) *reviewFixture {
	t.Helper()
	f := newUserFixture(t)
	reviews := newMemReviewRepo()
	reviewService := services.NewReviewService(reviews, noAggregator{}, noRemover{})
	auth := RequireAuth(f.tokens, f.service)

	router := chi.NewRouter()
	router.Route("/v1/users", func(r chi.Router) {
		UserRouter(r, f.service, auth)
		UserReviewRouter(r, reviewService, auth)
	})
	router.Route("/v1/reviews", func(r chi.Router) {
		// the listing routes never touch restaurants or uploads
		ReviewRouter(r, reviewService, nil, nil, auth)
	})
	f.router = router
	return &reviewFixture{userFixture: f, reviews: reviews}
}

func (f *reviewFixture) seedReview(t *testing.T, userID primitive.ObjectID) types.Review {
	t.Helper()
	review, err := f.reviews.Create(context.Background(), types.Review{
		RestaurantID: primitive.NewObjectID(),
		UserID:       userID,
		Rating:       4,
	})
	if err != nil {
		t.Fatalf("seed review: %v", err)
	}
	return review
}

func TestUserReviewListing(t *testing.T) {
	f := newReviewListFixture(t)
	author, token := f.seedUser(t, "author@example.com", types.RoleUser)
	other, _ := f.seedUser(t, "other@example.com", types.RoleUser)

	f.seedReview(t, author.ID)
	f.seedReview(t, author.ID)
	f.seedReview(t, other.ID)

	rec := f.do(t, http.MethodGet, "/v1/users/"+author.ID.Hex()+"/reviews", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/v1/users/"+author.ID.Hex()+"/reviews", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data       []types.Review `json:"data"`
		Pagination Pagination     `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Pagination.Total != 2 || len(resp.Data) != 2 {
		t.Fatalf("got %d/%d reviews, want 2", len(resp.Data), resp.Pagination.Total)
	}
	for _, review := range resp.Data {
		if review.UserID != author.ID {
			t.Fatalf("review %v belongs to another user", review.ID)
		}
	}
}

func TestAdminReviewListing(t *testing.T) {
	f := newReviewListFixture(t)
	author, userToken := f.seedUser(t, "author@example.com", types.RoleUser)
	_, adminToken := f.seedUser(t, "admin@example.com", types.RoleAdmin)

	f.seedReview(t, author.ID)
	f.seedReview(t, author.ID)

	rec := f.do(t, http.MethodGet, "/v1/reviews", userToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status for non-admin = %d, want 403", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/v1/reviews", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data       []types.Review `json:"data"`
		Pagination Pagination     `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Pagination.Total != 2 {
		t.Fatalf("total = %d, want 2", resp.Pagination.Total)
	}
}

package store

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// ListParams carries offset pagination, sorting, and the optional
// search/rating filters shared by the listing endpoints.
type ListParams struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
	Search    string

	// Rating selects the one-star-wide bucket [Rating, Rating+1), closed
	// at 5. Zero disables the filter.
	Rating int
}

// Normalize clamps paging values and fills sorting defaults.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = defaultPage
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.SortBy == "" {
		p.SortBy = "created_at"
	}
	if p.SortOrder != "asc" && p.SortOrder != "desc" {
		p.SortOrder = "desc"
	}
	return p
}

// Skip returns the offset implied by page and limit.
func (p ListParams) Skip() int64 {
	return int64(p.Page-1) * int64(p.Limit)
}

func (p ListParams) sortDirection() int {
	if p.SortOrder == "asc" {
		return 1
	}
	return -1
}

func (p ListParams) sortStage() bson.D {
	return bson.D{{Key: "$sort", Value: bson.D{{Key: p.SortBy, Value: p.sortDirection()}}}}
}

// ratingBucket builds the rating filter for the bucket starting at r.
// Buckets are half-open except the top one, so a 4.9 rating lands in
// the 4 bucket and only exact fives land in the 5 bucket.
func ratingBucket(r int) bson.M {
	if r < 1 || r > 5 {
		return nil
	}
	if r == 5 {
		return bson.M{"$gte": 5, "$lte": 5}
	}
	return bson.M{"$gte": r, "$lt": r + 1}
}

// caseInsensitive builds an anchored-nowhere, case-insensitive substring
// match for user-supplied search text.
func caseInsensitive(value string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(value), Options: "i"}
}

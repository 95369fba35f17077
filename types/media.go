package types

// MediaType distinguishes image and video media items.
type MediaType int

const (
	MediaTypeImage MediaType = iota
	MediaTypeVideo
)

// Media references an object-storage location together with its kind.
type Media struct {
	URL       string    `json:"url" bson:"url"`
	MediaType MediaType `json:"mediaType" bson:"mediaType"`
}

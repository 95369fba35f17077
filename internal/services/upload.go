package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/foodmap/apiserver/internal/storage"
	"github.com/foodmap/apiserver/types"
)

// ErrUnsupportedMedia is returned for uploads that are neither images
// nor videos.
var ErrUnsupportedMedia = errors.New("unsupported media type")

const jpegQuality = 90

// UploadKind selects the object prefix and the square crop size applied
// to image uploads in that context.
type UploadKind int

const (
	UploadRestaurant UploadKind = iota
	UploadMenu
	UploadReview
)

func (k UploadKind) prefix() string {
	switch k {
	case UploadMenu:
		return "menus"
	case UploadReview:
		return "reviews"
	default:
		return "restaurants"
	}
}

func (k UploadKind) imageSize() int {
	if k == UploadRestaurant {
		return 500
	}
	return 300
}

// UploadService stores media objects and maps their public URLs back to
// object keys for deletion.
type UploadService struct {
	storage   *storage.Storage
	publicURL string
}

func NewUploadService(store *storage.Storage, publicURL string) *UploadService {
	return &UploadService{
		storage:   store,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Upload stores one media file. Images are center-cropped to the
// kind's square size and re-encoded as JPEG; videos stream through
// unchanged under a fresh name.
func (s *UploadService) Upload(ctx context.Context, kind UploadKind, filename, contentType string, r io.Reader, size int64) (types.Media, error) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return s.uploadImage(ctx, kind, r)
	case strings.HasPrefix(contentType, "video/"):
		return s.uploadVideo(ctx, kind, filename, contentType, r, size)
	default:
		return types.Media{}, ErrUnsupportedMedia
	}
}

func (s *UploadService) uploadImage(ctx context.Context, kind UploadKind, r io.Reader) (types.Media, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return types.Media{}, ErrUnsupportedMedia
	}

	dim := kind.imageSize()
	img = imaging.Fill(img, dim, dim, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return types.Media{}, err
	}

	key := fmt.Sprintf("%s/%s.jpg", kind.prefix(), uuid.NewString())
	if err := s.storage.Put(ctx, key, &buf, int64(buf.Len()), "image/jpeg"); err != nil {
		return types.Media{}, err
	}
	return types.Media{URL: s.objectURL(key), MediaType: types.MediaTypeImage}, nil
}

func (s *UploadService) uploadVideo(ctx context.Context, kind UploadKind, filename, contentType string, r io.Reader, size int64) (types.Media, error) {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".mp4"
	}
	key := fmt.Sprintf("%s/%s%s", kind.prefix(), uuid.NewString(), ext)
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return types.Media{}, err
	}
	return types.Media{URL: s.objectURL(key), MediaType: types.MediaTypeVideo}, nil
}

func (s *UploadService) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.storage.Bucket(), key)
}

// keyFromURL recovers the object key from a public URL built by
// objectURL. URLs pointing outside the bucket are rejected.
func (s *UploadService) keyFromURL(url string) (string, error) {
	marker := "/" + s.storage.Bucket() + "/"
	idx := strings.Index(url, marker)
	if idx < 0 {
		return "", fmt.Errorf("url %q is not in bucket %s", url, s.storage.Bucket())
	}
	key := url[idx+len(marker):]
	if key == "" {
		return "", fmt.Errorf("url %q has no object key", url)
	}
	return key, nil
}

// DeleteByURL removes the object behind one public URL.
func (s *UploadService) DeleteByURL(ctx context.Context, url string) error {
	key, err := s.keyFromURL(url)
	if err != nil {
		return err
	}
	return s.storage.Delete(ctx, key)
}

// DeleteAll removes the objects behind the given media in parallel and
// fails on the first storage error.
func (s *UploadService) DeleteAll(ctx context.Context, media []types.Media) error {
	if len(media) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range media {
		url := m.URL
		g.Go(func() error {
			return s.DeleteByURL(gctx, url)
		})
	}
	return g.Wait()
}

package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/foodmap/apiserver/internal/storage"
	"github.com/foodmap/apiserver/types"
)

type memObject struct {
	data        []byte
	contentType string
}

type memBackend struct {
	bucket  string
	objects map[string]memObject
}

func newMemBackend() *memBackend {
	return &memBackend{bucket: "foodmap", objects: map[string]memObject{}}
}

func (b *memBackend) EnsureBucket(context.Context) error { return nil }

func (b *memBackend) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.objects[key] = memObject{data: data, contentType: contentType}
	return nil
}

func (b *memBackend) Delete(_ context.Context, key string) error {
	if _, ok := b.objects[key]; !ok {
		return errors.New("no such object")
	}
	delete(b.objects, key)
	return nil
}

func (b *memBackend) Bucket() string { return b.bucket }

func newUploadFixture() (*UploadService, *memBackend) {
	backend := newMemBackend()
	return NewUploadService(storage.NewStorage(backend), "http://localhost:9000"), backend
}

func pngBytes(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return &buf
}

func TestUploadImageCropsAndReencodes(t *testing.T) {
	svc, backend := newUploadFixture()

	src := pngBytes(t, 800, 600)
	media, err := svc.Upload(context.Background(), UploadRestaurant, "photo.png", "image/png", src, int64(src.Len()))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if media.MediaType != types.MediaTypeImage {
		t.Fatalf("media type = %d, want image", media.MediaType)
	}
	if !strings.Contains(media.URL, "/foodmap/restaurants/") || !strings.HasSuffix(media.URL, ".jpg") {
		t.Fatalf("unexpected url %q", media.URL)
	}

	if len(backend.objects) != 1 {
		t.Fatalf("stored %d objects, want 1", len(backend.objects))
	}
	for _, obj := range backend.objects {
		if obj.contentType != "image/jpeg" {
			t.Fatalf("content type = %q, want image/jpeg", obj.contentType)
		}
		img, err := imaging.Decode(bytes.NewReader(obj.data))
		if err != nil {
			t.Fatalf("decode stored object: %v", err)
		}
		bounds := img.Bounds()
		if bounds.Dx() != 500 || bounds.Dy() != 500 {
			t.Fatalf("stored image is %dx%d, want 500x500", bounds.Dx(), bounds.Dy())
		}
	}
}

func TestUploadMenuImageUsesSmallerCrop(t *testing.T) {
	svc, backend := newUploadFixture()

	src := pngBytes(t, 640, 640)
	media, err := svc.Upload(context.Background(), UploadMenu, "dish.png", "image/png", src, int64(src.Len()))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(media.URL, "/foodmap/menus/") {
		t.Fatalf("unexpected url %q", media.URL)
	}
	for _, obj := range backend.objects {
		img, err := imaging.Decode(bytes.NewReader(obj.data))
		if err != nil {
			t.Fatalf("decode stored object: %v", err)
		}
		if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 300 {
			t.Fatalf("stored image is %dx%d, want 300x300", img.Bounds().Dx(), img.Bounds().Dy())
		}
	}
}

func TestUploadVideoPassesThrough(t *testing.T) {
	svc, backend := newUploadFixture()

	payload := []byte("not really a video")
	media, err := svc.Upload(context.Background(), UploadReview, "clip.MOV", "video/quicktime", bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if media.MediaType != types.MediaTypeVideo {
		t.Fatalf("media type = %d, want video", media.MediaType)
	}
	if !strings.Contains(media.URL, "/foodmap/reviews/") || !strings.HasSuffix(media.URL, ".mov") {
		t.Fatalf("unexpected url %q", media.URL)
	}
	for _, obj := range backend.objects {
		if !bytes.Equal(obj.data, payload) {
			t.Fatal("video bytes were altered")
		}
		if obj.contentType != "video/quicktime" {
			t.Fatalf("content type = %q", obj.contentType)
		}
	}
}

func TestUploadRejectsOtherContentTypes(t *testing.T) {
	svc, _ := newUploadFixture()
	_, err := svc.Upload(context.Background(), UploadRestaurant, "doc.pdf", "application/pdf", strings.NewReader("%PDF"), 4)
	if !errors.Is(err, ErrUnsupportedMedia) {
		t.Fatalf("got %v, want ErrUnsupportedMedia", err)
	}
}

func TestUploadRejectsCorruptImage(t *testing.T) {
	svc, _ := newUploadFixture()
	_, err := svc.Upload(context.Background(), UploadRestaurant, "photo.png", "image/png", strings.NewReader("garbage"), 7)
	if !errors.Is(err, ErrUnsupportedMedia) {
		t.Fatalf("got %v, want ErrUnsupportedMedia", err)
	}
}

func TestDeleteByURL(t *testing.T) {
	svc, backend := newUploadFixture()

	src := pngBytes(t, 100, 100)
	media, err := svc.Upload(context.Background(), UploadRestaurant, "photo.png", "image/png", src, int64(src.Len()))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if err := svc.DeleteByURL(context.Background(), media.URL); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(backend.objects) != 0 {
		t.Fatal("object was not removed")
	}

	if err := svc.DeleteByURL(context.Background(), "http://elsewhere.example.com/other-bucket/x.jpg"); err == nil {
		t.Fatal("expected error for url outside the bucket")
	}
}

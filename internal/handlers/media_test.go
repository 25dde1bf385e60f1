package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"mediastore/internal/media"
	"mediastore/internal/storage"

	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestParseMediaFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       string
		wantName string
		wantSize int
		wantOK   bool
	}{
		{"original jpg", "camera-body.jpg", "camera-body", 0, true},
		{"original png", "tok-abc.png", "tok-abc", 0, true},
		{"variant", "camera-body_300.webp", "camera-body", 300, true},
		{"variant with underscores in name", "t_shirt_black_100.webp", "t_shirt_black", 100, true},
		{"trailing underscore word is part of the name", "summer_sale.jpg", "summer_sale", 0, true},
		{"camera roll filename", "img_1234.jpg", "img_1234", 0, true},
		{"digit suffix on a non-webp original", "camera-body_300.jpg", "camera-body_300", 0, true},
		{"no extension", "camera-body", "", 0, false},
		{"extension only", ".webp", "", 0, false},
		{"zero size is not a variant", "x_0.webp", "x_0", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			name, size, ok := parseMediaFilename(tt.in)
			if name != tt.wantName || size != tt.wantSize || ok != tt.wantOK {
				t.Errorf("parseMediaFilename(%q) = (%q, %d, %t), want (%q, %d, %t)",
					tt.in, name, size, ok, tt.wantName, tt.wantSize, tt.wantOK)
			}
		})
	}
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ storage.Provider = (*fakeBlobs)(nil)

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlobs) Exists(_ context.Context, key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *fakeBlobs) Save(_ context.Context, key string, body io.ReadSeeker) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

type fakeVariants struct {
	mu   sync.Mutex
	jobs []media.VariantJob
}

func (v *fakeVariants) Enqueue(_ context.Context, job media.VariantJob) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.jobs = append(v.jobs, job)
	return nil
}

func newTestMediaHandler(t *testing.T, fake *fakePictures, blobs *fakeBlobs, variants *fakeVariants) *MediaHandler {
	t.Helper()
	return &MediaHandler{
		Pictures: fake,
		Blobs:    blobs,
		Variants: variants,
		Sizes:    []int{100, 300},
		Tracer:   tracenoop.NewTracerProvider().Tracer("test"),
		Metrics:  noopMetrics(t),
		Logger:   slog.New(slog.DiscardHandler),
	}
}

func serveMedia(h *MediaHandler, id, file string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/media/image/"+id+"/"+file, nil)
	req.SetPathValue("id", id)
	req.SetPathValue("file", file)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMediaHandler(t *testing.T) {
	t.Parallel()

	newFixture := func() (*fakePictures, *fakeBlobs, *fakeVariants) {
		fake := newFakePictures()
		fake.pictures[7] = &storage.Picture{ID: 7, MimeType: "image/png", SeoFilename: "blue-shirt", Token: "tok-7"}
		return fake, newFakeBlobs(), &fakeVariants{}
	}

	t.Run("serves a cached variant", func(t *testing.T) {
		t.Parallel()
		fake, blobs, variants := newFixture()
		blobs.objects[media.ThumbKey(7, 300)] = []byte("webp bytes")
		h := newTestMediaHandler(t, fake, blobs, variants)

		rec := serveMedia(h, "7", "blue-shirt_300.webp")

		if rec.Code != http.StatusOK {
			t.Fatalf("status: want 200, got %d", rec.Code)
		}
		if rec.Header().Get("X-Cache") != "HIT" {
			t.Errorf("want cache hit, got %q", rec.Header().Get("X-Cache"))
		}
		if rec.Header().Get("Content-Type") != "image/webp" {
			t.Errorf("content type: got %q", rec.Header().Get("Content-Type"))
		}
		if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=31536000, immutable" {
			t.Errorf("generated variants must cache immutably, got %q", cc)
		}
		if rec.Body.String() != "webp bytes" {
			t.Error("variant body not streamed")
		}
		if len(variants.jobs) != 0 {
			t.Errorf("hit must not enqueue, got %d jobs", len(variants.jobs))
		}
	})

	t.Run("falls back to the original and enqueues generation", func(t *testing.T) {
		t.Parallel()
		fake, blobs, variants := newFixture()
		h := newTestMediaHandler(t, fake, blobs, variants)

		rec := serveMedia(h, "7", "blue-shirt_300.webp")

		if rec.Code != http.StatusOK {
			t.Fatalf("status: want 200, got %d", rec.Code)
		}
		if rec.Header().Get("X-Cache") != "MISS" {
			t.Errorf("want cache miss, got %q", rec.Header().Get("X-Cache"))
		}
		if rec.Header().Get("Content-Type") != "image/png" {
			t.Errorf("content type: got %q", rec.Header().Get("Content-Type"))
		}
		// a cached miss response would keep serving the original after the
		// variant is generated
		if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
			t.Errorf("miss must not be cacheable, got %q", cc)
		}
		// all configured sizes get queued, not just the requested one
		if len(variants.jobs) != 2 {
			t.Fatalf("want 2 jobs, got %d", len(variants.jobs))
		}
	})

	t.Run("serves the original at size zero", func(t *testing.T) {
		t.Parallel()
		fake, blobs, variants := newFixture()
		h := newTestMediaHandler(t, fake, blobs, variants)

		rec := serveMedia(h, "7", "blue-shirt.png")

		if rec.Code != http.StatusOK {
			t.Fatalf("status: want 200, got %d", rec.Code)
		}
		if rec.Body.String() != "binary" {
			t.Error("original body not served")
		}
		if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=3600" {
			t.Errorf("mutable original must cache briefly, got %q", cc)
		}
		if len(variants.jobs) != 0 {
			t.Errorf("original must not enqueue, got %d jobs", len(variants.jobs))
		}
	})

	t.Run("serves an original whose name ends in digits", func(t *testing.T) {
		t.Parallel()
		fake, blobs, variants := newFixture()
		fake.pictures[8] = &storage.Picture{ID: 8, MimeType: "image/png", SeoFilename: "img_1234", Token: "tok-8"}
		h := newTestMediaHandler(t, fake, blobs, variants)

		rec := serveMedia(h, "8", "img_1234.png")

		if rec.Code != http.StatusOK {
			t.Fatalf("status: want 200, got %d", rec.Code)
		}
		if rec.Body.String() != "binary" {
			t.Error("original body not served")
		}
		if len(variants.jobs) != 0 {
			t.Errorf("original must not enqueue, got %d jobs", len(variants.jobs))
		}
	})

	t.Run("redirects a stale seo name", func(t *testing.T) {
		t.Parallel()
		fake, blobs, variants := newFixture()
		h := newTestMediaHandler(t, fake, blobs, variants)

		rec := serveMedia(h, "7", "old-name_300.webp")

		if rec.Code != http.StatusMovedPermanently {
			t.Fatalf("status: want 301, got %d", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "http://test/media/image/7/blue-shirt_300.webp" {
			t.Errorf("location: got %q", loc)
		}
	})

	t.Run("unknown picture is a 404", func(t *testing.T) {
		t.Parallel()
		fake, blobs, variants := newFixture()
		h := newTestMediaHandler(t, fake, blobs, variants)

		if rec := serveMedia(h, "99", "x.png"); rec.Code != http.StatusNotFound {
			t.Errorf("status: want 404, got %d", rec.Code)
		}
	})

	t.Run("unconfigured size is a 404", func(t *testing.T) {
		t.Parallel()
		fake, blobs, variants := newFixture()
		h := newTestMediaHandler(t, fake, blobs, variants)

		if rec := serveMedia(h, "7", "blue-shirt_999.webp"); rec.Code != http.StatusNotFound {
			t.Errorf("status: want 404, got %d", rec.Code)
		}
	})

	t.Run("garbage id is a 404", func(t *testing.T) {
		t.Parallel()
		fake, blobs, variants := newFixture()
		h := newTestMediaHandler(t, fake, blobs, variants)

		if rec := serveMedia(h, "abc", "x.png"); rec.Code != http.StatusNotFound {
			t.Errorf("status: want 404, got %d", rec.Code)
		}
	})
}

package media

import (
	"context"
	"image"
	"log/slog"
	"testing"
	"time"
)

func TestResizeImage(t *testing.T) {
	t.Parallel()

	p := &Processor{}

	t.Run("scales down preserving aspect ratio", func(t *testing.T) {
		t.Parallel()
		src := image.NewRGBA(image.Rect(0, 0, 800, 600))

		got := p.resizeImage(src, 400)

		if got.Bounds().Dx() != 400 || got.Bounds().Dy() != 300 {
			t.Errorf("want 400x300, got %dx%d", got.Bounds().Dx(), got.Bounds().Dy())
		}
	})

	t.Run("never scales up", func(t *testing.T) {
		t.Parallel()
		src := image.NewRGBA(image.Rect(0, 0, 200, 100))

		if got := p.resizeImage(src, 400); got != src {
			t.Error("small image must come back untouched")
		}
	})
}

func TestEnqueue(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// no workers, so queued jobs stay queued and we can observe the channel
	p := NewProcessor(ctx, newMemBlobs(), nil, 0, 2, slog.New(slog.DiscardHandler))

	job := VariantJob{PictureID: 1, Width: 300}
	if err := p.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("first Enqueue failed: %v", err)
	}

	// same picture/width while in flight is collapsed
	if err := p.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("duplicate Enqueue must be a silent no-op, got %v", err)
	}
	if len(p.jobs) != 1 {
		t.Fatalf("duplicate was queued, %d jobs", len(p.jobs))
	}

	if err := p.Enqueue(context.Background(), VariantJob{PictureID: 1, Width: 600}); err != nil {
		t.Fatalf("second job failed: %v", err)
	}

	// queue is full now
	err := p.Enqueue(context.Background(), VariantJob{PictureID: 2, Width: 300})
	if err == nil {
		t.Fatal("full queue must reject the job")
	}

	// rejection releases the in-flight slot so a retry can queue again
	if _, loaded := p.inFlight.Load(jobKey(VariantJob{PictureID: 2, Width: 300})); loaded {
		t.Error("rejected job left in flight")
	}
}

func TestEnqueueAfterShutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewProcessor(ctx, newMemBlobs(), nil, 0, 2, slog.New(slog.DiscardHandler))

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for {
		p.mu.RLock()
		closed := p.closed
		p.mu.RUnlock()
		if closed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("processor never shut down")
		}
		time.Sleep(5 * time.Millisecond)
	}

	job := VariantJob{PictureID: 9, Width: 100}
	if err := p.Enqueue(context.Background(), job); err == nil {
		t.Fatal("enqueue after shutdown must fail, not panic")
	}
	if _, loaded := p.inFlight.Load(jobKey(job)); loaded {
		t.Error("rejected job left in flight")
	}
}

package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"

	"mediastore/internal/storage"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/image/draw"
)

type VariantJob struct {
	PictureID  int64
	Width      int
	ParentSpan trace.SpanContext
}

// Processor generates downscaled webp variants on a bounded worker pool.
// Duplicate jobs for the same picture/width are collapsed while in flight.
type Processor struct {
	jobs     chan VariantJob
	wg       sync.WaitGroup
	logger   *slog.Logger
	inFlight sync.Map
	blobs    storage.Provider
	opener   BinaryOpener
	tracer   trace.Tracer

	// mu orders Enqueue sends against the shutdown close of jobs
	mu     sync.RWMutex
	closed bool
}

var _ VariantService = (*Processor)(nil)

func NewProcessor(ctx context.Context, blobs storage.Provider, opener BinaryOpener, workerCount, queueLen int, logger *slog.Logger) *Processor {
	p := &Processor{
		jobs:   make(chan VariantJob, queueLen),
		logger: logger,
		blobs:  blobs,
		opener: opener,
		tracer: otel.Tracer("mediastore/media/processor"),
	}
	for i := range workerCount {
		p.wg.Go(func() {
			p.worker(ctx, i)
		})
	}

	go func() {
		<-ctx.Done()
		p.logger.Info("variant processor received shutdown signal")
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
		p.logger.Info("variant processor shutdown complete")
	}()

	return p
}

func (p *Processor) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}

			p.ProcessJob(ctx, id, job)
			p.inFlight.Delete(jobKey(job))
		}
	}
}

func jobKey(job VariantJob) string {
	return fmt.Sprintf("%d_%d", job.PictureID, job.Width)
}

func (p *Processor) ProcessJob(ctx context.Context, id int, job VariantJob) {
	link := trace.Link{
		SpanContext: job.ParentSpan,
	}

	ctx, span := p.tracer.Start(ctx, "ProcessVariant",
		trace.WithAttributes(
			attribute.Int64("picture.id", job.PictureID),
			attribute.Int("variant.width", job.Width),
		),
		trace.WithLinks(link),
	)
	defer span.End()

	destKey := ThumbKey(job.PictureID, job.Width)

	p.logger.Info("worker processing picture variant", "worker_id", id, "picture_id", job.PictureID, "variant", job.Width)

	// any other worker has done this?
	if p.blobs.Exists(ctx, destKey) {
		return
	}

	if ctx.Err() != nil {
		return
	}

	reader, err := p.opener.OpenOriginal(ctx, job.PictureID)
	if err != nil {
		p.logger.Error("failed to open source binary", "picture_id", job.PictureID, "err", err)
		return
	}
	defer reader.Close()

	_, cpuSpan := p.tracer.Start(ctx, "GenerateVariant.CPU")
	processedBuffer, err := p.generateVariant(ctx, reader, job.Width)
	cpuSpan.End()
	if err != nil {
		p.logger.Error("variant failed", "worker", id, "variant", job.Width, "err", err)
		return
	}

	if err := p.blobs.Save(ctx, destKey, processedBuffer); err != nil {
		p.logger.Error("failed to store variant", "key", destKey, "err", err)
	}
}

func (p *Processor) generateVariant(ctx context.Context, r io.Reader, width int) (io.ReadSeeker, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if img.Bounds().Dx() > width {
		img = p.resizeImage(img, width)
	}

	var buf bytes.Buffer
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, 75)
	if err != nil {
		return nil, fmt.Errorf("encoding options: %w", err)
	}

	if err := webp.Encode(&buf, img, options); err != nil {
		return nil, fmt.Errorf("encode error: %w", err)
	}

	return bytes.NewReader(buf.Bytes()), nil
}

func (p *Processor) Enqueue(ctx context.Context, job VariantJob) error {
	key := jobKey(job)

	// no duplicated jobs
	if _, loaded := p.inFlight.LoadOrStore(key, struct{}{}); loaded {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.inFlight.Delete(key)
		return fmt.Errorf("variant processor stopped")
	}

	select {
	case <-ctx.Done():
		// should a caller's request timeout
		p.inFlight.Delete(key)
		return ctx.Err()
	case p.jobs <- job:
		return nil
	default:
		p.inFlight.Delete(key)
		return fmt.Errorf("variant processor queue full")
	}
}

func (p *Processor) resizeImage(source image.Image, maxWidth int) image.Image {
	b := source.Bounds()
	currentWidth := b.Dx()

	// ensure scales down only
	if currentWidth <= maxWidth {
		return source
	}

	newHeight := (b.Dy() * maxWidth) / currentWidth

	dest := image.NewRGBA(image.Rect(0, 0, maxWidth, newHeight))

	// bilinear has a good quality / speed tradeoff
	draw.BiLinear.Scale(dest, dest.Bounds(), source, source.Bounds(), draw.Over, nil)

	return dest
}

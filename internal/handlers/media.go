package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"mediastore/internal/media"
	"mediastore/internal/storage"
	"mediastore/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MediaHandler serves picture binaries on the public URL space:
// /media/image/{id}/{name}.{ext} for originals and
// /media/image/{id}/{name}_{size}.webp for variants.
type MediaHandler struct {
	Pictures media.PictureService
	Blobs    storage.Provider
	Variants media.VariantService
	Sizes    []int
	Tracer   trace.Tracer
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger
}

const (
	cacheForAYear  = 31536000
	cacheForAnHour = 3600
)

func (h *MediaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.Tracer.Start(r.Context(), "MediaHandler.ServeHTTP")
	defer span.End()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}

	name, size, ok := parseMediaFilename(r.PathValue("file"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	p, err := h.Pictures.Get(ctx, id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// redirect stale SEO names to the canonical URL so crawlers converge
	canonical := p.SeoFilename
	if canonical == "" {
		canonical = p.Token
	}
	if name != canonical {
		http.Redirect(w, r, h.Pictures.URL(p, size, "", media.PictureEntity), http.StatusMovedPermanently)
		return
	}

	if size > 0 {
		if !slices.Contains(h.Sizes, size) {
			http.NotFound(w, r)
			return
		}

		variantKey := media.ThumbKey(p.ID, size)
		if h.Blobs.Exists(ctx, variantKey) {
			span.SetAttributes(attribute.String("cache.status", "hit"))
			h.Metrics.VariantCacheHits.Add(ctx, 1)

			rc, err := h.Blobs.Open(ctx, variantKey)
			if err != nil {
				http.NotFound(w, r)
				return
			}
			defer rc.Close()

			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "image/webp")
			// attempt to cache in the browser for a long time
			w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(cacheForAYear)+", immutable")

			if _, err := io.Copy(w, rc); err != nil {
				h.Logger.Warn("stream interrupted", "err", err)
			}
			return
		}

		span.SetAttributes(attribute.String("cache.status", "miss"))
		h.Metrics.VariantCacheMisses.Add(ctx, 1)
		w.Header().Set("X-Cache", "MISS")

		// context that doesn't die when the client goes away
		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Second)
		defer cancel()

		currentSpan := trace.SpanFromContext(r.Context())

		for _, wantedSize := range h.Sizes {
			if err := h.Variants.Enqueue(bgCtx, media.VariantJob{
				PictureID:  p.ID,
				Width:      wantedSize,
				ParentSpan: currentSpan.SpanContext(),
			}); err != nil {
				h.Logger.Warn("could not enqueue variant", "picture_id", p.ID, "width", wantedSize, "err", err)
			} else {
				h.Metrics.VariantJobsEnqueued.Add(ctx, 1)
			}
		}
	}

	// original (or a variant that is not generated yet)
	binary, err := h.Pictures.LoadBinary(ctx, p)
	if err != nil {
		h.Logger.Error("failed to load picture binary", "id", p.ID, "err", err)
		http.NotFound(w, r)
		return
	}

	// originals are mutable (a replacement keeps the same URL), and a missed
	// variant must not pin the full-size binary in caches
	cacheControl := "public, max-age=" + strconv.Itoa(cacheForAnHour)
	if size > 0 {
		cacheControl = "no-cache"
	}

	w.Header().Set("Content-Type", p.MimeType)
	w.Header().Set("Cache-Control", cacheControl)
	if _, err := w.Write(binary); err != nil {
		h.Logger.Warn("stream interrupted", "err", err)
	}
}

// parseMediaFilename splits "camera-body_300.webp" into ("camera-body", 300)
// and "camera-body.jpg" into ("camera-body", 0).
func parseMediaFilename(file string) (name string, size int, ok bool) {
	ext := filepath.Ext(file)
	if ext == "" {
		return "", 0, false
	}
	stem := strings.TrimSuffix(file, ext)
	if stem == "" {
		return "", 0, false
	}

	idx := strings.LastIndex(stem, "_")
	if idx < 0 {
		return stem, 0, true
	}

	parsed, err := strconv.Atoi(stem[idx+1:])
	if err != nil || parsed <= 0 || ext != ".webp" {
		// size-addressed variants are always .webp; a trailing "_1234" on
		// any other extension is part of the name ("img_1234.jpg")
		return stem, 0, true
	}
	return stem[:idx], parsed, true
}

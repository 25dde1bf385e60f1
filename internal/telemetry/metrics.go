package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all the metric instruments for the media service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter
	// media specific
	UploadsTotal        metric.Int64Counter
	DuplicateHitsTotal  metric.Int64Counter
	PicturesStored      metric.Int64UpDownCounter
	VariantCacheHits    metric.Int64Counter
	VariantCacheMisses  metric.Int64Counter
	VariantJobsEnqueued metric.Int64Counter
	// limiter
	RateLimitHitsTotal metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	httpRequestsTotal, err := meter.Int64Counter(
		"http_requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests: %w", err)
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http_request_duration",
		metric.WithDescription("HTTP request latency in ms"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration: %w", err)
	}

	httpActiveRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of in-flight requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_active_requests: %w", err)
	}

	uploadsTotal, err := meter.Int64Counter(
		"picture_uploads",
		metric.WithDescription("Total number of picture uploads accepted"),
		metric.WithUnit("{upload}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create picture_uploads: %w", err)
	}

	duplicateHitsTotal, err := meter.Int64Counter(
		"picture_duplicate_hits",
		metric.WithDescription("Uploads answered with an already stored picture"),
		metric.WithUnit("{upload}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create picture_duplicate_hits: %w", err)
	}

	picturesStored, err := meter.Int64UpDownCounter(
		"pictures_stored",
		metric.WithDescription("Number of picture records currently stored"),
		metric.WithUnit("{picture}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pictures_stored: %w", err)
	}

	variantCacheHits, err := meter.Int64Counter(
		"variant_cache_hits",
		metric.WithDescription("Media requests served from a generated variant"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create variant_cache_hits: %w", err)
	}

	variantCacheMisses, err := meter.Int64Counter(
		"variant_cache_misses",
		metric.WithDescription("Media requests that fell back to the original binary"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create variant_cache_misses: %w", err)
	}

	variantJobsEnqueued, err := meter.Int64Counter(
		"variant_jobs_enqueued",
		metric.WithDescription("Variant generation jobs handed to the worker pool"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create variant_jobs_enqueued: %w", err)
	}

	rateLimitHitsTotal, err := meter.Int64Counter(
		"rate_limit_hits",
		metric.WithDescription("Number of rate limiter blocked requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit_hits: %w", err)
	}

	return &Metrics{
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestDuration: httpRequestDuration,
		HTTPActiveRequests:  httpActiveRequests,
		UploadsTotal:        uploadsTotal,
		DuplicateHitsTotal:  duplicateHitsTotal,
		PicturesStored:      picturesStored,
		VariantCacheHits:    variantCacheHits,
		VariantCacheMisses:  variantCacheMisses,
		VariantJobsEnqueued: variantJobsEnqueued,
		RateLimitHitsTotal:  rateLimitHitsTotal,
	}, nil
}

// RecordPicturesStored moves the stored-pictures gauge by delta.
func (m *Metrics) RecordPicturesStored(ctx context.Context, delta int64) {
	m.PicturesStored.Add(ctx, delta)
}

// Package uploader is the asset upload client: it stores encoded image bytes
// in the remote asset store and returns the metadata the pipeline keeps.
package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/storage"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/transform"
	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/tracing"
)

// KeyPrefix is the object key prefix for product images.
const KeyPrefix = "products"

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_uploads_total",
			Help: "Asset uploads by outcome",
		},
		[]string{"result"},
	)
	uploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_upload_duration_seconds",
			Help:    "Duration of asset uploads",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
	deletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_deletes_total",
			Help: "Remote asset deletions by outcome",
		},
		[]string{"result"},
	)
)

// Client uploads, deletes and fetches remote assets.
type Client struct {
	store   storage.Storage
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an upload client. A non-positive timeout disables the
// per-call deadline.
func New(store storage.Storage, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		store:   store,
		timeout: timeout,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// UploadAsset stores data and returns its remote metadata. Every failure,
// including a timeout, is reported as UPLOAD_FAILED.
func (c *Client) UploadAsset(ctx context.Context, data []byte, contentType string) (*domain.AssetMetadata, error) {
	ctx, span := tracing.Tracer("uploader").Start(ctx, "uploader.UploadAsset")
	defer span.End()
	span.SetAttributes(
		attribute.String("media.content_type", contentType),
		attribute.Int("media.bytes", len(data)),
	)

	start := time.Now()
	meta, err := c.upload(ctx, data, contentType)
	uploadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.WarnContext(ctx, "asset upload failed",
			slog.String("content_type", contentType),
			slog.Int("bytes", len(data)),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Upload(err)
	}

	uploadsTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.String("media.remote_id", meta.RemoteID))
	c.logger.InfoContext(ctx, "asset uploaded",
		slog.String("remote_id", meta.RemoteID),
		slog.String("format", meta.Format),
		slog.Int64("bytes", meta.ByteSize),
	)
	return meta, nil
}

func (c *Client) upload(ctx context.Context, data []byte, contentType string) (*domain.AssetMetadata, error) {
	if len(data) == 0 {
		return nil, apperrors.InvalidInput("upload payload is empty")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// Dimensions are best-effort; an unreadable header does not block the upload.
	var width, height int
	format := formatFromContentType(contentType)
	if info, err := transform.ReadInfo(data); err == nil {
		width, height, format = info.Width, info.Height, info.Format
	}

	key := fmt.Sprintf("%s/%s%s", KeyPrefix, uuid.New().String(), extension(contentType))
	res, err := c.store.Upload(ctx, &storage.UploadInput{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        bytes.NewReader(data),
	})
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", key, err)
	}

	return &domain.AssetMetadata{
		RemoteID:   res.Key,
		URL:        res.URL,
		Width:      width,
		Height:     height,
		Format:     format,
		ByteSize:   int64(len(data)),
		UploadedAt: c.now(),
	}, nil
}

// DeleteAsset removes a remote asset. Failures are reported as DELETE_FAILED.
func (c *Client) DeleteAsset(ctx context.Context, remoteID string) error {
	if err := c.store.Delete(ctx, remoteID); err != nil {
		deletesTotal.WithLabelValues("error").Inc()
		return apperrors.Delete(err)
	}
	deletesTotal.WithLabelValues("ok").Inc()
	c.logger.DebugContext(ctx, "remote asset deleted", slog.String("remote_id", remoteID))
	return nil
}

// FetchAsset downloads a remote asset so it can be edited again.
func (c *Client) FetchAsset(ctx context.Context, remoteID string) ([]byte, string, error) {
	obj, err := c.store.Open(ctx, remoteID)
	if err != nil {
		return nil, "", fmt.Errorf("open remote asset %s: %w", remoteID, err)
	}
	defer func() { _ = obj.Body.Close() }()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read remote asset %s: %w", remoteID, err)
	}
	return data, obj.ContentType, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}

func formatFromContentType(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return ""
	}
}

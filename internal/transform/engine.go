package transform

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"time"

	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	_ "golang.org/x/image/webp" // register WebP decoding

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/ledger"
	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/tracing"
)

// DefaultJPEGQuality is used when Config.JPEGQuality is unset.
const DefaultJPEGQuality = 90

var transformDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "media_transform_duration_seconds",
		Help:    "Duration of crop/rotate/filter transforms",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"result"},
)

// Raster is an encoded image.
type Raster struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Request describes one transform.
type Request struct {
	Source   Raster
	Crop     Rect
	Rotation float64
	Filters  Filters
	// Owner is recorded on the preview handle minted for the result.
	Owner string
}

// Result is the transformed raster plus a local handle for previewing it.
type Result struct {
	Raster
	Handle ledger.Handle
}

// HandleMinter creates local handles for transform output.
type HandleMinter interface {
	Create(owner string, data []byte, contentType string) ledger.Handle
}

// Config holds engine settings.
type Config struct {
	JPEGQuality int
}

// Engine renders crop/rotate/filter transforms. It holds no per-call state.
type Engine struct {
	minter  HandleMinter
	quality int
	logger  *slog.Logger
}

// NewEngine creates a transform engine that mints preview handles with minter.
func NewEngine(minter HandleMinter, cfg Config, logger *slog.Logger) *Engine {
	q := cfg.JPEGQuality
	if q <= 0 || q > 100 {
		q = DefaultJPEGQuality
	}
	return &Engine{minter: minter, quality: q, logger: logger}
}

// Transform decodes the source, applies filters and rotation on a surface
// sized to the rotated bounding box, then copies the crop region into an
// output of exactly crop.Width × crop.Height. Crop areas outside the surface
// come out transparent.
func (e *Engine) Transform(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracing.Tracer("transform").Start(ctx, "transform.Transform")
	defer span.End()
	span.SetAttributes(req.SpanAttributes()...)

	start := time.Now()
	res, err := e.transform(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	transformDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return res, err
}

func (e *Engine) transform(ctx context.Context, req Request) (*Result, error) {
	if req.Crop.Empty() {
		return nil, apperrors.InvalidInput("crop region must have a positive width and height")
	}

	src, err := imaging.Decode(bytes.NewReader(req.Source.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.Decode(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deg := NormalizeDegrees(req.Rotation)
	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	bw, bh := RotatedBounds(sw, sh, deg)

	surface := imaging.New(bw, bh, color.Transparent)
	surface = imaging.PasteCenter(surface, render(src, deg, req.Filters))

	out := imaging.New(req.Crop.Width, req.Crop.Height, color.Transparent)
	out = imaging.Paste(out, surface, image.Pt(-req.Crop.X, -req.Crop.Y))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format, contentType := outputFormat(req.Source.ContentType)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, format, imaging.JPEGQuality(e.quality)); err != nil {
		return nil, apperrors.Encode(err)
	}

	data := buf.Bytes()
	handle := e.minter.Create(req.Owner, data, contentType)

	if e.logger != nil {
		e.logger.DebugContext(ctx, "transform rendered",
			slog.String("owner", req.Owner),
			slog.Float64("rotation", deg),
			slog.Int("width", req.Crop.Width),
			slog.Int("height", req.Crop.Height),
			slog.Int("bytes", len(data)),
		)
	}

	return &Result{
		Raster: Raster{
			Data:        data,
			ContentType: contentType,
			Width:       req.Crop.Width,
			Height:      req.Crop.Height,
		},
		Handle: handle,
	}, nil
}

// render runs the filter triple and the rotation as one gift pipeline.
// gift rotates counter-clockwise, so the angle is negated to turn positive
// degrees clockwise on screen.
func render(src image.Image, deg float64, f Filters) image.Image {
	var filters []gift.Filter
	if !f.IsIdentity() {
		filters = append(filters, gift.ColorFunc(f.colorFunc()))
	}
	if deg != 0 {
		filters = append(filters, gift.Rotate(float32(-deg), color.Transparent, gift.CubicInterpolation))
	}
	if len(filters) == 0 {
		return src
	}

	g := gift.New(filters...)
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

// outputFormat keeps JPEG sources as JPEG; everything else is written as PNG,
// which also preserves the transparent regions a rotation introduces.
func outputFormat(sourceContentType string) (imaging.Format, string) {
	if sourceContentType == "image/jpeg" {
		return imaging.JPEG, "image/jpeg"
	}
	return imaging.PNG, "image/png"
}

// Info is the header information of an encoded image.
type Info struct {
	Width  int
	Height int
	Format string
}

// ReadInfo reads the dimensions of an image as it is displayed. A JPEG is
// decoded with its EXIF orientation applied, exactly as Transform decodes
// it, so a sideways-stored photo reports its upright size. Other formats
// only have their header read.
func ReadInfo(data []byte) (*Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Decode(fmt.Errorf("read image header: %w", err))
	}
	info := &Info{Width: cfg.Width, Height: cfg.Height, Format: format}
	if format != "jpeg" {
		return info, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.Decode(fmt.Errorf("decode image: %w", err))
	}
	b := img.Bounds()
	info.Width, info.Height = b.Dx(), b.Dy()
	return info, nil
}

// SpanAttributes describes a request for tracing backends.
func (r Request) SpanAttributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("media.owner", r.Owner),
		attribute.Float64("media.rotation", r.Rotation),
		attribute.Int("media.crop.width", r.Crop.Width),
		attribute.Int("media.crop.height", r.Crop.Height),
	}
}

package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
	pkgkafka "github.com/utafrali/EcommerceGo/mediapipeline/pkg/kafka"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/logger"
)

// Kafka topics for media pipeline events.
var (
	TopicProductSubmitted = pkgkafka.Topic("product", "submitted")
	TopicDraftDiscarded   = pkgkafka.Topic("draft", "discarded")
)

// AggregateTypeProductMedia is the aggregate every event refers to.
const AggregateTypeProductMedia = "product_media"

// SourceMediaPipeline identifies events published by this service.
const SourceMediaPipeline = "media-pipeline"

// ProductSubmittedData is the payload of a media.product.submitted event.
type ProductSubmittedData struct {
	ProductID        string                  `json:"product_id"`
	DraftID          string                  `json:"draft_id"`
	Assets           []domain.SubmittedAsset `json:"assets"`
	DeletedRemoteIDs []string                `json:"deleted_remote_ids"`
	PurgeFailed      []string                `json:"purge_failed,omitempty"`
}

// DraftDiscardedData is the payload of a media.draft.discarded event.
type DraftDiscardedData struct {
	ProductID string `json:"product_id"`
	DraftID   string `json:"draft_id"`
}

// Publisher is the Kafka producer the event producer writes through.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes media pipeline domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the media pipeline.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishProductSubmitted publishes a media.product.submitted event.
func (p *Producer) PublishProductSubmitted(ctx context.Context, data ProductSubmittedData) error {
	return p.publish(ctx, TopicProductSubmitted, data.ProductID, data, slog.Int("assets", len(data.Assets)))
}

// PublishDraftDiscarded publishes a media.draft.discarded event.
func (p *Producer) PublishDraftDiscarded(ctx context.Context, data DraftDiscardedData) error {
	return p.publish(ctx, TopicDraftDiscarded, data.ProductID, data, slog.String("draft_id", data.DraftID))
}

func (p *Producer) publish(ctx context.Context, topic, productID string, data any, attr slog.Attr) error {
	event, err := pkgkafka.NewEvent(topic, productID, AggregateTypeProductMedia, SourceMediaPipeline, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published "+topic+" event",
		slog.String("product_id", productID),
		attr,
	)
	return nil
}

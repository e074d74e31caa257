package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type submittedPayload struct {
	ProductID string   `json:"product_id"`
	Assets    []string `json:"assets"`
}

// --- Event ---

func TestNewEvent_Fields(t *testing.T) {
	data := submittedPayload{ProductID: "prod-1", Assets: []string{"a", "b"}}
	event, err := NewEvent("media.product.submitted", "prod-1", "product", "media-pipeline", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "media.product.submitted", event.EventType)
	assert.Equal(t, "prod-1", event.AggregateID)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var got submittedPayload
	require.NoError(t, event.UnmarshalData(&got))
	assert.Equal(t, data, got)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("x", "agg", "t", "svc", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal x payload")
}

func TestEvent_Builders(t *testing.T) {
	event, err := NewEvent("x", "agg", "t", "svc", nil)
	require.NoError(t, err)

	assert.Same(t, event, event.WithCorrelationID("corr").WithMetadata("draft_id", "d-1"))
	assert.Equal(t, "corr", event.CorrelationID)
	assert.Equal(t, "d-1", event.Metadata["draft_id"])

	raw, err := event.Marshal()
	require.NoError(t, err)
	restored, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, restored.EventID)
	assert.Equal(t, event.Metadata, restored.Metadata)

	_, err = UnmarshalEvent([]byte("{broken"))
	assert.Error(t, err)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "media.product.submitted", Topic("product", "submitted"))
	assert.Equal(t, "media.asset.orphaned", Topic("asset", "orphaned"))
}

// --- HeaderCarrier ---

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "existing", Value: []byte("v1")}}
	c := NewHeaderCarrier(&headers)

	assert.Equal(t, "v1", c.Get("existing"))
	assert.Empty(t, c.Get("missing"))

	c.Set("existing", "v2")
	c.Set("new", "v3")
	assert.Equal(t, "v2", c.Get("existing"))
	assert.Equal(t, []string{"existing", "new"}, c.Keys())
	assert.Len(t, headers, 2)
}

// --- Producer ---

func TestPublish_WritesKeyedMessageWithHeaders(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, nil)

	event, err := NewEvent("media.product.submitted", "prod-9", "product", "media-pipeline", map[string]int{"assets": 3})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	require.NoError(t, p.Publish(ctx, Topic("product", "submitted"), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "media.product.submitted", msg.Topic)
	assert.Equal(t, "prod-9", string(msg.Key))

	c := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "media.product.submitted", c.Get("event_type"))
	assert.Equal(t, "corr-1", c.Get("correlation_id"))
	assert.Contains(t, c.Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
}

func TestPublish_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, nil, nil)

	event, err := NewEvent("x", "agg", "t", "svc", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "media.x", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event to media.x")
}

func TestProducer_CloseAndPing(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, nil)
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	assert.EqualError(t, p.Ping(context.Background()), "kafka: no brokers configured")
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"localhost:9092"})
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async)

	p := NewProducer(cfg, nil)
	require.NotNil(t, p)
	assert.NoError(t, p.Close())
}

package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sonic7adarsh/bharat-shop-sub002/internal/domain"
)

// KafkaPublisher emits domain events to a single Kafka topic. Publishing is
// fire-and-forget: failures are logged and dropped, never surfaced to the
// state change that produced the event.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("marshal event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}

	// Key by order when present so consumers see a given order's events in
	// order; reservation-only events key by variant.
	key := ev.OrderID
	if key == "" {
		key = ev.VariantID
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "tenant_id", Value: []byte(ev.TenantID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish event",
			zap.String("type", string(ev.Type)),
			zap.String("tenant_id", ev.TenantID),
			zap.Error(err),
		)
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Recorder collects events in memory. It backs tests that assert which
// events an operation produced, in particular that rejected operations
// produce none.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event{}, r.events...)
}

// ByType filters recorded events by type.
func (r *Recorder) ByType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rl1809/beer-stock/internal/core/domain"
	"github.com/rl1809/beer-stock/internal/port"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

var _ port.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(brokers []string, topic string, batchTimeout time.Duration) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           batchTimeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

type eventPayload struct {
	Type       string    `json:"type"`
	BeerID     string    `json:"beer_id"`
	Name       string    `json:"name"`
	Brand      string    `json:"brand"`
	BeerType   string    `json:"beer_type"`
	Max        int       `json:"max"`
	Quantity   int       `json:"quantity"`
	Delta      int       `json:"delta,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.BeerEvent) error {
	msg, err := buildMessage(ctx, event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// buildMessage keys the message by beer ID so events for one record stay ordered
// within a partition.
func buildMessage(ctx context.Context, event domain.BeerEvent) (kafka.Message, error) {
	payload, err := json.Marshal(eventPayload{
		Type:       string(event.Type),
		BeerID:     event.Beer.ID,
		Name:       event.Beer.Name,
		Brand:      event.Beer.Brand,
		BeerType:   string(event.Beer.Type),
		Max:        event.Beer.Max,
		Quantity:   event.Beer.Quantity,
		Delta:      event.Delta,
		OccurredAt: event.OccurredAt,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	carrier := headerCarrier{{Key: "event-type", Value: []byte(event.Type)}}
	otel.GetTextMapPropagator().Inject(ctx, &carrier)

	return kafka.Message{
		Key:     []byte(event.Beer.ID),
		Value:   payload,
		Headers: carrier,
		Time:    event.OccurredAt,
	}, nil
}

type headerCarrier []kafka.Header

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// publishTimeout bounds a single publish. Publish runs inside order
// requests, so an unreachable broker must not hold them open.
const publishTimeout = 5 * time.Second

// producer is satisfied by *kgo.Client.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher writes events to a single topic keyed by order id, so
// every event of one order lands on the same partition in order.
type KafkaPublisher struct {
	client  producer
	topic   string
	logger  *zap.Logger
	timeout time.Duration
}

// NewKafkaPublisher connects lazily; broker reachability is only tested on
// the first publish.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(publishTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	logger.Info("kafka publisher configured", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return &KafkaPublisher{client: client, topic: topic, logger: logger, timeout: publishTimeout}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	rec := &kgo.Record{
		Topic:     p.topic,
		Key:       []byte(ev.OrderID.String()),
		Value:     value,
		Timestamp: ev.OccurredAt,
		Headers:   []kgo.RecordHeader{{Key: "event-type", Value: []byte(ev.Type)}},
	}
	timeout := p.timeout
	if timeout <= 0 {
		timeout = publishTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		p.logger.Error("kafka publish failed",
			zap.String("topic", p.topic),
			zap.String("type", ev.Type),
			zap.Stringer("order_id", ev.OrderID),
			zap.Error(err),
		)
		return fmt.Errorf("publish to kafka topic %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

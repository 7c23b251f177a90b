// Package events fans cache invalidations out to the other replicas over
// Kafka so every replica's cache drops the same resources.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Skotchmaster/hostel_meals/internal/query"
	"github.com/Skotchmaster/hostel_meals/pkg/logging"
)

const publishTimeout = 5 * time.Second

type Invalidation struct {
	Replica   string    `json:"replica"`
	Resources []string  `json:"resources"`
	At        time.Time `json:"at"`
}

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Publisher struct {
	w       Writer
	replica string
}

func NewPublisher(brokers []string, topic, replica string) *Publisher {
	return &Publisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
		replica: replica,
	}
}

func (p *Publisher) Publish(ctx context.Context, resources []string) error {
	data, err := json.Marshal(Invalidation{Replica: p.replica, Resources: resources, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("kafka: marshal invalidation: %w", err)
	}
	msg := kafka.Message{Key: []byte(strings.Join(resources, ",")), Value: data}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write invalidation: %w", err)
	}
	return nil
}

// Listener forwards local invalidations. Remote ones came from the topic
// and are not echoed back.
func (p *Publisher) Listener(base context.Context) query.Listener {
	return func(origin query.Origin, resources []string) {
		if origin != query.OriginLocal {
			return
		}
		res := append([]string(nil), resources...)
		go func() {
			ctx, cancel := context.WithTimeout(base, publishTimeout)
			defer cancel()
			if err := p.Publish(ctx, res); err != nil {
				logging.FromContext(base).Warn("invalidation_publish_failed", "resources", res, "error", err)
			}
		}()
	}
}

func (p *Publisher) Close() error {
	return p.w.Close()
}

type Subscriber struct {
	r       Reader
	replica string
	cache   *query.Cache
}

// NewSubscriber reads with a replica-specific consumer group so every
// replica sees every invalidation.
func NewSubscriber(brokers []string, topic, replica string, cache *query.Cache) *Subscriber {
	return &Subscriber{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     "hostel-web-" + replica,
			StartOffset: kafka.LastOffset,
			MinBytes:    1,
			MaxBytes:    1e6,
			MaxWait:     time.Second,
		}),
		replica: replica,
		cache:   cache,
	}
}

// Run applies invalidations until ctx ends.
func (s *Subscriber) Run(ctx context.Context) error {
	l := logging.FromContext(ctx).With("component", "events.subscriber")
	for {
		m, err := s.r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("kafka: read invalidation: %w", err)
		}

		var inv Invalidation
		if err := json.Unmarshal(m.Value, &inv); err != nil {
			l.Warn("invalidation_decode_failed", "offset", m.Offset, "error", err)
			continue
		}
		if inv.Replica == s.replica || len(inv.Resources) == 0 {
			continue
		}
		s.cache.InvalidateFromRemote(inv.Resources...)
		l.Debug("invalidation_applied", "from", inv.Replica, "resources", inv.Resources)
	}
}

func (s *Subscriber) Close() error {
	return s.r.Close()
}

// EnsureTopic creates topic on the cluster controller if it is missing.
func EnsureTopic(broker, topic string) error {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		return fmt.Errorf("kafka: dial %s: %w", broker, err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka: find controller: %w", err)
	}
	admin, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("kafka: dial controller: %w", err)
	}
	defer admin.Close()

	err = admin.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("kafka: create topic %s: %w", topic, err)
	}
	return nil
}

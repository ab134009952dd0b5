// Package redpanda forwards settings events to a Kafka-compatible broker so
// other app instances and audit consumers can follow provider and selection
// changes.
package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-translator/internal/service/events"
)

// DefaultTopic receives settings events when none is configured.
const DefaultTopic = "translator-settings-events"

type recordProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Ping(ctx context.Context) error
	Close()
}

// Forwarder publishes events.Event values as JSON records keyed by scope.
type Forwarder struct {
	client recordProducer
	topic  string
}

// NewForwarder connects to brokers and makes sure the topic exists.
func NewForwarder(ctx context.Context, brokers []string, topic string) (*Forwarder, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no seed brokers provided")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	kt := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))))
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequestRetries(10),
		kgo.ProducerLinger(50*time.Millisecond),
		kgo.DialTimeout(10*time.Second),
		kgo.WithHooks(kt.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}
	if err := ensureTopic(ctx, client, topic, 1, 1); err != nil {
		slog.Warn("failed to ensure events topic", slog.String("topic", topic), slog.Any("error", err))
	}
	slog.Info("settings event forwarder ready", slog.Any("brokers", brokers), slog.String("topic", topic))
	return &Forwarder{client: client, topic: topic}, nil
}

func eventKey(e events.Event) []byte {
	switch {
	case e.Scope != "":
		return []byte(e.Scope)
	case e.Provider != "":
		return []byte(e.Provider)
	}
	return nil
}

// Forward produces one event synchronously.
func (f *Forwarder) Forward(ctx context.Context, e events.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	rec := &kgo.Record{
		Topic: f.topic,
		Key:   eventKey(e),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "event_id", Value: []byte(e.ID)},
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if err := f.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce: %w", err)
	}
	return nil
}

// Run forwards events from ch until ctx is done or ch is closed.
// Produce failures are logged and the event is dropped.
func (f *Forwarder) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := f.Forward(ctx, e); err != nil {
				slog.Error("forward settings event", slog.String("event_id", e.ID), slog.String("type", string(e.Type)), slog.Any("error", err))
			}
		}
	}
}

// Ping checks that at least one broker answers.
func (f *Forwarder) Ping(ctx context.Context) error { return f.client.Ping(ctx) }

// Close flushes and closes the client.
func (f *Forwarder) Close() {
	if f.client != nil {
		f.client.Close()
	}
}

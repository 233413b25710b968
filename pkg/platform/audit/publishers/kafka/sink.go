// Package kafka forwards registry change events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "crboard/pkg/platform/audit"
)

// Sink implements audit.Store by producing one JSON record per event, keyed
// by crId so all events of a CR land on the same partition in order.
type Sink struct {
	client *kgo.Client
	topic  string
}

func New(client *kgo.Client, topic string) *Sink {
	return &Sink{client: client, topic: topic}
}

// Append produces event and waits for the broker acknowledgement.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	rec, err := Record(s.topic, event)
	if err != nil {
		return err
	}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce %s for %s: %w", event.Action, event.Subject, err)
	}
	return nil
}

// Record encodes event as a Kafka record.
func Record(topic string, event audit.Event) (*kgo.Record, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode audit event: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(event.Subject),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
		},
	}, nil
}

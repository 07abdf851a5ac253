package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"vaultd/internal/platform/config"
)

// KafkaStore appends events to a Kafka topic. Events are keyed by asset id so
// per-asset ordering survives partitioning.
type KafkaStore struct {
	client *kgo.Client
	topic  string
}

// NewKafkaStore connects to the brokers and ensures the topic exists.
func NewKafkaStore(ctx context.Context, cfg config.KafkaConfig) (*KafkaStore, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopic(ctx, 1, 1, nil, cfg.Topic); err != nil {
		// Topic may already exist; only creation failures of a missing
		// topic are fatal.
		if exists, lerr := topicExists(ctx, adm, cfg.Topic); lerr != nil || !exists {
			client.Close()
			return nil, fmt.Errorf("ensure topic %s: %w", cfg.Topic, err)
		}
	}

	return &KafkaStore{client: client, topic: cfg.Topic}, nil
}

func topicExists(ctx context.Context, adm *kadm.Client, topic string) (bool, error) {
	details, err := adm.ListTopics(ctx, topic)
	if err != nil {
		return false, err
	}
	return details.Has(topic), nil
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(strconv.FormatUint(event.AssetID, 10)),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

// List is not supported on the Kafka sink; consumers read the topic directly.
func (s *KafkaStore) List(_ context.Context) ([]Event, error) {
	return nil, fmt.Errorf("kafka store is write-only")
}

func (s *KafkaStore) Close() {
	s.client.Close()
}

// Package kafka publishes sync audit events so downstream consumers can react
// to play data changing without polling the database.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/gamechanger/internal/config"
	gsync "github.com/gamechanger/internal/sync"
)

// Producer publishes sync changes to a Kafka topic. It implements the sync
// engine's Reporter: publish failures are logged, never propagated, so a
// broker outage cannot fail a sync run.
type Producer struct {
	config   *config.KafkaConfig
	producer sarama.SyncProducer
	logger   *slog.Logger
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg *config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	logger.Info("Kafka producer ready", "brokers", cfg.Brokers, "topic", cfg.Topic)

	return &Producer{
		config:   cfg,
		producer: producer,
		logger:   logger,
	}, nil
}

// Report publishes one sync change, keyed by entity and key so changes to the
// same record land on the same partition in order.
func (p *Producer) Report(_ context.Context, change gsync.Change) {
	data, err := json.Marshal(change)
	if err != nil {
		p.logger.Error("failed to marshal sync change", "error", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.config.Topic,
		Key:   sarama.StringEncoder(change.Entity + ":" + change.Key),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		p.logger.Error("failed to publish sync change",
			"error", err,
			"entity", change.Entity,
			"key", change.Key,
			"action", string(change.Action),
		)
	}
}

// Close shuts down the producer.
func (p *Producer) Close() error {
	return p.producer.Close()
}

// Package kafka publishes quiz events for downstream analytics
// ingestion. Publishing is fire-and-forget: a full or failed producer
// never blocks or fails the coordinator.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/quizroom/internal/config"
	"github.com/quizroom/internal/domain"
)

// Event kinds published to the quiz events topic.
const (
	EventScoreRecorded = "score-recorded"
	EventRoomReset     = "room-reset"
	EventRoomClosed    = "room-closed"
)

// Event is the published record. Score is only populated for
// score-recorded events.
type Event struct {
	Kind      string             `json:"kind"`
	RoomCode  string             `json:"room_code"`
	Score     *domain.ScoreEvent `json:"score,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Publisher writes quiz events to Kafka via an async producer.
type Publisher struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewPublisher creates a Kafka publisher and starts draining producer
// acks and errors.
func NewPublisher(cfg *config.KafkaConfig, logger *slog.Logger) (*Publisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = cfg.FlushFreq
	saramaConfig.Producer.Flush.Messages = cfg.FlushMsgs
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Net.DialTimeout = cfg.DialTimeout
	saramaConfig.Net.WriteTimeout = cfg.WriteTimeout

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	p := &Publisher{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for err := range producer.Errors() {
			p.logger.Warn("kafka publish failed", "error", err)
		}
	}()

	return p, nil
}

// Close flushes pending messages and shuts the producer down.
func (p *Publisher) Close() error {
	err := p.producer.Close()
	p.wg.Wait()
	return err
}

// Name identifies the publisher in sink logs.
func (p *Publisher) Name() string { return "kafka" }

func (p *Publisher) publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.RoomCode),
		Value: sarama.ByteEncoder(data),
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	default:
		return fmt.Errorf("producer input full, dropping %s event for room %s", ev.Kind, ev.RoomCode)
	}
}

// RecordScore publishes a score-recorded event.
func (p *Publisher) RecordScore(_ context.Context, ev domain.ScoreEvent) error {
	return p.publish(Event{
		Kind:      EventScoreRecorded,
		RoomCode:  ev.RoomCode,
		Score:     &ev,
		Timestamp: time.Now(),
	})
}

// ResetRoom publishes a room-reset event.
func (p *Publisher) ResetRoom(_ context.Context, roomCode string) error {
	return p.publish(Event{Kind: EventRoomReset, RoomCode: roomCode, Timestamp: time.Now()})
}

// DropRoom publishes a room-closed event.
func (p *Publisher) DropRoom(_ context.Context, roomCode string) error {
	return p.publish(Event{Kind: EventRoomClosed, RoomCode: roomCode, Timestamp: time.Now()})
}

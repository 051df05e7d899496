package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// =============================
// Publisher
// =============================

// KafkaPublisher writes registration.confirmed messages keyed by user id,
// so a user's confirmations stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 2 * time.Second,
			MaxAttempts:  3,
		},
		logger: logger,
	}
}

func (p *KafkaPublisher) PublishRegistrationConfirmed(ctx context.Context, msg RegistrationConfirmed) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode registration confirmed: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.UserID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publish registration confirmed: %w", err)
	}

	p.logger.Debug("registration confirmed published",
		zap.String("registration_id", msg.RegistrationID),
		zap.String("event_id", msg.EventID))
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishRegistrationConfirmed(context.Context, RegistrationConfirmed) error {
	return nil
}

// =============================
// Consumer
// =============================

// Consumer feeds registration.confirmed messages to the notification service.
type Consumer struct {
	reader  messageReader
	handler func(ctx context.Context, msg RegistrationConfirmed) error
	logger  *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, svc Service, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		handler: svc.HandleRegistrationConfirmed,
		logger:  logger,
	}
}

// Run consumes until ctx is cancelled. Notifications are best-effort: every
// fetched message is committed, including ones that fail to decode or handle.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		var msg RegistrationConfirmed
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			c.logger.Error("dropping malformed registration message",
				zap.Int64("offset", m.Offset), zap.Error(err))
		} else if err := c.handler(ctx, msg); err != nil {
			c.logger.Error("registration notification failed",
				zap.String("registration_id", msg.RegistrationID), zap.Error(err))
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }

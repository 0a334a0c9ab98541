// Package kafkastore publishes delivery records to a Kafka topic so
// downstream consumers (notification audit, analytics) see every issuance.
package kafkastore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/open-rails/djibgo-auth/core"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const eventDeliveryRecorded = "delivery.recorded"

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter returns a synchronous writer; AppendDeliveryRecord reports
// publish failures to the caller.
func NewWriter(brokers []string, topic string, log logrus.FieldLogger) *kafka.Writer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
	if log != nil {
		w.Logger = kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Debug(fmt.Sprintf(msg, args...))
		})
		w.ErrorLogger = kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Warn(fmt.Sprintf(msg, args...))
		})
	}
	return w
}

// Publisher implements core.DeliveryLog over Kafka. Records are keyed by
// user id so one user's records stay ordered within a partition.
type Publisher struct {
	w       MessageWriter
	timeout time.Duration
}

func NewPublisher(w MessageWriter) *Publisher {
	return &Publisher{w: w, timeout: 5 * time.Second}
}

func (p *Publisher) AppendDeliveryRecord(ctx context.Context, rec core.DeliveryRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.UserID),
		Value: body,
		Time:  rec.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(eventDeliveryRecorded)},
			{Key: "channel", Value: []byte(rec.Channel)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish delivery record: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }

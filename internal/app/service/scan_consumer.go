package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/app/repository"
	"go.uber.org/zap"
)

const (
	scanFetchBatch   = 10
	scanFetchMaxWait = 5 * time.Second
)

// ScanConsumer consumes scan events from NATS JetStream and stores them.
type ScanConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   repository.ScanEventRepository
	done   chan struct{}
}

// NewScanConsumer creates a new scan event consumer.
func NewScanConsumer(js nats.JetStreamContext, logger *zap.Logger, repo repository.ScanEventRepository) *ScanConsumer {
	return &ScanConsumer{js: js, logger: logger, repo: repo, done: make(chan struct{})}
}

// EnsureStream creates the scan stream and durable consumer when missing.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.ScanStreamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     model.ScanStreamName,
			Subjects: []string{model.ScanStreamSubject},
			MaxBytes: model.ScanStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	if _, err := js.ConsumerInfo(model.ScanStreamName, model.ScanConsumerName); err != nil {
		_, err = js.AddConsumer(model.ScanStreamName, &nats.ConsumerConfig{
			Durable:   model.ScanConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}
	return nil
}

// Start begins consuming scan events.
func (c *ScanConsumer) Start() error {
	if err := EnsureStream(c.js); err != nil {
		return err
	}

	sub, err := c.js.PullSubscribe(model.ScanStreamSubject, model.ScanConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

// Stop ends the consume loop after the current batch.
func (c *ScanConsumer) Stop() {
	close(c.done)
}

func (c *ScanConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		select {
		case <-c.done:
			c.logger.Info("scan consumer stopped")
			return
		default:
		}

		msgs, err := sub.Fetch(scanFetchBatch, nats.MaxWait(scanFetchMaxWait))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				c.logger.Info("scan consumer subscription closed", zap.Error(err))
				return
			}
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			c.handle(ctx, msg)
		}
	}
}

func (c *ScanConsumer) handle(ctx context.Context, msg *nats.Msg) {
	var event model.ScanEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Redelivery cannot fix a malformed payload.
		c.logger.Error("failed to unmarshal scan event", zap.Error(err))
		_ = msg.Term()
		return
	}

	if err := c.repo.Create(ctx, &event); err != nil {
		c.logger.Error("failed to store scan event",
			zap.String("id", event.ID),
			zap.Int("qr_code_id", event.QRCodeID),
			zap.Error(err))
		_ = msg.Nak()
		return
	}

	c.logger.Debug("scan event stored",
		zap.String("id", event.ID),
		zap.Int("qr_code_id", event.QRCodeID),
		zap.String("ip", event.IP),
		zap.Time("timestamp", event.Timestamp),
	)

	_ = msg.Ack()
}

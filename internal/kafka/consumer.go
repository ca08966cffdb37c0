package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"

	"alivecheck-backend/internal/engine"
	"alivecheck-backend/internal/logging"
)

// checkinEvent is the message shape published by the mobile app's backend
// whenever a subject checks in.
type checkinEvent struct {
	SubjectID string `json:"subject_id"`
	CheckinID string `json:"checkin_id"`
}

// Consumer feeds check-in events from Kafka into the engine. Each message is
// processed inline; a failed check-in is logged and the offset committed
// anyway, the next detection sweep covers the gap.
type Consumer struct {
	reader *kafka.Reader
	engine *engine.Engine
	logger *logging.Logger
}

func NewConsumer(brokers []string, topic, groupID string, eng *engine.Engine, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.FirstOffset,
	})
	return &Consumer{reader: reader, engine: eng, logger: logger}
}

func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)

		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					c.logger.Infof("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}
			c.handleMessage(ctx, msg)
		}
	}()
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) {
	var event checkinEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Errorf("Unmarshal message failed: %v", err)
		return
	}
	if event.SubjectID == "" {
		c.logger.Errorf("Invalid message: missing subject_id")
		return
	}

	result, err := c.engine.Checkin(ctx, event.SubjectID)
	if err != nil {
		if errors.Is(err, engine.ErrSubjectNotFound) {
			c.logger.Warnf("Checkin event for unknown subject %s", event.SubjectID)
			return
		}
		c.logger.Errorf("Checkin for subject %s failed: %v", event.SubjectID, err)
		return
	}
	c.logger.Infof("Processed checkin event %s for subject %s (cancelled %d alerts)",
		event.CheckinID, event.SubjectID, result.CancelledAlerts)
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Failed to close Kafka reader: %v", err)
	}
}

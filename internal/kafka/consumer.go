package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/medprep-backend/internal/config"
	"github.com/medprep-backend/internal/domain"
)

// WatchRecorder processes watch completion events
type WatchRecorder interface {
	RecordWatch(ctx context.Context, ev domain.WatchEvent) (bool, error)
}

// Consumer consumes watch events from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	recorder      WatchRecorder
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, recorder WatchRecorder, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		recorder:      recorder,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if err == sarama.ErrClosedConsumerGroup {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	<-c.ready
	c.logger.Info("Kafka consumer ready")

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a topic partition. Events are applied
// one at a time; the watch insert is idempotent, so redelivery after a crash
// is safe.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil

		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			var ev domain.WatchEvent
			if err := json.Unmarshal(message.Value, &ev); err != nil {
				h.consumer.logger.Warn("failed to unmarshal message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			if ev.UserID == "" || ev.VideoID == "" {
				h.consumer.logger.Warn("invalid watch event",
					"user_id", ev.UserID,
					"video_id", ev.VideoID,
				)
				session.MarkMessage(message, "")
				continue
			}
			if ev.WatchedAt.IsZero() {
				ev.WatchedAt = message.Timestamp
			}

			if err := h.consumer.processWithRetry(ev); err != nil {
				h.consumer.logger.Error("failed to record watch event",
					"error", err,
					"user_id", ev.UserID,
					"video_id", ev.VideoID,
				)
			}
			session.MarkMessage(message, "")
		}
	}
}

// processWithRetry applies a watch event, retrying transient failures.
// Malformed events and events referencing unknown users are permanent
// failures; they are skipped without burning retry attempts.
func (c *Consumer) processWithRetry(ev domain.WatchEvent) error {
	attempts := c.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
		_, err = c.recorder.RecordWatch(ctx, ev)
		cancel()

		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrInvalidRequest) || errors.Is(err, domain.ErrUserNotFound) {
			c.logger.Warn("skipping unprocessable watch event",
				"error", err,
				"user_id", ev.UserID,
				"video_id", ev.VideoID,
			)
			return nil
		}
		if c.ctx.Err() != nil {
			return err
		}
		if i < attempts-1 {
			time.Sleep(c.config.RetryDelay)
		}
	}
	return err
}

package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds commands into a handler. Rejected commands are committed
// so they are not redelivered. A command that keeps failing for other
// reasons holds the consumer on its offset until it goes through or the
// consumer stops, so no later offset is committed past it.
type Consumer struct {
	reader   KafkaReader
	logger   *zap.Logger
	handler  func(context.Context, Command) error
	retries  uint64
	interval time.Duration
	pause    time.Duration
	done     chan struct{}
}

func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
		Dialer:  kafka.DefaultDialer,
	}), logger)
}

func newConsumer(reader KafkaReader, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:   reader,
		logger:   logger.Named("kafka_consumer"),
		retries:  3,
		interval: 200 * time.Millisecond,
		pause:    5 * time.Second,
		done:     make(chan struct{}),
	}
}

func (c *Consumer) RegisterHandler(fn func(context.Context, Command) error) {
	c.handler = fn
}

func (c *Consumer) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		c.run(ctx)
	}()
}

func (c *Consumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to fetch message", zap.Error(err))
			continue
		}

		var cmd Command
		if err := json.Unmarshal(msg.Value, &cmd); err != nil {
			c.logger.Error("Failed to parse command",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
			)
			c.commit(ctx, msg, "")
			continue
		}

		if !c.process(ctx, msg, cmd) {
			return
		}
		c.commit(ctx, msg, cmd.Type)
	}
}

// process runs cmd until it succeeds or is rejected, pausing between
// rounds of retries. It returns false when ctx ended first; the message is
// then left uncommitted and is fetched again after a restart.
func (c *Consumer) process(ctx context.Context, msg kafka.Message, cmd Command) bool {
	for {
		err := c.handle(ctx, cmd)
		if err == nil {
			return true
		}
		if e.IsRejection(err) {
			c.logger.Warn("Command rejected",
				zap.Error(err),
				zap.String("command_type", string(cmd.Type)),
				zap.String("command_id", cmd.ID.String()),
			)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.logger.Error("Failed to handle command",
			zap.Error(err),
			zap.String("command_type", string(cmd.Type)),
			zap.String("command_id", cmd.ID.String()),
			zap.Int64("offset", msg.Offset),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.pause):
		}
	}
}

// handle retries transient failures; rejections are final.
func (c *Consumer) handle(ctx context.Context, cmd Command) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.interval
	return backoff.Retry(func() error {
		err := c.handler(ctx, cmd)
		if err != nil && e.IsRejection(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx))
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message, cmdType CommandType) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit message",
			zap.Error(err),
			zap.String("command_type", string(cmdType)),
		)
	}
}

// Close stops the reader, which ends a started consumer.
func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
}

// Done is closed once a started consumer has returned.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"

	"GapSight/pkg/logger"
)

// MessageHandler processes the payload of one topic.
type MessageHandler interface {
	Topic() string
	Handle(ctx context.Context, payload []byte) error
}

// Consumer reads one topic with a consumer group and fans messages out to
// workers. Messages of one partition always land on the same worker, so
// per-partition order is preserved.
type Consumer struct {
	cfg     ConsumerConfig
	reader  *kafka.Reader
	dlq     *kafka.Writer
	handler MessageHandler
	hooks   hookChain
	log     *logger.Logger

	commitMu sync.Mutex
}

func NewConsumer(handler MessageHandler, log *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := ConsumerConfig{
		WorkerCount: 2,
		BufferSize:  256,
		RetryMax:    3,
		BackoffMin:  200 * time.Millisecond,
		BackoffMax:  5 * time.Second,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka consumer: brokers are required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka consumer: group id is required")
	}
	if handler == nil {
		return nil, errors.New("kafka consumer: handler is required")
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = 200 * time.Millisecond
	}
	if log == nil {
		log = logger.NewNop()
	}

	c := &Consumer{
		cfg:     cfg,
		handler: handler,
		log:     log.With(logger.String("topic", handler.Topic()), logger.String("group", cfg.GroupID)),
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			GroupID:        cfg.GroupID,
			Topic:          handler.Topic(),
			MinBytes:       cfg.MinBytes,
			MaxBytes:       cfg.MaxBytes,
			CommitInterval: 0,
		}),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.DLQTopic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		}
	}
	consumerMetricsOnce.Do(initConsumerMetrics)
	return c, nil
}

// Use registers hooks in call order.
func (c *Consumer) Use(hooks ...ConsumerHook) {
	c.hooks = append(c.hooks, hooks...)
}

// Run blocks until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	queues := make([]chan kafka.Message, c.cfg.WorkerCount)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, c.cfg.BufferSize/c.cfg.WorkerCount+1)
		wg.Add(1)
		go func(q <-chan kafka.Message) {
			defer wg.Done()
			for msg := range q {
				c.process(ctx, msg)
			}
		}(queues[i])
	}
	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}()

	c.log.Info("kafka consumer started", logger.Int("workers", c.cfg.WorkerCount))
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}
		select {
		case queues[msg.Partition%len(queues)] <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	start := time.Now()
	partition := strconv.Itoa(msg.Partition)

	err := c.hooks.before(ctx, msg)
	if err == nil {
		err = c.handleWithRetry(ctx, msg)
	}
	took := time.Since(start)
	c.hooks.after(ctx, msg, err, took)
	consumerLatency.WithLabelValues(msg.Topic).Observe(took.Seconds())

	if err != nil {
		if ctx.Err() != nil {
			// Shutdown: leave the offset uncommitted so the message is redelivered.
			return
		}
		consumerMsgs.WithLabelValues(msg.Topic, partition, "failed").Inc()
		c.log.Error("message failed",
			logger.Int("partition", msg.Partition),
			logger.Int64("offset", msg.Offset),
			logger.Error(err))
		c.hooks.dlq(ctx, msg, err)
		if dlqErr := c.sendToDLQ(ctx, msg, err); dlqErr != nil {
			c.log.Error("dlq write failed", logger.Int64("offset", msg.Offset), logger.Error(dlqErr))
		}
	} else {
		consumerMsgs.WithLabelValues(msg.Topic, partition, "ok").Inc()
	}
	c.commit(ctx, msg)
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	b := retry.NewExponential(c.cfg.BackoffMin)
	b = retry.WithJitterPercent(20, b)
	if c.cfg.BackoffMax > 0 {
		b = retry.WithCappedDuration(c.cfg.BackoffMax, b)
	}
	b = retry.WithMaxRetries(uint64(max(c.cfg.RetryMax, 0)), b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := c.handler.Handle(ctx, msg.Value)
		if err == nil {
			return nil
		}
		var he *HookError
		if errors.As(err, &he) {
			return err
		}
		if attempt <= c.cfg.RetryMax {
			c.hooks.retry(ctx, msg, attempt, err)
			consumerRetries.WithLabelValues(msg.Topic).Inc()
		}
		return retry.RetryableError(err)
	})
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg kafka.Message, cause error) error {
	if c.dlq == nil {
		return nil
	}
	headers := append(append([]kafka.Header(nil), msg.Headers...),
		kafka.Header{Key: "x-error", Value: []byte(cause.Error())},
		kafka.Header{Key: "x-source-topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "x-source-offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
	)
	return c.dlq.WriteMessages(ctx, kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers})
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	b := retry.WithMaxRetries(3, retry.NewConstant(100*time.Millisecond))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		c.log.Warn("commit failed", logger.Int64("offset", msg.Offset), logger.Error(err))
	}
}

func (c *Consumer) Close() error {
	var errs []error
	if err := c.reader.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.dlq != nil {
		if err := c.dlq.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	consumerMetricsOnce sync.Once
	consumerMsgs        *prometheus.CounterVec
	consumerRetries     *prometheus.CounterVec
	consumerLatency     *prometheus.HistogramVec
)

func initConsumerMetrics() {
	consumerMsgs = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "gapsight_kafka_consumer_messages_total", Help: "Consumed messages by outcome"},
		[]string{"topic", "partition", "result"},
	)
	consumerRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "gapsight_kafka_consumer_retries_total", Help: "Handler retries"},
		[]string{"topic"},
	)
	consumerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Name: "gapsight_kafka_consumer_handle_seconds", Help: "Time spent per message including retries", Buckets: prometheus.DefBuckets},
		[]string{"topic"},
	)
}

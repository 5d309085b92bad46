package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"link-insights/internal/domain/click"
	"link-insights/internal/lib/metrics"
)

type ClickRecorder interface {
	RecordClick(ctx context.Context, raw click.Raw)
}

// Connect dials NATS with unlimited reconnects.
func Connect(url, name string) (*nats.Conn, error) {
	const op = "queue.Connect"

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return conn, nil
}

// Publisher hands raw clicks to NATS instead of recording them in-process.
// Delivery is at most once.
type Publisher struct {
	log     *slog.Logger
	conn    *nats.Conn
	subject string
}

func NewPublisher(log *slog.Logger, conn *nats.Conn, subject string) *Publisher {
	return &Publisher{log: log, conn: conn, subject: subject}
}

// Track never blocks on the network beyond the client write buffer; failures are logged.
func (p *Publisher) Track(raw click.Raw) {
	const op = "queue.Publisher.Track"

	log := p.log.With(slog.String("op", op), slog.String("code", raw.Code))

	if raw.Timestamp.IsZero() {
		raw.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(raw)
	if err != nil {
		log.Error("failed to encode click", slog.String("error", err.Error()))
		metrics.QueueMessagesTotal.WithLabelValues("publish", "error").Inc()
		return
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		log.Error("failed to publish click", slog.String("error", err.Error()))
		metrics.QueueMessagesTotal.WithLabelValues("publish", "error").Inc()
		return
	}

	metrics.QueueMessagesTotal.WithLabelValues("publish", "success").Inc()
}

// Close flushes buffered clicks.
func (p *Publisher) Close() {
	if err := p.conn.FlushTimeout(5 * time.Second); err != nil {
		p.log.Warn("failed to flush clicks", slog.String("error", err.Error()))
	}
}

// Consumer feeds clicks from a queue group into a ClickRecorder.
type Consumer struct {
	log      *slog.Logger
	conn     *nats.Conn
	recorder ClickRecorder
	timeout  time.Duration
	sub      *nats.Subscription
}

func NewConsumer(log *slog.Logger, conn *nats.Conn, recorder ClickRecorder, timeout time.Duration) *Consumer {
	return &Consumer{
		log:      log,
		conn:     conn,
		recorder: recorder,
		timeout:  timeout,
	}
}

// Start subscribes to subject in queue group group. Members of the group share the stream.
func (c *Consumer) Start(subject, group string) error {
	const op = "queue.Consumer.Start"

	sub, err := c.conn.QueueSubscribe(subject, group, c.Handle)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.sub = sub

	c.log.Info("click consumer started",
		slog.String("subject", subject),
		slog.String("queue", group),
	)

	return nil
}

// Handle decodes one message and records it. Malformed payloads are dropped.
func (c *Consumer) Handle(msg *nats.Msg) {
	const op = "queue.Consumer.Handle"

	var raw click.Raw
	if err := json.Unmarshal(msg.Data, &raw); err != nil {
		c.log.Error("dropping malformed click",
			slog.String("op", op),
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
		metrics.QueueMessagesTotal.WithLabelValues("consume", "dropped").Inc()
		return
	}

	if raw.Code == "" {
		c.log.Warn("dropping click without code", slog.String("op", op))
		metrics.QueueMessagesTotal.WithLabelValues("consume", "dropped").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.recorder.RecordClick(ctx, raw)
	metrics.QueueMessagesTotal.WithLabelValues("consume", "success").Inc()
}

// Stop drains the subscription so in-flight messages finish.
func (c *Consumer) Stop() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Drain()
}

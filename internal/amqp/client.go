package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// errDeliveryChannelClosed signals that the broker dropped the delivery
// stream, which happens when the underlying connection dies.
var errDeliveryChannelClosed = errors.New("delivery channel closed")

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key matches the queue name on a direct exchange
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishExportSync enqueues an export request for the sync worker.
func (c *Client) PublishExportSync(ctx context.Context, trigger string, rows int) error {
	msg := NewExportSyncMessage(trigger, rows)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.InfoContext(ctx, "published export sync message",
		"trigger", trigger,
		"rows", rows,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// ConsumeExportSync delivers export requests to handler until ctx is
// canceled. Handler failures nack with requeue; undecodable messages
// are dropped.
func (c *Client) ConsumeExportSync(ctx context.Context, handler func(context.Context, *ExportSyncMessage) error) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (manual ack after handling)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "started consuming export sync messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errDeliveryChannelClosed
			}

			msg, err := ExportSyncMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "failed to unmarshal message", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				slog.ErrorContext(ctx, "failed to handle message",
					"error", err,
					"trigger", msg.Trigger)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
			slog.InfoContext(ctx, "processed export sync message",
				"trigger", msg.Trigger,
				"rows", msg.Rows)
		}
	}
}

// ConsumeExportSyncWithRetry consumes until ctx is canceled, riding out
// broken connections by rebuilding the client with backoff and resuming.
// Errors unrelated to the connection are returned to the caller.
func (c *Client) ConsumeExportSyncWithRetry(ctx context.Context, url string, handler func(context.Context, *ExportSyncMessage) error) error {
	for {
		err := c.ConsumeExportSync(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !shouldReconnect(err) {
			return err
		}
		slog.WarnContext(ctx, "consumer lost connection, reconnecting", "error", err, "queue", c.queueName)
		if err := c.Reconnect(ctx, url); err != nil {
			return err
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// exponentialBackoff returns the reconnect delay for an attempt,
// doubling from one second and capped at 30 seconds.
func exponentialBackoff(attempt int) time.Duration {
	d := time.Second << attempt
	if d > 30*time.Second || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// isConnectionError reports whether an error looks like a broken AMQP
// connection worth reconnecting for.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	for _, marker := range []string{"connection refused", "connection closed", "EOF", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// shouldReconnect reports whether a consume failure is worth a
// reconnect instead of propagating to the caller.
func shouldReconnect(err error) bool {
	return errors.Is(err, errDeliveryChannelClosed) || isConnectionError(err)
}

// Reconnect rebuilds the connection, channel and topology with
// exponential backoff, giving up when ctx is canceled.
func (c *Client) Reconnect(ctx context.Context, url string) error {
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}

		conn, err := amqp091.Dial(url)
		if err != nil {
			slog.WarnContext(ctx, "reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}
		channel, err := conn.Channel()
		if err != nil {
			conn.Close()
			slog.WarnContext(ctx, "reopen channel failed", "attempt", attempt, "error", err)
			continue
		}

		c.conn = conn
		c.channel = channel
		if err := c.setup(); err != nil {
			c.Close()
			slog.WarnContext(ctx, "redeclare topology failed", "attempt", attempt, "error", err)
			continue
		}
		slog.InfoContext(ctx, "AMQP reconnected", "attempts", attempt+1)
		return nil
	}
}

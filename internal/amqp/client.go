package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

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

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishAccountChanged publishes an account-changed event.
func (c *Client) PublishAccountChanged(ctx context.Context, name string, version int64) error {
	body, err := encodeEnvelope(KindAccountChanged, NewAccountChangedMessage(name, version))
	if err != nil {
		return err
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published account change",
		"account", name,
		"version", version,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishExportReminder publishes an export reminder event.
func (c *Client) PublishExportReminder(ctx context.Context, intervalMinutes int) error {
	body, err := encodeEnvelope(KindExportReminder, NewExportReminderMessage(intervalMinutes))
	if err != nil {
		return err
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published export reminder", "interval_minutes", intervalMinutes)
	return nil
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
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
	return nil
}

// Consume dispatches queue messages to the per-kind handlers until the
// context is cancelled. Handler errors requeue the delivery; undecodable
// messages are dropped.
func (c *Client) Consume(
	ctx context.Context,
	onAccountChanged func(*AccountChangedMessage) error,
	onExportReminder func(*ExportReminderMessage) error,
) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			if err := c.dispatch(ctx, delivery.Body, onAccountChanged, onExportReminder); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message", "error", err)
				delivery.Nack(false, true) // reject and requeue
				continue
			}
			delivery.Ack(false)
		}
	}
}

func (c *Client) dispatch(
	ctx context.Context,
	body []byte,
	onAccountChanged func(*AccountChangedMessage) error,
	onExportReminder func(*ExportReminderMessage) error,
) error {
	env, err := decodeEnvelope(body)
	if err != nil {
		// Undecodable messages would requeue forever; log and drop.
		slog.ErrorContext(ctx, "Dropping undecodable message", "error", err)
		return nil
	}

	switch env.Kind {
	case KindAccountChanged:
		var msg AccountChangedMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			slog.ErrorContext(ctx, "Dropping malformed account change", "error", err)
			return nil
		}
		if onAccountChanged == nil {
			return nil
		}
		return onAccountChanged(&msg)
	case KindExportReminder:
		var msg ExportReminderMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			slog.ErrorContext(ctx, "Dropping malformed export reminder", "error", err)
			return nil
		}
		if onExportReminder == nil {
			return nil
		}
		return onExportReminder(&msg)
	default:
		slog.WarnContext(ctx, "Dropping message of unknown kind", "kind", env.Kind)
		return nil
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

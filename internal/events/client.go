// Package events publishes store mutations to RabbitMQ and lets
// workers consume them.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	logger       *log.Logger
}

func NewClient(url, exchangeName, queueName string, logger *log.Logger) (*Client, error) {
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
		logger:       logger.WithComponent("events"),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key matches the queue name on a direct exchange.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishTransactionUpserted implements store.Publisher.
func (c *Client) PublishTransactionUpserted(ctx context.Context, ownerID int64, t core.Transaction) error {
	return c.publish(ctx, NewUpsertedEvent(ownerID, t))
}

// PublishTransactionDeleted implements store.Publisher.
func (c *Client) PublishTransactionDeleted(ctx context.Context, ownerID, id int64) error {
	return c.publish(ctx, NewDeletedEvent(ownerID, id))
}

func (c *Client) publish(ctx context.Context, event *TransactionEvent) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		c.queueName,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	c.logger.InfoContext(ctx, "published transaction event",
		"action", event.Action,
		"owner_id", event.OwnerID,
		"exchange", c.exchangeName)

	return nil
}

const maxRedeliverDelay = 30 * time.Second

// backoffDelay returns how long to pause before requeueing after the
// given number of consecutive handler failures, doubling from 1s and
// capped at 30s so a persistently failing consumer never hot-loops.
func backoffDelay(failures int) time.Duration {
	if failures >= 5 {
		return maxRedeliverDelay
	}
	d := time.Second << uint(failures)
	if d > maxRedeliverDelay {
		return maxRedeliverDelay
	}
	return d
}

// Consume delivers transaction events to the handler until ctx ends.
// Handler failures nack with requeue after a backoff pause;
// undecodable payloads are dropped.
func (c *Client) Consume(ctx context.Context, handler func(*TransactionEvent) error) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "started consuming transaction events", "queue", c.queueName)

	failures := 0
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "stopping event consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			event, err := TransactionEventFromJSON(delivery.Body)
			if err != nil {
				c.logger.ErrorContext(ctx, "failed to unmarshal event", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(event); err != nil {
				delay := backoffDelay(failures)
				failures++
				c.logger.ErrorContext(ctx, "failed to handle event",
					"error", err,
					"action", event.Action,
					"owner_id", event.OwnerID,
					"retry_in", delay)
				select {
				case <-ctx.Done():
				case <-time.After(delay):
				}
				delivery.Nack(false, true)
				continue
			}

			failures = 0
			delivery.Ack(false)
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

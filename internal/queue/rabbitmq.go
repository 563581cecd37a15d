// Package queue carries scoring batches over RabbitMQ so that scoring can
// run in a separate worker process.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonathan/perfect-fit/internal/schemas"
	"github.com/jonathan/perfect-fit/internal/types"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Handler processes one decoded batch.
type Handler interface {
	Process(ctx context.Context, batch *types.ScoringBatch) ([]types.ScoredAnswer, error)
}

// RabbitMQ publishes and consumes scoring batches on one durable queue.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     *zap.Logger
}

// Dial connects to url and declares queue.
func Dial(url, queue string, log *zap.Logger) (*RabbitMQ, error) {
	if log == nil {
		log = zap.NewNop()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	log.Info("connected to RabbitMQ", zap.String("queue", q.Name))
	return &RabbitMQ{conn: conn, channel: ch, queue: q.Name, log: log}, nil
}

// Close closes the channel and connection.
func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil && !r.conn.IsClosed() {
		_ = r.conn.Close()
		return fmt.Errorf("failed to close channel: %w", err)
	}
	if r.conn.IsClosed() {
		return nil
	}
	return r.conn.Close()
}

// Dispatch publishes batch as a persistent message. It returns once the
// broker has the message, not when scoring is done.
func (r *RabbitMQ) Dispatch(ctx context.Context, batch *types.ScoringBatch) error {
	body, err := Encode(batch)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = r.channel.PublishWithContext(ctx,
		"",      // default exchange
		r.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    batch.SubmissionID.String(),
			Timestamp:    batch.SubmittedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish scoring batch: %w", err)
	}
	return nil
}

// Consume delivers batches to h until ctx is cancelled or the channel
// closes. Messages are acked only after h succeeds. prefetch bounds the
// number of unacked batches held by this consumer.
func (r *RabbitMQ) Consume(ctx context.Context, h Handler, prefetch int) error {
	if prefetch > 0 {
		if err := r.channel.Qos(prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set prefetch: %w", err)
		}
	}

	deliveries, err := r.channel.ConsumeWithContext(ctx,
		r.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	r.log.Info("consuming scoring batches", zap.String("queue", r.queue), zap.Int("prefetch", prefetch))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			handleDelivery(ctx, d, h, r.log)
		}
	}
}

// handleDelivery settles one message. Undecodable messages are dropped; a
// failed write is requeued once and dropped on redelivery.
func handleDelivery(ctx context.Context, d amqp.Delivery, h Handler, log *zap.Logger) {
	batch, err := Decode(d.Body)
	if err != nil {
		log.Error("dropping malformed scoring batch", zap.String("message_id", d.MessageId), zap.Error(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("failed to nack message", zap.Error(nackErr))
		}
		return
	}

	if _, err := h.Process(ctx, batch); err != nil {
		requeue := !d.Redelivered
		log.Warn("scoring batch failed",
			zap.String("application_id", batch.ApplicationID.String()),
			zap.Bool("requeue", requeue),
			zap.Error(err))
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			log.Error("failed to nack message", zap.Error(nackErr))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error("failed to ack message", zap.Error(err))
	}
}

// Encode serializes a batch for the wire.
func Encode(batch *types.ScoringBatch) ([]byte, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scoring batch: %w", err)
	}
	return body, nil
}

// Decode parses and validates a wire batch.
func Decode(body []byte) (*types.ScoringBatch, error) {
	if err := schemas.Validate(schemas.ScoringBatch, body); err != nil {
		return nil, err
	}
	var batch types.ScoringBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("failed to decode scoring batch: %w", err)
	}
	return &batch, nil
}

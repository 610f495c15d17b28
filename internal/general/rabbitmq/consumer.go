package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// permanentError marks a handler failure that must not be retried. The
// delivery is nacked without requeue, which routes it to the dead-letter
// exchange. Anything not wrapped with Permanent is treated as transient and
// requeued.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so the consumer dead-letters the message instead of
// requeuing it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err carries the dead-letter marker.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// newConsumerChannel returns a fresh channel with prefetch (QoS) applied.
func (client *Client) newConsumerChannel(prefetch int) (*amqp.Channel, error) {
	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()

	// quick fail if no connection
	if conn == nil || conn.IsClosed() {
		return nil, errors.New("rabbitmq: connection is not ready")
	}

	// open a new channel
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	// prefetch=1 keeps one message in flight per queue, which is what gives
	// per-queue ordering; larger values trade ordering for throughput
	if prefetch < 1 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: set QoS (prefetch=%d): %w", prefetch, err)
	}

	return ch, nil
}

// Consume starts consuming messages from a queue with manual acks. The
// delivery is acked only after the handler returns nil; handler errors are
// requeued when transient and dead-lettered when wrapped with Permanent.
func (client *Client) Consume(
	ctx context.Context,
	queue string,
	consumerTag string,
	prefetch int,
	handler func(context.Context, amqp.Delivery) error,
) error {
	// open a fresh channel for this consumer, apply QoS
	ch, err := client.newConsumerChannel(prefetch)
	if err != nil {
		return err
	}
	defer ch.Close()

	deliveries, err := ch.Consume(
		queue,
		consumerTag,
		false, // autoAck
		false, // exclusive
		false, // noLocal (ignored by RabbitMQ)
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume(%s): %w", queue, err)
	}

	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			if consumerTag != "" {
				_ = ch.Cancel(consumerTag, false)
			}
			return nil

		case cerr := <-chClosed:
			if cerr != nil {
				return fmt.Errorf("rabbitmq: channel closed while consuming %s: %w", queue, cerr)
			}
			return nil

		case d, ok := <-deliveries:
			if !ok {
				// deliveries stream ended
				return nil
			}

			hCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err := handler(hCtx, d)
			cancel()

			switch {
			case err == nil:
				_ = d.Ack(false)
			case IsPermanent(err):
				// poisoned message: route to the dead-letter exchange
				client.logger.Error(client.logCtx, "message_dead_lettered",
					"Dead-lettering unprocessable message", err,
					map[string]any{"queue": queue, "routing_key": d.RoutingKey, "size": len(d.Body)})
				_ = d.Nack(false, false)
			default:
				// transient: requeue and let the broker redeliver
				client.logger.Error(client.logCtx, "message_requeued",
					"Requeuing message after transient failure", err,
					map[string]any{"queue": queue, "routing_key": d.RoutingKey, "redelivered": d.Redelivered})
				_ = d.Nack(false, true)
			}
		}
	}
}

package rabbitmq

import (
	"fmt"

	"ridebook/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

func declareTopology(ch *amqp.Channel) error {
	// 1. Exchanges: one topic exchange per domain, one direct dead-letter exchange
	exchanges := []struct {
		name string
		kind string
	}{
		{contracts.ExchangeBookingTopic, "topic"},
		{contracts.ExchangeRideTopic, "topic"},
		{contracts.ExchangeDriverTopic, "topic"},
		{contracts.ExchangePaymentTopic, "topic"},
		{contracts.ExchangeDeadLetter, "direct"},
	}

	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	// 2. Queues. Every consumer queue dead-letters to the dlx exchange with
	// its own name as routing key, so dead_letters keeps the origin visible.
	consumerQueues := []string{
		contracts.QueueRideBookings,
		contracts.QueueRideDriverEvents,
		contracts.QueueRidePaymentEvents,
		contracts.QueuePaymentBookings,
	}

	for _, q := range consumerQueues {
		args := amqp.Table{
			"x-dead-letter-exchange":    contracts.ExchangeDeadLetter,
			"x-dead-letter-routing-key": q,
		}
		if _, err := ch.QueueDeclare(q, true, false, false, false, args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	if _, err := ch.QueueDeclare(contracts.QueueDeadLetters, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", contracts.QueueDeadLetters, err)
	}

	// 3. Bindings
	bindings := []struct {
		queue      string
		exchange   string
		routingKey string
	}{
		{contracts.QueueRideBookings, contracts.ExchangeBookingTopic, contracts.RouteBookingCreated},
		{contracts.QueuePaymentBookings, contracts.ExchangeBookingTopic, contracts.RouteBookingCreated},
		{contracts.QueueRideDriverEvents, contracts.ExchangeDriverTopic, "driver.*"},
		{contracts.QueueRidePaymentEvents, contracts.ExchangePaymentTopic, "payment.*"},
	}

	for _, b := range bindings {
		if err := ch.QueueBind(b.queue, b.routingKey, b.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	// every consumer queue's dead letters land in the shared dead_letters queue
	for _, q := range consumerQueues {
		if err := ch.QueueBind(contracts.QueueDeadLetters, q, contracts.ExchangeDeadLetter, false, nil); err != nil {
			return fmt.Errorf("bind dead letters for %s: %w", q, err)
		}
	}

	return nil
}

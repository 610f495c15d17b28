package contracts

// Exchanges: one durable topic exchange per domain, plus the dead-letter
// exchange every consumer queue points at.
const (
	ExchangeBookingTopic = "booking_topic"
	ExchangeRideTopic    = "ride_topic"
	ExchangeDriverTopic  = "driver_topic"
	ExchangePaymentTopic = "payment_topic"
	ExchangeDeadLetter   = "dlx"
)

// Queues: durable, one per consumer.
const (
	QueueRideBookings      = "ride_bookings"       // ride service <- booking.created
	QueueRideDriverEvents  = "ride_driver_events"  // ride service <- driver.matched / driver.cancelled
	QueueRidePaymentEvents = "ride_payment_events" // ride service <- payment.completed / payment.failed
	QueuePaymentBookings   = "payment_bookings"    // payment service <- booking.created
	QueueDeadLetters       = "dead_letters"        // poisoned messages from any queue
)

// Routing keys follow <entity>.<verb>.
const (
	RouteBookingCreated = "booking.created"

	RouteRideStatusPrefix = "ride." // + lowercased status, e.g. ride.driver_assigned

	RouteDriverMatched   = "driver.matched"
	RouteDriverCancelled = "driver.cancelled"

	RoutePaymentCompleted = "payment.completed"
	RoutePaymentFailed    = "payment.failed"
	RoutePaymentRefunded  = "payment.refunded"
	RoutePaymentReceipt   = "payment.receipt"
)

package contracts

// BookingCreated is the canonical trigger for the ride lifecycle and the
// payment saga. Routing key: "booking.created" on ExchangeBookingTopic.
type BookingCreated struct {
	RideID        string   `json:"ride_id"`
	UserID        string   `json:"user_id"`
	Amount        int64    `json:"amount"`
	PaymentMethod string   `json:"payment_method"` // cash|wallet|card|bank_transfer
	Pickup        GeoPoint `json:"pickup"`
	Destination   GeoPoint `json:"destination"`
	Envelope
}

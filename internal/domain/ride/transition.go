package ride

import (
	"errors"
	"strings"
)

// Event is a lifecycle transition trigger. User-facing events arrive through
// the HTTP API or the bus; MARK_NO_SHOW is fired only by the timeout sweeper.
type Event string

const (
	EventSearchDriver Event = "SEARCH_DRIVER"
	EventAssignDriver Event = "ASSIGN_DRIVER"
	EventDriverArrive Event = "DRIVER_ARRIVE"
	EventStartRide    Event = "START_RIDE"
	EventCompleteRide Event = "COMPLETE_RIDE"
	EventCancelRide   Event = "CANCEL_RIDE"
	EventDriverCancel Event = "DRIVER_CANCEL"
	EventMarkNoShow   Event = "MARK_NO_SHOW"
)

var (
	ErrInvalidEvent      = errors.New("invalid ride event")
	ErrInvalidTransition = errors.New("invalid ride status transition")
)

// ParseEvent normalizes (uppercases+trims) and validates an event string.
func ParseEvent(in string) (Event, error) {
	event := Event(strings.ToUpper(strings.TrimSpace(in)))
	if event.Valid() {
		return event, nil
	}
	return "", ErrInvalidEvent
}

// Valid reports whether event is one of the allowed event constants.
func (event Event) Valid() bool {
	switch event {
	case EventSearchDriver, EventAssignDriver, EventDriverArrive, EventStartRide,
		EventCompleteRide, EventCancelRide, EventDriverCancel, EventMarkNoShow:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Event.
func (event Event) String() string {
	return string(event)
}

// Cancelling reports whether the event moves the ride to CANCELLED.
func (event Event) Cancelling() bool {
	return event == EventCancelRide || event == EventDriverCancel
}

// transitions is the directed transition graph: from -> event -> to.
// Cancel events are handled separately because they apply to any
// non-terminal state.
var transitions = map[Status]map[Event]Status{
	StatusRequested: {
		EventSearchDriver: StatusSearchingDriver,
	},
	StatusSearchingDriver: {
		EventAssignDriver: StatusDriverAssigned,
	},
	StatusDriverAssigned: {
		EventDriverArrive: StatusDriverArrived,
	},
	StatusDriverArrived: {
		EventStartRide:  StatusStarted,
		EventMarkNoShow: StatusNoShow,
	},
	StatusStarted: {
		EventCompleteRide: StatusCompleted,
	},
}

// produces maps each event to the status it results in. Used to detect
// redelivered events: an event that would re-produce the current status is an
// idempotent no-op rather than an invalid transition.
var produces = map[Event]Status{
	EventSearchDriver: StatusSearchingDriver,
	EventAssignDriver: StatusDriverAssigned,
	EventDriverArrive: StatusDriverArrived,
	EventStartRide:    StatusStarted,
	EventCompleteRide: StatusCompleted,
	EventCancelRide:   StatusCancelled,
	EventDriverCancel: StatusCancelled,
	EventMarkNoShow:   StatusNoShow,
}

// Next computes the target status for applying event in state from.
// Returns ErrInvalidTransition when the event is not legal in that state.
func Next(from Status, event Event) (Status, error) {
	if !event.Valid() {
		return "", ErrInvalidEvent
	}
	if event.Cancelling() {
		if from.Terminal() {
			return "", ErrInvalidTransition
		}
		return StatusCancelled, nil
	}
	if targets, ok := transitions[from]; ok {
		if to, ok := targets[event]; ok {
			return to, nil
		}
	}
	return "", ErrInvalidTransition
}

// Produces returns the status the event results in when applied successfully.
func (event Event) Produces() Status {
	return produces[event]
}

// forwardRank orders the forward lifecycle chain so a late redelivery can be
// told apart from a genuinely conflicting event.
var forwardRank = map[Status]int{
	StatusRequested:       0,
	StatusSearchingDriver: 1,
	StatusDriverAssigned:  2,
	StatusDriverArrived:   3,
	StatusStarted:         4,
	StatusCompleted:       5,
}

// Superseded reports whether event targets a state the ride already moved
// beyond: a forward event observed after later progress (or after a terminal
// state) is a stale redelivery, not a conflict. Cancel events are never
// superseded; racing a cancellation against real progress is a conflict.
func Superseded(current Status, event Event) bool {
	target, ok := forwardRank[event.Produces()]
	if !ok {
		return false
	}
	if current.Terminal() {
		return true
	}
	rank, ok := forwardRank[current]
	return ok && rank > target
}

// Fallback describes the automatic transition fired by the timeout sweeper
// when a state's deadline elapses without a valid transition.
type Fallback struct {
	Event  Event
	Actor  string
	Reason string
}

// fallbacks: one deadline per non-terminal state.
var fallbacks = map[Status]Fallback{
	StatusRequested:       {Event: EventCancelRide, Actor: "system", Reason: "request_timeout"},
	StatusSearchingDriver: {Event: EventCancelRide, Actor: "system", Reason: "no_driver_found"},
	StatusDriverAssigned:  {Event: EventCancelRide, Actor: "system", Reason: "driver_arrival_timeout"},
	StatusDriverArrived:   {Event: EventMarkNoShow, Actor: "system", Reason: "passenger_no_show"},
	StatusStarted:         {Event: EventCancelRide, Actor: "system", Reason: "ride_duration_timeout"},
}

// FallbackFor returns the timeout fallback owned by the given state.
func FallbackFor(status Status) (Fallback, bool) {
	fb, ok := fallbacks[status]
	return fb, ok
}

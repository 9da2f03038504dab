package models

import (
	"encoding/json"
	"fmt"
)

// EventType tags the closed set of events delivered on a holder's channel.
type EventType string

const (
	EventPriceUpdate     EventType = "price:update"
	EventPositionAdded   EventType = "position:added"
	EventPositionUpdated EventType = "position:updated"
	EventPositionClosed  EventType = "position:closed"
	EventPositionDeleted EventType = "position:deleted"
)

// Event is one of the typed payloads published to a holder's channel.
// Consumers switch over the concrete type; the set is closed.
type Event interface {
	Type() EventType
}

// PriceUpdate carries the refreshed price for a single symbol within a
// PriceUpdateEvent.
type PriceUpdate struct {
	Symbol             string  `json:"symbol"`
	CurrentPrice       float64 `json:"currentPrice"`
	DailyChangePercent float64 `json:"dailyChangePercent"`
}

// PriceUpdateEvent is published once per holder per successful poll tick and
// contains all of that holder's open tickers.
type PriceUpdateEvent struct {
	Updates []PriceUpdate `json:"updates"`
}

func (PriceUpdateEvent) Type() EventType { return EventPriceUpdate }

// PositionAddedEvent announces a durably committed new position.
type PositionAddedEvent struct {
	Position Position `json:"position"`
}

func (PositionAddedEvent) Type() EventType { return EventPositionAdded }

// PositionUpdatedEvent announces an edit to an existing position's terms.
type PositionUpdatedEvent struct {
	Position Position `json:"position"`
}

func (PositionUpdatedEvent) Type() EventType { return EventPositionUpdated }

// PositionClosedEvent announces that a position was sold.
type PositionClosedEvent struct {
	Position Position `json:"position"`
}

func (PositionClosedEvent) Type() EventType { return EventPositionClosed }

// PositionDeletedEvent announces a deleted position. Only the id survives the
// delete, so that is all it carries.
type PositionDeletedEvent struct {
	ID int64 `json:"id"`
}

func (PositionDeletedEvent) Type() EventType { return EventPositionDeleted }

// envelope is the wire framing for events: a type tag plus the raw payload.
type envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeEvent marshals an event with its type tag for transport.
func EncodeEvent(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Type(), err)
	}
	return json.Marshal(envelope{Type: e.Type(), Payload: payload})
}

// DecodeEvent unmarshals a wire frame back into its concrete event type.
// Unknown type tags are rejected.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	var e Event
	switch env.Type {
	case EventPriceUpdate:
		e = &PriceUpdateEvent{}
	case EventPositionAdded:
		e = &PositionAddedEvent{}
	case EventPositionUpdated:
		e = &PositionUpdatedEvent{}
	case EventPositionClosed:
		e = &PositionClosedEvent{}
	case EventPositionDeleted:
		e = &PositionDeletedEvent{}
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}

	if err := json.Unmarshal(env.Payload, e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
	}

	switch v := e.(type) {
	case *PriceUpdateEvent:
		return *v, nil
	case *PositionAddedEvent:
		return *v, nil
	case *PositionUpdatedEvent:
		return *v, nil
	case *PositionClosedEvent:
		return *v, nil
	case *PositionDeletedEvent:
		return *v, nil
	}
	return e, nil
}

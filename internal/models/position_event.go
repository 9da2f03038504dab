package models

import "time"

// PositionEvent is the kafka wire form of a position mutation. It mirrors the
// in-process events so out-of-process writers can announce their own durable
// writes to connected holders.
type PositionEvent struct {
	EventType  EventType `json:"event_type"`
	HolderID   int64     `json:"holder_id"`
	Position   *Position `json:"position,omitempty"`
	PositionID int64     `json:"position_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ToEvent converts the wire form to the in-process event variant. It returns
// false for unknown or inconsistent payloads.
func (pe *PositionEvent) ToEvent() (Event, bool) {
	switch pe.EventType {
	case EventPositionAdded:
		if pe.Position == nil {
			return nil, false
		}
		return PositionAddedEvent{Position: *pe.Position}, true
	case EventPositionUpdated:
		if pe.Position == nil {
			return nil, false
		}
		return PositionUpdatedEvent{Position: *pe.Position}, true
	case EventPositionClosed:
		if pe.Position == nil {
			return nil, false
		}
		return PositionClosedEvent{Position: *pe.Position}, true
	case EventPositionDeleted:
		if pe.PositionID == 0 {
			return nil, false
		}
		return PositionDeletedEvent{ID: pe.PositionID}, true
	}
	return nil, false
}

// Package events implements the mutation event emitter: the write path calls
// it once after each durable position write, and it fans the typed event out
// to the mutating holder's channel.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

// Publisher is the in-process channel registry boundary.
type Publisher interface {
	Publish(holderID int64, event models.Event)
}

// Mirror forwards mutation events to an external bus for other services.
type Mirror interface {
	PublishPositionEvent(ctx context.Context, event models.PositionEvent) error
}

// Emitter publishes position mutation events. Event delivery is a best-effort
// add-on to the write: the emitter never returns an error, so a completed
// write is reported successful regardless of delivery.
type Emitter struct {
	pub    Publisher
	mirror Mirror
	logger *zap.Logger
}

// New creates an emitter. The mirror may be nil.
func New(pub Publisher, mirror Mirror, logger *zap.Logger) *Emitter {
	return &Emitter{pub: pub, mirror: mirror, logger: logger}
}

// PositionAdded emits the added event for a committed new position.
func (e *Emitter) PositionAdded(ctx context.Context, p *models.Position) {
	e.emit(ctx, p.HolderID, models.PositionAddedEvent{Position: *p}, p, 0)
}

// PositionUpdated emits the updated event for a committed edit.
func (e *Emitter) PositionUpdated(ctx context.Context, p *models.Position) {
	e.emit(ctx, p.HolderID, models.PositionUpdatedEvent{Position: *p}, p, 0)
}

// PositionClosed emits the closed event for a committed close.
func (e *Emitter) PositionClosed(ctx context.Context, p *models.Position) {
	e.emit(ctx, p.HolderID, models.PositionClosedEvent{Position: *p}, p, 0)
}

// PositionDeleted emits the deleted event; only the id survives the delete.
func (e *Emitter) PositionDeleted(ctx context.Context, holderID, positionID int64) {
	e.emit(ctx, holderID, models.PositionDeletedEvent{ID: positionID}, nil, positionID)
}

func (e *Emitter) emit(ctx context.Context, holderID int64, event models.Event, p *models.Position, positionID int64) {
	e.pub.Publish(holderID, event)

	if e.mirror == nil {
		return
	}
	wire := models.PositionEvent{
		EventType:  event.Type(),
		HolderID:   holderID,
		Position:   p,
		PositionID: positionID,
		Timestamp:  time.Now(),
	}
	if err := e.mirror.PublishPositionEvent(ctx, wire); err != nil {
		e.logger.Warn("failed to mirror position event",
			zap.String("event_type", string(event.Type())),
			zap.Int64("holder_id", holderID),
			zap.Error(err))
	}
}

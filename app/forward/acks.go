package forward

import (
	"errors"

	"github.com/Black-And-White-Club/pubsub-bridge/app/bridge"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrUnknownAcknowledgement is returned for ids that were never registered
// or were already settled.
var ErrUnknownAcknowledgement = errors.New("unknown or already settled acknowledgement")

// AckRegistry parks manual acknowledgement handles while their messages
// travel through a string-only transport. Each handle is settled at most once.
type AckRegistry struct {
	pending *xsync.MapOf[string, bridge.Acknowledger]
}

func NewAckRegistry() *AckRegistry {
	return &AckRegistry{pending: xsync.NewMapOf[string, bridge.Acknowledger]()}
}

// Register stores ack and returns the id to put in message metadata.
func (r *AckRegistry) Register(ack bridge.Acknowledger) string {
	id := uuid.NewString()
	r.pending.Store(id, ack)
	return id
}

// Ack settles id positively.
func (r *AckRegistry) Ack(id string) error {
	ack, ok := r.pending.LoadAndDelete(id)
	if !ok {
		return ErrUnknownAcknowledgement
	}
	ack.Ack()
	return nil
}

// Nack settles id negatively.
func (r *AckRegistry) Nack(id string) error {
	ack, ok := r.pending.LoadAndDelete(id)
	if !ok {
		return ErrUnknownAcknowledgement
	}
	ack.Nack()
	return nil
}

// Owns reports whether id was issued by r and is still unsettled.
func (r *AckRegistry) Owns(id string) bool {
	if id == "" {
		return false
	}
	_, ok := r.pending.Load(id)
	return ok
}

// Forget drops id without settling it.
func (r *AckRegistry) Forget(id string) {
	r.pending.Delete(id)
}

// Pending returns the number of unsettled handles.
func (r *AckRegistry) Pending() int {
	return r.pending.Size()
}

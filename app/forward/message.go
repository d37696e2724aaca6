package forward

import (
	"context"

	"github.com/Black-And-White-Club/pubsub-bridge/app/bridge"
	"github.com/ThreeDotsLabs/watermill/message"
)

type acknowledgerKey struct{}

// ContextWithAcknowledger attaches ack to ctx.
func ContextWithAcknowledger(ctx context.Context, ack bridge.Acknowledger) context.Context {
	return context.WithValue(ctx, acknowledgerKey{}, ack)
}

// AcknowledgerFromContext returns the manual acknowledgement handle of an
// inline-dispatched message, if any.
func AcknowledgerFromContext(ctx context.Context) (bridge.Acknowledger, bool) {
	if ctx == nil {
		return nil, false
	}
	ack, ok := ctx.Value(acknowledgerKey{}).(bridge.Acknowledger)
	return ack, ok && ack != nil
}

// ToWatermill converts msg into a watermill message. Headers become metadata
// verbatim; a manual acknowledger travels in the message context.
func ToWatermill(ctx context.Context, msg *bridge.Message) *message.Message {
	wm := message.NewMessage(msg.UUID, msg.Payload)
	for k, v := range msg.Headers {
		wm.Metadata.Set(k, v)
	}
	if msg.Acknowledger != nil {
		ctx = ContextWithAcknowledger(ctx, msg.Acknowledger)
	}
	wm.SetContext(ctx)
	return wm
}

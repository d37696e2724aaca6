// Package forward connects the bridge to watermill.
//
// Two consumers are provided. Dispatcher runs a watermill handler chain
// inline, so handler errors reach the bridge and drive its ack policy.
// PublisherConsumer hands messages to a watermill Publisher (gochannel or
// NATS JetStream) and returns once the publish succeeds; under manual
// acknowledgement the handle is parked in an AckRegistry and referenced from
// the bridge.AcknowledgementHeader metadata key. A provider attribute with the
// same name is kept under ShadowedAttributePrefix and restored by
// AckMiddleware, so handlers see attributes unchanged.
package forward

// Package bridge relays messages from an external subscriber client into an
// in-process consumer.
//
// An InboundBridge owns one subscriber session between Start and Stop. Every
// delivered RawMessage is translated into a Message, handed to the Consumer,
// and then acknowledged according to the AckMode fixed at construction:
//
//   - AckModeAuto: Ack after a successful forward, Nack before surfacing a
//     forwarding failure.
//   - AckModeManual: the bridge does not settle forwarded messages; the
//     Message carries the Acknowledger and the consumer decides.
//
// In both modes a delivery that arrives after Stop, or from an earlier
// session, is nacked and never forwarded: its handle has not reached any
// consumer, so the bridge is the only party able to return it.
//
// Delivery guarantees, redelivery and flow control stay with the client
// library behind the Connector.
package bridge

package bridge

import (
	"fmt"
	"strings"
	"time"
)

// AcknowledgementHeader is the reserved header name used to carry a manual
// acknowledgement reference across string-only boundaries such as watermill
// metadata. Within the process the handle travels in Message.Acknowledger.
// The underscore prefix keeps it apart from common provider attribute names.
const AcknowledgementHeader = "_bridge_ack_id"

// Acknowledger settles a single delivered message. Calling it more than once
// is governed by the client library that produced it.
type Acknowledger interface {
	Ack()
	Nack()
}

// SubscriptionName identifies the remote subscription a session attaches to.
type SubscriptionName struct {
	Project string
	Name    string
}

func (s SubscriptionName) String() string {
	return fmt.Sprintf("projects/%s/subscriptions/%s", s.Project, s.Name)
}

func (s SubscriptionName) validate() error {
	if strings.TrimSpace(s.Project) == "" {
		return &ConfigurationError{Field: "subscription.project", Err: errMissing}
	}
	if strings.TrimSpace(s.Name) == "" {
		return &ConfigurationError{Field: "subscription.name", Err: errMissing}
	}
	return nil
}

// RawMessage is a message as delivered by the subscriber client.
type RawMessage struct {
	ID          string
	Data        []byte
	Attributes  map[string]string
	PublishTime time.Time
	// DeliveryAttempt is zero when the provider does not track attempts.
	DeliveryAttempt int
}

// Message is the form handed to a Consumer.
type Message struct {
	UUID        string
	Payload     []byte
	Headers     map[string]string
	PublishTime time.Time

	// Acknowledger is set only under AckModeManual.
	Acknowledger Acknowledger
}

// Ack settles the message if it carries an Acknowledger. It reports whether
// an action was taken.
func (m *Message) Ack() bool {
	if m == nil || m.Acknowledger == nil {
		return false
	}
	m.Acknowledger.Ack()
	return true
}

// Nack is the negative counterpart of Ack.
func (m *Message) Nack() bool {
	if m == nil || m.Acknowledger == nil {
		return false
	}
	m.Acknowledger.Nack()
	return true
}

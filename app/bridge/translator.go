package bridge

import "github.com/google/uuid"

// Translate converts raw into a Message. Attributes are copied verbatim into
// Headers. Under AckModeManual the message carries ack; otherwise it carries
// no handle.
func Translate(raw *RawMessage, ack Acknowledger, mode AckMode) *Message {
	headers := make(map[string]string, len(raw.Attributes))
	for k, v := range raw.Attributes {
		headers[k] = v
	}

	id := raw.ID
	if id == "" {
		id = uuid.NewString()
	}

	msg := &Message{
		UUID:        id,
		Payload:     raw.Data,
		Headers:     headers,
		PublishTime: raw.PublishTime,
	}
	if mode == AckModeManual {
		msg.Acknowledger = ack
	}
	return msg
}

package bridge

import (
	"fmt"
	"strings"
)

// AckMode selects who acknowledges a delivered message.
type AckMode int

const (
	// AckModeAuto acks on successful forward and nacks on failure.
	AckModeAuto AckMode = iota
	// AckModeManual hands the Acknowledger to the consumer.
	AckModeManual
)

func (m AckMode) String() string {
	switch m {
	case AckModeAuto:
		return "auto"
	case AckModeManual:
		return "manual"
	default:
		return fmt.Sprintf("AckMode(%d)", int(m))
	}
}

// Valid reports whether m is one of the declared modes.
func (m AckMode) Valid() bool {
	return m == AckModeAuto || m == AckModeManual
}

// ParseAckMode accepts "auto", "automatic" and "manual", case-insensitive.
// An empty string selects AckModeAuto.
func ParseAckMode(s string) (AckMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "automatic":
		return AckModeAuto, nil
	case "manual":
		return AckModeManual, nil
	default:
		return AckModeAuto, fmt.Errorf("unknown ack mode %q", s)
	}
}

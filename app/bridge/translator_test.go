package bridge

import (
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		raw         *RawMessage
		mode        AckMode
		wantHeaders map[string]string
		wantHandle  bool
	}{
		{
			name:        "auto mode copies attributes",
			raw:         &RawMessage{ID: "m-1", Data: []byte("hello"), Attributes: map[string]string{"k": "v"}, PublishTime: published},
			mode:        AckModeAuto,
			wantHeaders: map[string]string{"k": "v"},
		},
		{
			name:        "manual mode carries handle",
			raw:         &RawMessage{ID: "m-2", Data: []byte("hello"), Attributes: map[string]string{"k": "v"}},
			mode:        AckModeManual,
			wantHeaders: map[string]string{"k": "v"},
			wantHandle:  true,
		},
		{
			name:        "empty payload and attributes",
			raw:         &RawMessage{ID: "m-3"},
			mode:        AckModeAuto,
			wantHeaders: map[string]string{},
		},
		{
			name:        "reserved key in attributes passes through",
			raw:         &RawMessage{ID: "m-4", Attributes: map[string]string{AcknowledgementHeader: "x"}},
			mode:        AckModeManual,
			wantHeaders: map[string]string{AcknowledgementHeader: "x"},
			wantHandle:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &FakeAcknowledger{ID: tt.raw.ID}

			msg := Translate(tt.raw, ack, tt.mode)

			require.NotNil(t, msg)
			assert.Equal(t, tt.raw.ID, msg.UUID)
			assert.Equal(t, tt.raw.Data, msg.Payload)
			assert.Equal(t, tt.raw.PublishTime, msg.PublishTime)
			if diff := cmp.Diff(tt.wantHeaders, msg.Headers); diff != "" {
				t.Errorf("headers mismatch (-want +got):\n%s", diff)
			}
			if tt.wantHandle {
				assert.Same(t, ack, msg.Acknowledger)
			} else {
				assert.Nil(t, msg.Acknowledger)
			}

			acks, nacks := ack.Counts()
			assert.Zero(t, acks, "translation must not ack")
			assert.Zero(t, nacks, "translation must not nack")
		})
	}
}

func TestTranslate_GeneratesUUIDWhenProviderIDMissing(t *testing.T) {
	msg := Translate(&RawMessage{Data: []byte("x")}, &FakeAcknowledger{}, AckModeAuto)

	_, err := uuid.Parse(msg.UUID)
	assert.NoError(t, err)
}

func TestTranslate_HeadersAreACopy(t *testing.T) {
	attrs := map[string]string{"k": "v"}
	msg := Translate(&RawMessage{ID: "m", Attributes: attrs}, &FakeAcknowledger{}, AckModeAuto)

	msg.Headers["k"] = "changed"
	assert.Equal(t, "v", attrs["k"])
}

func TestTranslate_PreservesGeneratedAttributeSets(t *testing.T) {
	faker := gofakeit.New(42)

	for i := 0; i < 200; i++ {
		attrs := make(map[string]string)
		n := faker.IntRange(0, 12)
		for j := 0; j < n; j++ {
			attrs[fmt.Sprintf("%s-%d", faker.Word(), j)] = faker.UUID()
		}
		mode := AckModeAuto
		if faker.Bool() {
			mode = AckModeManual
		}
		raw := &RawMessage{ID: faker.UUID(), Data: []byte(faker.Word()), Attributes: attrs}
		ack := &FakeAcknowledger{ID: raw.ID}

		msg := Translate(raw, ack, mode)

		if diff := cmp.Diff(attrs, msg.Headers); diff != "" {
			t.Fatalf("iteration %d: headers mismatch (-want +got):\n%s", i, diff)
		}
		if mode == AckModeManual {
			require.Same(t, ack, msg.Acknowledger)
		} else {
			require.Nil(t, msg.Acknowledger)
		}
	}
}

package forward

import (
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

type fakeAck struct {
	mu    sync.Mutex
	acks  int
	nacks int
}

func (f *fakeAck) Ack() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
}

func (f *fakeAck) Nack() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks++
}

func (f *fakeAck) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acks, f.nacks
}

// FakePublisher records published messages per topic.
type FakePublisher struct {
	PublishFunc func(topic string, msgs ...*message.Message) error

	mu        sync.Mutex
	published map[string][]*message.Message
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{published: map[string][]*message.Message{}}
}

func (f *FakePublisher) Publish(topic string, msgs ...*message.Message) error {
	if f.PublishFunc != nil {
		if err := f.PublishFunc(topic, msgs...); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = append(f.published[topic], msgs...)
	return nil
}

func (f *FakePublisher) Close() error { return nil }

func (f *FakePublisher) Published(topic string) []*message.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*message.Message(nil), f.published[topic]...)
}

var errPublish = errors.New("broker unavailable")

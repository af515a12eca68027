package mqtt

import "sync"

// Message is one publish recorded by FakeClient.
type Message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// FakeClient records publishes and lets tests inject inbound messages.
type FakeClient struct {
	mu       sync.Mutex
	messages []Message
	handlers map[string]Handler

	// PublishError, if set, will be returned by Publish.
	PublishError error
	Closed       bool
}

func NewFakeClient() *FakeClient {
	return &FakeClient{handlers: make(map[string]Handler)}
}

func (f *FakeClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	f.messages = append(f.messages, Message{Topic: topic, QoS: qos, Retained: retained, Payload: payload})

	return nil
}

func (f *FakeClient) Subscribe(topic string, _ byte, h Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.handlers[topic] = h
	return nil
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Closed = true
	return nil
}

// Messages returns a copy of everything published so far.
func (f *FakeClient) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// Deliver simulates an inbound message. It reports whether a handler was
// subscribed to topic.
func (f *FakeClient) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()

	if ok {
		h(topic, payload)
	}
	return ok
}

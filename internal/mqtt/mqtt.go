// Package mqtt mirrors controller and rig state to a broker and accepts
// commands from it.
package mqtt

import (
	"context"
	"encoding/json"

	"codeberg.org/mutker/brewctl/internal/controller"
	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/logger"
	"codeberg.org/mutker/brewctl/internal/rig"
)

const queueSize = 64

// Dispatcher accepts commands for one controller.
type Dispatcher interface {
	Dispatch(endpoint string, payload any) error
}

// DocumentDispatcher accepts {"controller": name, endpoint: value} commands.
type DocumentDispatcher interface {
	DispatchDocument(doc device.Document) error
}

type outbound struct {
	topic   string
	payload []byte
}

// Bridge publishes retained state snapshots and routes "/set" commands.
// Notifications are queued so a slow broker never blocks a control loop.
type Bridge struct {
	client Client
	prefix string
	log    logger.Logger
	queue  chan outbound
}

func NewBridge(client Client, prefix string) *Bridge {
	return &Bridge{
		client: client,
		prefix: prefix,
		log:    logger.New("mqtt"),
		queue:  make(chan outbound, queueSize),
	}
}

// StatusTopic is where the connection carries its online/offline state.
func StatusTopic(prefix string) string {
	return prefix + "/status"
}

func (b *Bridge) ControllerTopic(name, leaf string) string {
	return b.prefix + "/controllers/" + name + "/" + leaf
}

func (b *Bridge) RigTopic(name, leaf string) string {
	return b.prefix + "/rigs/" + name + "/" + leaf
}

func (b *Bridge) NotifyController(s controller.Snapshot) {
	b.enqueue(b.ControllerTopic(s.Name, "state"), s)
}

func (b *Bridge) NotifyRig(v rig.View) {
	b.enqueue(b.RigTopic(v.Name, "state"), v)
}

func (b *Bridge) enqueue(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.log.Warn().Err(err).Str("topic", topic).Msg("Failed to encode state")
		return
	}

	select {
	case b.queue <- outbound{topic: topic, payload: payload}:
	default:
		b.log.Warn().Str("topic", topic).Msg("Publish queue full, dropping state")
	}
}

// Run publishes queued state until ctx is cancelled, then closes the client.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.client.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-b.queue:
			if err := b.client.Publish(msg.topic, 0, true, msg.payload); err != nil {
				b.log.Warn().Err(err).Str("topic", msg.topic).Msg("Publish failed")
			}
		}
	}
}

// HandleController routes <prefix>/controllers/<name>/set, a JSON object of
// endpoint to value, to d in document order.
func (b *Bridge) HandleController(name string, d Dispatcher) error {
	topic := b.ControllerTopic(name, "set")

	return b.client.Subscribe(topic, 1, func(topic string, payload []byte) {
		doc, err := device.ParseDocument(payload)
		if err != nil {
			b.log.WarnWithCode(err).Str("topic", topic).Msg("Rejected command")
			return
		}

		for _, cmd := range doc {
			if err := d.Dispatch(cmd.Endpoint, cmd.Payload); err != nil {
				b.log.Warn().Err(err).Str("topic", topic).Str("endpoint", cmd.Endpoint).Msg("Command failed")
			}
		}
	})
}

// HandleRig routes <prefix>/rigs/<name>/set to d.
func (b *Bridge) HandleRig(name string, d DocumentDispatcher) error {
	topic := b.RigTopic(name, "set")

	return b.client.Subscribe(topic, 1, func(topic string, payload []byte) {
		doc, err := device.ParseDocument(payload)
		if err != nil {
			b.log.WarnWithCode(err).Str("topic", topic).Msg("Rejected command")
			return
		}
		if err := d.DispatchDocument(doc); err != nil {
			b.log.Warn().Err(err).Str("topic", topic).Msg("Command failed")
		}
	})
}

package mqtt

// Handler receives an inbound message.
type Handler func(topic string, payload []byte)

// Client is the subset of a broker connection the bridge uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, h Handler) error
	Close() error
}

package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/logger"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

type ClientConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	StatusTopic string
}

// PahoClient is a Client backed by a real broker connection. Subscriptions
// are restored after every reconnect.
type PahoClient struct {
	client paho.Client
	log    logger.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

type subscription struct {
	qos byte
	h   Handler
}

// Dial connects to the broker. The status topic carries a retained
// "online" while connected and "offline" as the last will.
func Dial(cfg ClientConfig) (*PahoClient, error) {
	errFactory := errors.New()

	c := &PahoClient{
		log:  logger.New("mqtt"),
		subs: make(map[string]subscription),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.onConnect(cfg.StatusTopic)).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.log.Warn().Err(err).Msg("Broker connection lost")
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	if cfg.StatusTopic != "" {
		opts.SetWill(cfg.StatusTopic, "offline", 1, true)
	}

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errFactory.WithData(errors.ErrTimeout, "mqtt connect to "+cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errFactory.Wrap(errors.ErrUnavailable, err)
	}

	return c, nil
}

func (c *PahoClient) onConnect(statusTopic string) paho.OnConnectHandler {
	return func(client paho.Client) {
		c.log.Info().Msg("Connected to broker")
		if statusTopic != "" {
			client.Publish(statusTopic, 1, true, "online")
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		for topic, s := range c.subs {
			client.Subscribe(topic, s.qos, wrap(s.h))
		}
	}
}

func (c *PahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	errFactory := errors.New()

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errFactory.WithData(errors.ErrTimeout, "mqtt publish "+topic)
	}
	if err := token.Error(); err != nil {
		return errFactory.Wrap(errors.ErrOperationFailed, err)
	}

	return nil
}

func (c *PahoClient) Subscribe(topic string, qos byte, h Handler) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, h: h}
	c.mu.Unlock()

	token := c.client.Subscribe(topic, qos, wrap(h))
	if !token.WaitTimeout(publishTimeout) {
		return errors.New().WithData(errors.ErrTimeout, "mqtt subscribe "+topic)
	}
	if err := token.Error(); err != nil {
		return errors.New().Wrap(errors.ErrOperationFailed, err)
	}

	return nil
}

// Close disconnects from the broker.
func (c *PahoClient) Close() error {
	c.client.Disconnect(1000)
	return nil
}

func wrap(h Handler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		h(msg.Topic(), msg.Payload())
	}
}

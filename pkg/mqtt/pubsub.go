// Package mqtt carries raw bus frames over an MQTT broker.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout    = 10 * time.Second
	maxReconnectDelay = time.Minute
	// quiesce is in milliseconds, as paho expects.
	quiesce = 250

	statusOnline  = "online"
	statusOffline = "offline"
)

var (
	ErrTimeout    = errors.New("mqtt operation timed out")
	ErrEmptyTopic = errors.New("empty topic")
	ErrEmptyID    = errors.New("empty client ID")
)

// Handler receives raw bus frames. Frames are short ASCII lines, so they are
// passed through untouched instead of being JSON encoded.
type Handler func(topic string, payload []byte) error

type PubSub interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Unsubscribe(ctx context.Context, topic string) error
	Disconnect(ctx context.Context) error
}

type Config struct {
	Address  string
	ClientID string
	Username string
	Password string
	// ChannelID scopes the retained status topic. Status is not published
	// when it is empty.
	ChannelID string
	QoS       byte
	Timeout   time.Duration
}

// StatusTopic is where a client's retained online/offline status lives.
func StatusTopic(channelID, clientID string) string {
	return fmt.Sprintf("sampler/%s/status/%s", channelID, clientID)
}

type pubsub struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

func NewPubSub(cfg Config, logger *slog.Logger) (PubSub, error) {
	if cfg.ClientID == "" {
		return nil, ErrEmptyID
	}
	logger = logger.With(slog.String("mqtt_client", cfg.ClientID))

	client := mqtt.NewClient(clientOptions(cfg, logger))
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Address, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Address, err)
	}

	return &pubsub{
		client:  client,
		qos:     cfg.QoS,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

func (ps *pubsub) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	return ps.wait(ctx, ps.client.Publish(topic, ps.qos, false, payload), "publish", topic)
}

func (ps *pubsub) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	return ps.wait(ctx, ps.client.Subscribe(topic, ps.qos, ps.deliver(handler)), "subscribe", topic)
}

func (ps *pubsub) Unsubscribe(ctx context.Context, topic string) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	return ps.wait(ctx, ps.client.Unsubscribe(topic), "unsubscribe", topic)
}

func (ps *pubsub) Disconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ps.client.Disconnect(quiesce)

	return nil
}

// wait blocks until the token completes, the timeout passes or ctx is done.
func (ps *pubsub) wait(ctx context.Context, token mqtt.Token, op, topic string) error {
	timer := time.NewTimer(ps.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%s %s: %w", op, topic, err)
		}

		return nil
	case <-timer.C:
		return fmt.Errorf("%s %s: %w", op, topic, ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ps *pubsub) deliver(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		if err := h(m.Topic(), m.Payload()); err != nil {
			ps.logger.Warn("dropped bus frame", slog.String("topic", m.Topic()), slog.Any("error", err))
		}
		m.Ack()
	}
}

func clientOptions(cfg Config, logger *slog.Logger) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Address).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetConnectTimeout(connectTimeout).
		SetMaxReconnectInterval(maxReconnectDelay)

	status := ""
	if cfg.ChannelID != "" {
		status = StatusTopic(cfg.ChannelID, cfg.ClientID)
		opts.SetWill(status, statusOffline, 1, true)
	}

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Info("connected to broker", slog.String("address", cfg.Address))
		if status != "" {
			c.Publish(status, 1, true, statusOnline)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("lost broker connection", slog.Any("error", err))
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("reconnecting to broker", slog.String("address", cfg.Address))
	})

	return opts
}

package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/absmach/sampler/pkg/mqtt"
)

const (
	cmdTopicTemplate       = "sampler/%s/bus/%02x/cmd"
	reqTopicTemplate       = "sampler/%s/bus/%02x/req"
	respTopicTemplate      = "sampler/%s/bus/%02x/resp"
	broadcastTopicTemplate = "sampler/%s/bus/all/cmd"
	respWildcardTemplate   = "sampler/%s/bus/+/resp"
)

var _ Bus = (*MQTT)(nil)

// MQTT carries bus transactions over an MQTT broker. Each node has its own
// command, request and response topic; broadcasts use a shared topic.
type MQTT struct {
	pubsub    mqtt.PubSub
	channelID string
	timeout   time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	replies map[uint8]chan []byte
}

func NewMQTT(ctx context.Context, pubsub mqtt.PubSub, channelID string, addrs []uint8, timeout time.Duration, logger *slog.Logger) (*MQTT, error) {
	b := &MQTT{
		pubsub:    pubsub,
		channelID: channelID,
		timeout:   timeout,
		logger:    logger,
		replies:   make(map[uint8]chan []byte, len(addrs)),
	}
	for _, addr := range addrs {
		b.replies[addr] = make(chan []byte, 1)
	}

	topic := fmt.Sprintf(respWildcardTemplate, channelID)
	if err := pubsub.Subscribe(ctx, topic, b.handleResponse); err != nil {
		return nil, fmt.Errorf("failed to subscribe to response topic: %w", err)
	}

	return b, nil
}

func (b *MQTT) Broadcast(ctx context.Context, frame []byte) error {
	if err := checkFrame(frame); err != nil {
		return err
	}

	return b.pubsub.Publish(ctx, fmt.Sprintf(broadcastTopicTemplate, b.channelID), frame)
}

func (b *MQTT) Write(ctx context.Context, addr uint8, frame []byte) error {
	if err := checkFrame(frame); err != nil {
		return err
	}
	if _, err := b.reply(addr); err != nil {
		return err
	}

	return b.pubsub.Publish(ctx, fmt.Sprintf(cmdTopicTemplate, b.channelID, addr), frame)
}

// Request asks one node for its observation frame. Replies carry no request
// id, so an answer to an earlier timed-out request that arrives after the
// queue is drained is returned as this one's. Such a frame holds the old
// round number and the scheduler discards it as stale.
func (b *MQTT) Request(ctx context.Context, addr uint8) ([]byte, error) {
	reply, err := b.reply(addr)
	if err != nil {
		return nil, err
	}

	// Drop a late answer to an earlier request.
	select {
	case <-reply:
	default:
	}

	if err := b.pubsub.Publish(ctx, fmt.Sprintf(reqTopicTemplate, b.channelID, addr), nil); err != nil {
		return nil, err
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case frame := <-reply:
		return frame, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: node %#02x", ErrTimeout, addr)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *MQTT) Close() error {
	return b.pubsub.Unsubscribe(context.Background(), fmt.Sprintf(respWildcardTemplate, b.channelID))
}

func (b *MQTT) reply(addr uint8) (chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.replies[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %#02x", ErrUnknownNode, addr)
	}

	return ch, nil
}

func (b *MQTT) handleResponse(topic string, payload []byte) error {
	addr, err := addrFromTopic(topic)
	if err != nil {
		return err
	}
	ch, err := b.reply(addr)
	if err != nil {
		return err
	}

	select {
	case ch <- payload:
	default:
		b.logger.Debug("dropping unsolicited bus response", slog.String("topic", topic))
	}

	return nil
}

// addrFromTopic extracts the node address from sampler/<ch>/bus/<addr>/resp.
func addrFromTopic(topic string) (uint8, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 {
		return 0, fmt.Errorf("unexpected bus topic %q", topic)
	}
	addr, err := strconv.ParseUint(parts[3], 16, 8)
	if err != nil {
		return 0, fmt.Errorf("unexpected bus topic %q: %w", topic, err)
	}

	return uint8(addr), nil
}

// Serve binds the node at addr to the MQTT bus: command frames and read
// requests are turned into Events on events. Requests are answered with
// whatever the node puts on the reply channel within timeout.
func Serve(ctx context.Context, pubsub mqtt.PubSub, channelID string, addr uint8, events chan<- Event, timeout time.Duration, logger *slog.Logger) error {
	onCommand := func(_ string, payload []byte) error {
		select {
		case events <- Event{Kind: KindWrite, Frame: payload}:
			return nil
		default:
			return ErrBusy
		}
	}
	onRequest := func(_ string, _ []byte) error {
		reply := make(chan []byte, 1)
		select {
		case events <- Event{Kind: KindRequest, Reply: reply}:
		default:
			return ErrBusy
		}

		go func() {
			timer := time.NewTimer(timeout)
			defer timer.Stop()

			select {
			case frame := <-reply:
				topic := fmt.Sprintf(respTopicTemplate, channelID, addr)
				if err := pubsub.Publish(ctx, topic, frame); err != nil {
					logger.Warn("failed to publish bus response", slog.String("topic", topic), slog.Any("error", err))
				}
			case <-timer.C:
				logger.Warn("node did not answer bus request in time", slog.Int("address", int(addr)))
			case <-ctx.Done():
			}
		}()

		return nil
	}

	topics := []struct {
		topic   string
		handler mqtt.Handler
	}{
		{fmt.Sprintf(cmdTopicTemplate, channelID, addr), onCommand},
		{fmt.Sprintf(broadcastTopicTemplate, channelID), onCommand},
		{fmt.Sprintf(reqTopicTemplate, channelID, addr), onRequest},
	}
	for _, t := range topics {
		if err := pubsub.Subscribe(ctx, t.topic, t.handler); err != nil {
			return errors.Join(fmt.Errorf("failed to subscribe to %s", t.topic), err)
		}
	}

	return nil
}

package bus_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/absmach/sampler/pkg/bus"
	"github.com/absmach/sampler/pkg/mqtt"
	"github.com/absmach/sampler/pkg/mqtt/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const channelID = "lab"

func TestMQTTRequest(t *testing.T) {
	ps := mocks.NewPubSub(t)

	var onResponse mqtt.Handler
	ps.On("Subscribe", mock.Anything, "sampler/lab/bus/+/resp", mock.Anything).
		Run(func(args mock.Arguments) { onResponse = args.Get(2).(mqtt.Handler) }).
		Return(nil)

	b, err := bus.NewMQTT(context.Background(), ps, channelID, bus.DefaultAddresses, 50*time.Millisecond, slog.Default())
	require.NoError(t, err)

	ps.On("Publish", mock.Anything, "sampler/lab/bus/11/req", []byte(nil)).
		Run(func(mock.Arguments) {
			assert.NoError(t, onResponse("sampler/lab/bus/11/resp", []byte("O,00000002,0001,0000,00\n")))
		}).
		Return(nil).Once()

	frame, err := b.Request(context.Background(), 0x11)
	require.NoError(t, err)
	assert.Equal(t, "O,00000002,0001,0000,00\n", string(frame))

	_, err = b.Request(context.Background(), 0x42)
	assert.ErrorIs(t, err, bus.ErrUnknownNode)

	ps.On("Unsubscribe", mock.Anything, "sampler/lab/bus/+/resp").Return(nil)
	require.NoError(t, b.Close())
}

func TestMQTTRequestDropsStaleResponse(t *testing.T) {
	ps := mocks.NewPubSub(t)

	var onResponse mqtt.Handler
	ps.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { onResponse = args.Get(2).(mqtt.Handler) }).
		Return(nil)

	b, err := bus.NewMQTT(context.Background(), ps, channelID, []uint8{0x10}, 20*time.Millisecond, slog.Default())
	require.NoError(t, err)

	require.NoError(t, onResponse("sampler/lab/bus/10/resp", []byte("stale")))
	assert.ErrorIs(t, onResponse("sampler/lab/bus/20/resp", []byte("x")), bus.ErrUnknownNode)
	assert.Error(t, onResponse("sampler/lab/resp", []byte("x")))

	ps.On("Publish", mock.Anything, "sampler/lab/bus/10/req", []byte(nil)).Return(nil)

	_, err = b.Request(context.Background(), 0x10)
	assert.ErrorIs(t, err, bus.ErrTimeout)
}

func TestMQTTWriteAndBroadcast(t *testing.T) {
	ps := mocks.NewPubSub(t)
	ps.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	b, err := bus.NewMQTT(context.Background(), ps, channelID, bus.DefaultAddresses, time.Millisecond, slog.Default())
	require.NoError(t, err)

	frame := []byte("P,0.50,0,32,1\n")
	ps.On("Publish", mock.Anything, "sampler/lab/bus/all/cmd", frame).Return(nil).Once()
	ps.On("Publish", mock.Anything, "sampler/lab/bus/13/cmd", frame).Return(nil).Once()

	require.NoError(t, b.Broadcast(context.Background(), frame))
	require.NoError(t, b.Write(context.Background(), 0x13, frame))
	assert.ErrorIs(t, b.Write(context.Background(), 0x14, frame), bus.ErrUnknownNode)
}

func TestServe(t *testing.T) {
	ps := mocks.NewPubSub(t)

	handlers := map[string]mqtt.Handler{}
	ps.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { handlers[args.String(1)] = args.Get(2).(mqtt.Handler) }).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan bus.Event, 2)
	require.NoError(t, bus.Serve(ctx, ps, channelID, 0x12, events, time.Second, slog.Default()))
	require.Len(t, handlers, 3)

	require.NoError(t, handlers["sampler/lab/bus/12/cmd"]("sampler/lab/bus/12/cmd", []byte("T,1,1,0.10\n")))
	ev := <-events
	assert.Equal(t, bus.KindWrite, ev.Kind)
	assert.Equal(t, "T,1,1,0.10\n", string(ev.Frame))

	published := make(chan []byte, 1)
	ps.On("Publish", mock.Anything, "sampler/lab/bus/12/resp", mock.Anything).
		Run(func(args mock.Arguments) { published <- args.Get(2).([]byte) }).
		Return(nil).Once()

	require.NoError(t, handlers["sampler/lab/bus/12/req"]("sampler/lab/bus/12/req", nil))
	ev = <-events
	require.Equal(t, bus.KindRequest, ev.Kind)
	ev.Reply <- []byte("O,00000001,0000,0000,1A\n")
	assert.Equal(t, "O,00000001,0000,0000,1A\n", string(<-published))

	// Fill the queue: further frames are refused instead of blocking.
	broadcast := handlers["sampler/lab/bus/all/cmd"]
	require.NoError(t, broadcast("sampler/lab/bus/all/cmd", []byte("a")))
	require.NoError(t, broadcast("sampler/lab/bus/all/cmd", []byte("b")))
	assert.ErrorIs(t, broadcast("sampler/lab/bus/all/cmd", []byte("c")), bus.ErrBusy)
}

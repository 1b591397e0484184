package protocol_test

import (
	"testing"

	"github.com/absmach/sampler/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObservation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc  string
		frame string
		want  protocol.Observation
		err   error
	}{
		{
			desc:  "compact frame",
			frame: "O,00000001,000F,0000,80",
			want:  protocol.Observation{Round: 1, Bitmask: 0x000F, Loss: 0, Noise: 0x80, Format: protocol.Compact},
		},
		{
			desc:  "compact frame with newline and bus padding",
			frame: "O,0000ABCD,0003,0002,FF\n\x00\x00\x00",
			want:  protocol.Observation{Round: 0xABCD, Bitmask: 3, Loss: 2, Noise: 0xFF, Format: protocol.Compact},
		},
		{
			desc:  "lowercase hex",
			frame: "O,0000abcd,000f,0001,0a",
			want:  protocol.Observation{Round: 0xABCD, Bitmask: 0xF, Loss: 1, Noise: 0x0A, Format: protocol.Compact},
		},
		{
			desc:  "legacy frame",
			frame: "O,42,9,3,0.50,1234\r\n",
			want:  protocol.Observation{Round: 42, Bitmask: 9, Loss: 3, Noise: 128, Seed: 1234, Format: protocol.Legacy},
		},
		{
			desc:  "legacy noise above one is clamped",
			frame: "O,1,1,0,7.5,0",
			want:  protocol.Observation{Round: 1, Bitmask: 1, Noise: 255, Format: protocol.Legacy},
		},
		{desc: "empty", frame: "", err: protocol.ErrEmptyFrame},
		{desc: "only padding", frame: "\x00\x00\xff", err: protocol.ErrEmptyFrame},
		{desc: "truncated compact", frame: "O,00000001,000F,00", err: protocol.ErrDecode},
		{desc: "wrong hex width", frame: "O,1,000F,0000,80", err: protocol.ErrDecode},
		{desc: "garbage", frame: "hello world", err: protocol.ErrDecode},
		{desc: "bad hex digit", frame: "O,0000000G,000F,0000,80", err: protocol.ErrDecode},
		{desc: "legacy with bad seed", frame: "O,1,2,3,0.5,x", err: protocol.ErrDecode},
		{desc: "legacy bitmask overflow", frame: "O,1,70000,3,0.5,1", err: protocol.ErrDecode},
		{desc: "wrong prefix", frame: "X,00000001,000F,0000,80", err: protocol.ErrDecode},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			got, err := protocol.DecodeObservation([]byte(tc.frame))
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.Equal(t, protocol.Observation{}, got)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEncodeObservation(t *testing.T) {
	t.Parallel()

	o := protocol.Observation{Round: 0xFFFFFFFF, Bitmask: 0xFFFF, Loss: 0xFFFF, Noise: 0xFF}
	data, err := protocol.EncodeCompact(o)
	require.NoError(t, err)
	assert.Equal(t, "O,FFFFFFFF,FFFF,FFFF,FF\n", string(data))
	assert.LessOrEqual(t, len(data), protocol.MaxFrame)

	data, err = protocol.EncodeLegacy(protocol.Observation{Round: 7, Bitmask: 5, Loss: 1, Noise: 51, Seed: 99})
	require.NoError(t, err)
	assert.Equal(t, "O,7,5,1,0.20,99\n", string(data))

	_, err = protocol.EncodeLegacy(protocol.Observation{Round: 0xFFFFFFFF, Bitmask: 0xFFFF, Loss: 0xFFFF, Noise: 255, Seed: 0xFFFFFFFF})
	assert.ErrorIs(t, err, protocol.ErrFrameTooLong)
}

func TestEncodeDispatchesOnFormat(t *testing.T) {
	t.Parallel()

	legacy, err := protocol.Encode(protocol.Observation{Round: 3, Format: protocol.Legacy})
	require.NoError(t, err)
	got, err := protocol.DecodeObservation(legacy)
	require.NoError(t, err)
	assert.Equal(t, protocol.Legacy, got.Format)

	compact, err := protocol.Encode(protocol.Observation{Round: 3})
	require.NoError(t, err)
	got, err = protocol.DecodeObservation(compact)
	require.NoError(t, err)
	assert.Equal(t, protocol.Compact, got.Format)
}

func TestCommands(t *testing.T) {
	t.Parallel()

	trigger, err := protocol.EncodeTrigger(4294967295, 255, 1)
	require.NoError(t, err)
	assert.Equal(t, "T,4294967295,255,1.00\n", string(trigger))
	assert.LessOrEqual(t, len(trigger), protocol.MaxFrame)

	cmd, err := protocol.DecodeCommand(trigger)
	require.NoError(t, err)
	assert.Equal(t, protocol.CommandTrigger, cmd.Kind)
	assert.Equal(t, uint32(4294967295), cmd.Round)
	assert.Equal(t, uint8(255), cmd.Params.Mode)
	assert.InDelta(t, 1.0, cmd.Params.Noise, 1e-6)

	params, err := protocol.EncodeParams(protocol.Params{Noise: 0.35, Bias: -127, Coupling: 255, Mode: 255})
	require.NoError(t, err)
	assert.Equal(t, "P,0.35,-127,255,255\n", string(params))
	assert.LessOrEqual(t, len(params), protocol.MaxFrame)

	cmd, err = protocol.DecodeCommand(params)
	require.NoError(t, err)
	assert.Equal(t, protocol.CommandParams, cmd.Kind)
	assert.Equal(t, int8(-127), cmd.Params.Bias)
	assert.Equal(t, uint8(255), cmd.Params.Coupling)

	for _, bad := range []string{"", "T,1,2", "P,a,1,2,3", "Z,1,2,3", "T,-1,0,0.5"} {
		_, err := protocol.DecodeCommand([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestClampParams(t *testing.T) {
	t.Parallel()

	p := protocol.ClampParams(5, 999, 9999, 1)
	assert.Equal(t, protocol.Params{Noise: 1, Bias: 127, Coupling: 255, Mode: 1}, p)

	p = protocol.ClampParams(-0.5, -999, -3, 300)
	assert.Equal(t, protocol.Params{Noise: 0, Bias: -127, Coupling: 0, Mode: 255}, p)
}

func TestNoiseByte(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint8(0), protocol.NoiseToByte(0))
	assert.Equal(t, uint8(128), protocol.NoiseToByte(0.5))
	assert.Equal(t, uint8(255), protocol.NoiseToByte(1))
	assert.InDelta(t, 0.5, protocol.ByteToNoise(128), 0.01)
}

package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

type CommandKind uint8

const (
	CommandTrigger CommandKind = iota + 1
	CommandParams
)

// Command is a decoded orchestrator command. Trigger commands only carry
// Round, Params.Mode and Params.Noise.
type Command struct {
	Kind   CommandKind
	Round  uint32
	Params Params
}

func EncodeTrigger(round uint32, mode uint8, noise float32) ([]byte, error) {
	return frame(fmt.Sprintf("T,%d,%d,%s", round, mode, formatNoise(noise)))
}

func EncodeParams(p Params) ([]byte, error) {
	return frame(fmt.Sprintf("P,%s,%d,%d,%d", formatNoise(p.Noise), p.Bias, p.Coupling, p.Mode))
}

func DecodeCommand(data []byte) (Command, error) {
	line, err := clean(data)
	if err != nil {
		return Command{}, err
	}
	fields := strings.Split(line, ",")

	switch {
	case fields[0] == "T" && len(fields) == 4:
		round, err1 := strconv.ParseUint(fields[1], 10, 32)
		mode, err2 := strconv.ParseUint(fields[2], 10, 8)
		noise, err3 := strconv.ParseFloat(fields[3], 32)
		if err1 != nil || err2 != nil || err3 != nil {
			return Command{}, fmt.Errorf("%w: trigger %q", ErrDecode, line)
		}

		return Command{
			Kind:   CommandTrigger,
			Round:  uint32(round),
			Params: Params{Noise: ClampNoise(noise), Mode: uint8(mode)},
		}, nil
	case fields[0] == "P" && len(fields) == 5:
		noise, err1 := strconv.ParseFloat(fields[1], 32)
		bias, err2 := strconv.ParseInt(fields[2], 10, 16)
		coupling, err3 := strconv.ParseUint(fields[3], 10, 16)
		mode, err4 := strconv.ParseUint(fields[4], 10, 16)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return Command{}, fmt.Errorf("%w: params %q", ErrDecode, line)
		}

		return Command{
			Kind:   CommandParams,
			Params: ClampParams(noise, int(bias), int(coupling), int(mode)),
		}, nil
	default:
		return Command{}, fmt.Errorf("%w: command %q", ErrDecode, line)
	}
}

func EncodeCompact(o Observation) ([]byte, error) {
	return frame(fmt.Sprintf("O,%08X,%04X,%04X,%02X", o.Round, o.Bitmask, o.Loss, o.Noise))
}

func EncodeLegacy(o Observation) ([]byte, error) {
	return frame(fmt.Sprintf("O,%d,%d,%d,%s,%d", o.Round, o.Bitmask, o.Loss, formatNoise(ByteToNoise(o.Noise)), o.Seed))
}

func Encode(o Observation) ([]byte, error) {
	if o.Format == Legacy {
		return EncodeLegacy(o)
	}

	return EncodeCompact(o)
}

// DecodeObservation tries the compact form first and falls back to the
// legacy one.
func DecodeObservation(data []byte) (Observation, error) {
	line, err := clean(data)
	if err != nil {
		return Observation{}, err
	}
	if o, ok := decodeCompact(line); ok {
		return o, nil
	}
	if o, ok := decodeLegacy(line); ok {
		return o, nil
	}

	return Observation{}, fmt.Errorf("%w: observation %q", ErrDecode, line)
}

func decodeCompact(line string) (Observation, bool) {
	f := strings.Split(line, ",")
	if len(f) != 5 || f[0] != "O" || len(f[1]) != 8 || len(f[2]) != 4 || len(f[3]) != 4 || len(f[4]) != 2 {
		return Observation{}, false
	}
	round, err := strconv.ParseUint(f[1], 16, 32)
	if err != nil {
		return Observation{}, false
	}
	bitmask, err := strconv.ParseUint(f[2], 16, 16)
	if err != nil {
		return Observation{}, false
	}
	loss, err := strconv.ParseUint(f[3], 16, 16)
	if err != nil {
		return Observation{}, false
	}
	noise, err := strconv.ParseUint(f[4], 16, 8)
	if err != nil {
		return Observation{}, false
	}

	return Observation{
		Round:   uint32(round),
		Bitmask: uint16(bitmask),
		Loss:    uint16(loss),
		Noise:   uint8(noise),
		Format:  Compact,
	}, true
}

func decodeLegacy(line string) (Observation, bool) {
	f := strings.Split(line, ",")
	if len(f) != 6 || f[0] != "O" {
		return Observation{}, false
	}
	round, err := strconv.ParseUint(f[1], 10, 32)
	if err != nil {
		return Observation{}, false
	}
	bitmask, err := strconv.ParseUint(f[2], 10, 16)
	if err != nil {
		return Observation{}, false
	}
	loss, err := strconv.ParseUint(f[3], 10, 16)
	if err != nil {
		return Observation{}, false
	}
	noise, err := strconv.ParseFloat(f[4], 32)
	if err != nil {
		return Observation{}, false
	}
	seed, err := strconv.ParseUint(f[5], 10, 32)
	if err != nil {
		return Observation{}, false
	}

	return Observation{
		Round:   uint32(round),
		Bitmask: uint16(bitmask),
		Loss:    uint16(loss),
		Noise:   NoiseToByte(ClampNoise(noise)),
		Seed:    uint32(seed),
		Format:  Legacy,
	}, true
}

// clean strips line terminators and the zero/0xFF padding left by
// fixed-length bus reads.
func clean(data []byte) (string, error) {
	data = bytes.TrimRight(data, "\x00\xff\r\n ")
	data = bytes.TrimLeft(data, " ")
	if len(data) == 0 {
		return "", ErrEmptyFrame
	}

	return string(data), nil
}

func frame(s string) ([]byte, error) {
	if len(s)+1 > MaxFrame {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLong, len(s)+1)
	}

	return []byte(s + "\n"), nil
}

func formatNoise(noise float32) string {
	return strconv.FormatFloat(float64(ClampNoise(float64(noise))), 'f', 2, 32)
}

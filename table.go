package labctl

import (
	"bytes"
	"fmt"
	"strconv"
)

// Frame keys and sample widths understood by the waveform units
const (
	WaveKey   byte = 'S'
	GateKey   byte = 'A'
	ResetByte byte = 'R'

	WaveSampleWidth = 2
	GateSampleWidth = 1
)

// ParseTable parses a comma-separated list of hex tokens ("0A,1F,FF") into
// samples. Every token must be an even number of hex digits; the first bad
// token is reported as a *ParseError.
func ParseTable(raw []byte) ([]uint32, error) {
	tokens := bytes.Split(bytes.TrimSpace(raw), []byte(","))
	table := make([]uint32, 0, len(tokens))
	for i, tok := range tokens {
		tok = bytes.TrimSpace(tok)
		if len(tok) == 0 || len(tok)%2 != 0 {
			return nil, &ParseError{Index: i, Token: string(tok)}
		}
		v, err := strconv.ParseUint(string(tok), 16, 32)
		if err != nil {
			return nil, &ParseError{Index: i, Token: string(tok)}
		}
		table = append(table, uint32(v))
	}
	return table, nil
}

// ParseGateTable turns a Y/N string ("YYYYNNNNYYYY") into gate values:
// 'Y' opens the gate, any other byte closes it
func ParseGateTable(raw []byte) []uint8 {
	raw = bytes.TrimSpace(raw)
	gates := make([]uint8, len(raw))
	for i, b := range raw {
		if b == 'Y' {
			gates[i] = 1
		}
	}
	return gates
}

// GateShape describes the default gate pattern: closed, open, closed
type GateShape struct {
	Lead  int `mapstructure:"lead"`
	High  int `mapstructure:"high"`
	Trail int `mapstructure:"trail"`
}

// DefaultGateShape matches one galvo sweep of the default waveform tables
func DefaultGateShape() GateShape {
	return GateShape{Lead: 150, High: 2304, Trail: 100}
}

// Table expands the shape into gate values
func (g GateShape) Table() []uint8 {
	gates := make([]uint8, g.Lead+g.High+g.Trail)
	for i := g.Lead; i < g.Lead+g.High; i++ {
		gates[i] = 1
	}
	return gates
}

// EncodeTable builds an upload frame: the key byte followed by every sample
// little-endian in width bytes
func EncodeTable(key byte, table []uint32, width int) ([]byte, error) {
	if width < 1 || width > 4 {
		return nil, fmt.Errorf("%w: sample width %d", ErrInvalidArgument, width)
	}

	frame := make([]byte, 1, 1+len(table)*width)
	frame[0] = key
	for i, v := range table {
		if width < 4 && v>>(8*width) != 0 {
			return nil, fmt.Errorf("%w: sample %d (%#x) does not fit in %d bytes", ErrInvalidArgument, i, v, width)
		}
		for b := 0; b < width; b++ {
			frame = append(frame, byte(v>>(8*b)))
		}
	}
	return frame, nil
}

// DecodeTable is the inverse of EncodeTable for the sample bytes (without key)
func DecodeTable(data []byte, width int) ([]uint32, error) {
	if width < 1 || width > 4 || len(data)%width != 0 {
		return nil, fmt.Errorf("%w: %d bytes at width %d", ErrInvalidArgument, len(data), width)
	}

	table := make([]uint32, 0, len(data)/width)
	for i := 0; i < len(data); i += width {
		var v uint32
		for b := 0; b < width; b++ {
			v |= uint32(data[i+b]) << (8 * b)
		}
		table = append(table, v)
	}
	return table, nil
}

func gatesToSamples(gates []uint8) []uint32 {
	samples := make([]uint32, len(gates))
	for i, g := range gates {
		samples[i] = uint32(g)
	}
	return samples
}

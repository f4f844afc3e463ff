package labctl

import (
	"errors"
	"fmt"
	"io/fs"

	"go.bug.st/serial"
)

// portablePort adapts a go.bug.st/serial port to the Port interface
type portablePort struct {
	serial.Port
	path string
}

var _ Port = (*portablePort)(nil)

func openPortable(device string, config Config) (Port, error) {
	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	switch config.Parity {
	case ParityOdd:
		mode.Parity = serial.OddParity
	case ParityEven:
		mode.Parity = serial.EvenParity
	}
	if config.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	p, err := serial.Open(device, mode)
	if err != nil {
		var perr *serial.PortError
		if errors.Is(err, fs.ErrNotExist) || (errors.As(err, &perr) && perr.Code() == serial.PortNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to open %s: %w", device, err)
	}

	if err := p.SetReadTimeout(config.ReadTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	// No hardware handshake support in this driver; hold RTS asserted instead
	if config.FlowControl == FlowControlRTSCTS {
		_ = p.SetRTS(true)
	}

	return &portablePort{Port: p, path: device}, nil
}

func (p *portablePort) FlushInput() error {
	return p.ResetInputBuffer()
}

func (p *portablePort) String() string {
	return p.path
}

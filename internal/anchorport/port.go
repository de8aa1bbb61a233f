// Package anchorport reads telemetry lines from a UWB anchor on a serial
// port and feeds them to the ingest pipeline in small batches.
package anchorport

import (
	"bufio"
	"context"

	"go.bug.st/serial"

	"github.com/mapadevsports/uwbv2/internal/monitoring"
)

// DefaultBaudRate matches the anchor firmware's serial configuration.
const DefaultBaudRate = 115200

// Port wraps a serial connection to a UWB anchor and exposes its output as a
// channel of lines.
type Port struct {
	serial.Port
	events chan string
}

// Open opens the named serial port at the given baud rate (DefaultBaudRate
// when baud is zero).
func Open(portName string, baud int) (*Port, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}
	return NewFromPort(port), nil
}

// NewFromPort wraps an already-open serial port. Used by tests with MockPort.
func NewFromPort(p serial.Port) *Port {
	return &Port{p, make(chan string)}
}

// Events returns the channel of telemetry lines read from the anchor.
func (p *Port) Events() <-chan string {
	return p.events
}

// Monitor reads lines from the serial port and sends them to the events
// channel until the context is cancelled or the port fails. It closes the
// events channel on return.
func (p *Port) Monitor(ctx context.Context) error {
	defer p.Close()
	defer close(p.events)

	scan := bufio.NewScanner(p.Port)
	for scan.Scan() {
		line := scan.Text()
		select {
		case p.events <- line:
		case <-ctx.Done():
			return nil
		}
	}
	if err := scan.Err(); err != nil {
		monitoring.Logf("anchorport: serial read failed: %v", err)
		return err
	}
	return nil
}

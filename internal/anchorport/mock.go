package anchorport

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// MockPort implements serial.Port over a fixed byte buffer, for tests and
// dev mode replay of captured anchor output.
type MockPort struct {
	errorMessage string
	buf          []byte
}

// NewMockPort creates a MockPort that replays data.
func NewMockPort(data []byte) *MockPort {
	return &MockPort{buf: data}
}

// NewFailingMockPort creates a MockPort whose reads fail with msg.
func NewFailingMockPort(msg string) *MockPort {
	return &MockPort{errorMessage: msg}
}

func (m *MockPort) Read(p []byte) (n int, err error) {
	if m.errorMessage != "" {
		return 0, fmt.Errorf("error %q", m.errorMessage)
	}
	if len(m.buf) == 0 {
		return 0, io.EOF
	}
	n = copy(p, m.buf)
	m.buf = m.buf[n:]
	return n, nil
}

func (m *MockPort) SetMode(mode *serial.Mode) error                      { return nil }
func (m *MockPort) Write(p []byte) (n int, err error)                    { return len(p), nil }
func (m *MockPort) Drain() error                                         { return nil }
func (m *MockPort) ResetInputBuffer() error                              { return nil }
func (m *MockPort) ResetOutputBuffer() error                             { return nil }
func (m *MockPort) SetDTR(dtr bool) error                                { return nil }
func (m *MockPort) SetRTS(rts bool) error                                { return nil }
func (m *MockPort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return nil, nil }
func (m *MockPort) SetReadTimeout(t time.Duration) error                 { return nil }
func (m *MockPort) Close() error                                         { return nil }
func (m *MockPort) Break(time.Duration) error                            { return nil }

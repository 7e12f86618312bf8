// Package emitter sends encoded line-protocol records over UDP.
package emitter

import (
	"fmt"
	"io"
	"net"

	"go.uber.org/zap"

	"tlbtrace/app/metrics"
)

// Result is the outcome of a single send attempt.
type Result int

const (
	Sent Result = iota
	PartialSend
	TransportFailure
)

func (r Result) String() string {
	switch r {
	case Sent:
		return "sent"
	case PartialSend:
		return "partial_send"
	case TransportFailure:
		return "transport_failure"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Conn is a connected datagram socket.
type Conn interface {
	io.Writer
	io.Closer
}

// Emitter writes each record with exactly one send. It never retries,
// buffers or reports back pressure; failures are logged and counted.
type Emitter struct {
	conn    Conn
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(conn Conn, logger *zap.Logger, m *metrics.Metrics) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Emitter{conn: conn, logger: logger, metrics: m}
}

// Dial connects a UDP socket to addr. No packet is sent, so an unreachable
// destination shows up as send failures later, not here.
func Dial(addr string, logger *zap.Logger, m *metrics.Metrics) (*Emitter, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp %s: %w", addr, err)
	}
	return New(conn, logger, m), nil
}

func (e *Emitter) Emit(line []byte) Result {
	n, err := e.conn.Write(line)
	if err != nil {
		e.metrics.SendErrors.Inc()
		e.logger.Warn("UDP send failed", zap.Error(err))
		return TransportFailure
	}
	e.metrics.LinesSent.Inc()
	if n != len(line) {
		e.metrics.PartialSends.Inc()
		e.logger.Warn("Partial UDP send",
			zap.Int("sent", n),
			zap.Int("length", len(line)))
		return PartialSend
	}
	return Sent
}

func (e *Emitter) Close() error {
	return e.conn.Close()
}

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Handler receives decoded frames.
type Handler func(from net.Addr, m Message)

// Listener receives telemetry frames on a UDP port.
type Listener struct {
	conn   *net.UDPConn
	logger Logger
}

// Listen opens a UDP socket on port (0 picks a free port).
func Listen(port int) (*Listener, error) {
	addr := net.JoinHostPort("", strconv.Itoa(port))
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return &Listener{conn: conn, logger: noopLogger{}}, nil
}

// SetLogger sets the logger for the listener.
func (l *Listener) SetLogger(logger Logger) {
	l.logger = logger
}

// Addr returns the local address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Serve reads frames until ctx is cancelled, passing each decoded message
// to h. Undecodable frames are logged and dropped. The socket is closed on
// return.
func (l *Listener) Serve(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { l.conn.Close() })
	defer stop()
	defer l.conn.Close()

	buf := make([]byte, MaxFrameSize)
	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading frame: %w", err)
		}

		m, err := Decode(buf[:n])
		if err != nil {
			l.logger.Debug("dropping telemetry frame", "from", from.String(), "size", n, "error", err)
			continue
		}
		h(from, m)
	}
}

// Close closes the socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

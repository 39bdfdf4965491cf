package telemetry

import (
	"fmt"
	"net"
	"strconv"
	"sync"
)

// Sender transmits telemetry messages.
type Sender interface {
	Send(m Message) error
}

// Client sends frames to a fixed UDP collector.
//
// It is safe for concurrent use.
type Client struct {
	mu   sync.Mutex
	conn *net.UDPConn
	addr string
}

// Dial resolves host:port and opens a UDP socket to it.
func Dial(host string, port int) (*Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return &Client{conn: conn, addr: addr}, nil
}

// Addr returns the collector address.
func (c *Client) Addr() string {
	return c.addr
}

// Send encodes and transmits m.
func (c *Client) Send(m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("sending to %s: %w", c.addr, err)
	}
	return nil
}

// Close closes the socket. Further sends return ErrNotConnected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

package control

import (
	"bufio"
	"net"
	"time"

	xferrors "github.com/alxayo/go-xfer/internal/errors"
)

// ReadTimeout is the fixed per-read deadline applied to the control channel
// by both endpoints.
const ReadTimeout = 15 * time.Second

// Conn wraps the reliable control-channel byte stream with newline-delimited
// framing for the short ASCII/integer status messages.
type Conn struct {
	nc net.Conn
	r  *bufio.Reader
}

// New wraps an already-established net.Conn (the TCP back-channel).
func New(nc net.Conn) *Conn {
	return &Conn{nc: nc, r: bufio.NewReader(nc)}
}

// Send writes one status line to the peer.
func (c *Conn) Send(status string) error {
	_, err := c.nc.Write(append([]byte(status), '\n'))
	if err != nil {
		return xferrors.NewControlError("control.send", err)
	}
	return nil
}

// SendAck writes the numeric ack for seq.
func (c *Conn) SendAck(seq int32) error {
	return c.Send(FormatAck(seq))
}

// Receive reads one status line within ReadTimeout. A deadline exceeded is
// surfaced as a *xferrors.TimeoutError so callers treat it as "no ack yet"
// and continue their own retry budget.
func (c *Conn) Receive() (Message, error) {
	return c.ReceiveTimeout(ReadTimeout)
}

// ReceiveTimeout reads one status line within the given deadline.
func (c *Conn) ReceiveTimeout(timeout time.Duration) (Message, error) {
	if err := c.nc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Message{}, xferrors.NewControlError("control.setDeadline", err)
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return Message{}, xferrors.NewTimeoutError("control.receive", timeout, err)
		}
		return Message{}, xferrors.NewControlError("control.receive", err)
	}
	return ParseStatus(line), nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}

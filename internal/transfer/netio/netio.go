// Package netio bootstraps the two sockets a transfer needs: a UDP data
// channel and a TCP control channel, both under a bounded connect wait.
package netio

import (
	"fmt"
	"net"
	"time"

	xferrors "github.com/alxayo/go-xfer/internal/errors"
)

// ConnectTimeout bounds the initial dial/accept wait for both sockets.
const ConnectTimeout = 20 * time.Second

// DialData "connects" a UDP socket to the receiver's data-channel address so
// subsequent Write calls target it directly (sender side).
func DialData(addr string) (*net.UDPConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve data addr %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial data channel %q: %w", addr, err)
	}
	return conn, nil
}

// ListenData binds the UDP data channel on the given local address
// (receiver side). An empty host binds all interfaces.
func ListenData(addr string) (*net.UDPConn, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve data listen addr %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("bind data channel %q: %w", addr, err)
	}
	return conn, nil
}

// DialControl dials the TCP control channel within ConnectTimeout
// (sender side).
func DialControl(addr string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, ConnectTimeout)
	if err != nil {
		return nil, xferrors.NewTimeoutError("netio.dialControl", ConnectTimeout, err)
	}
	return conn, nil
}

// ListenControl binds the TCP control channel listener (receiver side).
func ListenControl(addr string) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind control channel %q: %w", addr, err)
	}
	return l, nil
}

// AcceptControl accepts one control-channel connection, bounded by
// ConnectTimeout (receiver side).
func AcceptControl(l net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.Accept()
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("accept control channel: %w", r.err)
		}
		return r.conn, nil
	case <-time.After(ConnectTimeout):
		return nil, xferrors.NewTimeoutError("netio.acceptControl", ConnectTimeout, nil)
	}
}

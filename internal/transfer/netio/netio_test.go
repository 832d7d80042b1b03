package netio

import (
	"testing"
)

func TestDataChannelRoundTrip(t *testing.T) {
	srv, err := ListenData("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen data: %v", err)
	}
	defer srv.Close()

	cli, err := DialData(srv.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial data: %v", err)
	}
	defer cli.Close()

	if _, err := cli.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 16)
	n, _, err := srv.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("unexpected payload: %q", buf[:n])
	}
}

func TestControlChannelRoundTrip(t *testing.T) {
	l, err := ListenControl("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen control: %v", err)
	}
	defer l.Close()

	dialErrCh := make(chan error, 1)
	go func() {
		conn, err := DialControl(l.Addr().String())
		if err == nil {
			conn.Close()
		}
		dialErrCh <- err
	}()

	conn, err := AcceptControl(l)
	if err != nil {
		t.Fatalf("accept control: %v", err)
	}
	defer conn.Close()

	if err := <-dialErrCh; err != nil {
		t.Fatalf("dial control: %v", err)
	}
}

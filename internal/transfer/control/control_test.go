package control

import (
	"net"
	"testing"
	"time"

	xferrors "github.com/alxayo/go-xfer/internal/errors"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want Message
	}{
		{"0", Message{Kind: KindAck, Seq: 0}},
		{"42", Message{Kind: KindAck, Seq: 42}},
		{IncorrectCRC, Message{Kind: KindIncorrectCRC}},
		{FailedDecompression, Message{Kind: KindFailedDecompression}},
		{Not, Message{Kind: KindNot}},
		{Send, Message{Kind: KindSend}},
		{NewFile, Message{Kind: KindNewFile}},
		{"sub", Message{Kind: KindPathError, PathComponent: "sub"}},
	}
	for _, tc := range cases {
		got := ParseStatus(tc.raw)
		if got != tc.want {
			t.Fatalf("ParseStatus(%q) = %+v, want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestFormatAck(t *testing.T) {
	if FormatAck(0) != "0" {
		t.Fatalf("expected ack 0")
	}
	if FormatAck(123) != "123" {
		t.Fatalf("expected ack 123")
	}
}

func TestConnSendReceive(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	receiverSide := New(a)
	senderSide := New(b)

	done := make(chan error, 1)
	go func() { done <- receiverSide.SendAck(7) }()

	msg, err := senderSide.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Kind != KindAck || msg.Seq != 7 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestConnReceiveTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	senderSide := New(b)
	_, err := senderSide.ReceiveTimeout(50 * time.Millisecond)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !xferrors.IsTimeout(err) {
		t.Fatalf("expected IsTimeout to recognize deadline, got %v", err)
	}
}

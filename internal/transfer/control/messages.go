// Package control implements the control-channel glue: short ASCII/integer
// status messages sent by the Receiver to the Sender over the reliable
// back-channel.
package control

import (
	"strconv"
	"strings"
)

// Literal status strings exchanged on the control channel.
const (
	IncorrectCRC       = "INCORRECT CRC"
	FailedDecompression = "FAILED DECOMPRESSION"
	Not                = "NOT"
	Send               = "SEND"
	NewFile            = "NEW FILE !"
)

// Kind classifies a parsed control-channel message.
type Kind int

const (
	// KindAck is a decimal integer matching a data-channel seq.
	KindAck Kind = iota
	KindIncorrectCRC
	KindFailedDecompression
	KindNot
	KindSend
	KindNewFile
	// KindPathError is any other string: treated as a path-component error.
	KindPathError
)

// Message is a parsed control-channel status.
type Message struct {
	Kind Kind
	// Seq is valid only when Kind == KindAck.
	Seq int32
	// PathComponent is valid only when Kind == KindPathError: the raw
	// string the Receiver sent, interpreted as the offending component name.
	PathComponent string
}

// ParseStatus classifies a raw control-channel string. A decimal integer is
// an ack; the literal strings above are recognized verbatim; anything else
// is a path-component error.
func ParseStatus(raw string) Message {
	s := strings.TrimSpace(raw)
	switch s {
	case IncorrectCRC:
		return Message{Kind: KindIncorrectCRC}
	case FailedDecompression:
		return Message{Kind: KindFailedDecompression}
	case Not:
		return Message{Kind: KindNot}
	case Send:
		return Message{Kind: KindSend}
	case NewFile:
		return Message{Kind: KindNewFile}
	}
	if seq, err := strconv.ParseInt(s, 10, 32); err == nil {
		return Message{Kind: KindAck, Seq: int32(seq)}
	}
	return Message{Kind: KindPathError, PathComponent: s}
}

// FormatAck renders the numeric ack for seq.
func FormatAck(seq int32) string {
	return strconv.FormatInt(int64(seq), 10)
}

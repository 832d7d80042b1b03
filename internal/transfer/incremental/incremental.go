// Package incremental implements the per-chunk diff sub-exchange that lets
// the Sender skip chunks the Receiver's existing destination file already
// holds.
package incremental

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/alxayo/go-xfer/internal/transfer/codec"
)

// Prefix marks a raw, unframed datagram as a chunk-diff query rather than a
// framed data/metadata packet.
const Prefix = "DATA_CRC:"

// FormatQuery renders the ASCII "DATA_CRC:<8-hex-digits-little-endian>"
// datagram the Sender transmits in place of a framed packet while probing
// whether the Receiver already holds this chunk's bytes.
func FormatQuery(payload []byte) []byte {
	sum := codec.HashPayload(payload)
	var le [4]byte
	binary.LittleEndian.PutUint32(le[:], sum)
	return []byte(Prefix + hex.EncodeToString(le[:]))
}

// IsQuery reports whether buf is a chunk-diff query datagram.
func IsQuery(buf []byte) bool {
	return len(buf) > len(Prefix) && string(buf[:len(Prefix)]) == Prefix
}

// ParseQuery extracts the little-endian Murmur32 value carried by a query
// datagram built with FormatQuery.
func ParseQuery(buf []byte) (uint32, error) {
	if !IsQuery(buf) {
		return 0, fmt.Errorf("incremental: not a DATA_CRC query")
	}
	raw, err := hex.DecodeString(string(buf[len(Prefix):]))
	if err != nil || len(raw) != 4 {
		return 0, fmt.Errorf("incremental: malformed DATA_CRC hex payload")
	}
	return binary.LittleEndian.Uint32(raw), nil
}

// Matches reports whether window's Murmur32 hash equals the value the
// Sender sent in its query.
func Matches(window []byte, wantSum uint32) bool {
	return codec.HashPayload(window) == wantSum
}

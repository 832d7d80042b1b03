// Package codec implements the framing and checksum layer for the data
// channel: packing metadata/data/end-of-transfer packets, and parsing +
// verifying received ones.
package codec

import (
	"encoding/binary"

	xferrors "github.com/alxayo/go-xfer/internal/errors"
)

const (
	// headerSize is the two little-endian uint32 fields (seq, next_size).
	headerSize = 8
	// trailerSize is the little-endian Murmur32 trailer.
	trailerSize = 4
	// MinPacketSize is the smallest valid framed packet: header + trailer,
	// zero-length payload.
	MinPacketSize = headerSize + trailerSize

	// SeqMetadata marks the distinguished metadata packet.
	SeqMetadata int32 = 0
	// SeqEndOfTransfer marks the unframed end-of-transfer packet.
	SeqEndOfTransfer int32 = -1

	// endPacketSize is the literal 4-byte end-of-transfer datagram: one
	// little-endian int32 field equal to SeqEndOfTransfer. It carries no
	// trailer and is never checksum-verified.
	endPacketSize = 4
)

// Packet is a parsed, checksum-verified data-channel frame.
type Packet struct {
	Seq      int32
	NextSize uint32
	Payload  []byte
}

// BuildMetadataPacket frames the seq=0 metadata packet: destination path
// followed by a trailing 4-byte compression flag, then the trailer.
func BuildMetadataPacket(destPath string, nextSizeHint uint32, compress bool) []byte {
	payload := make([]byte, len(destPath)+4)
	copy(payload, destPath)
	var flag uint32
	if compress {
		flag = 1
	}
	binary.LittleEndian.PutUint32(payload[len(destPath):], flag)
	return build(SeqMetadata, nextSizeHint, payload)
}

// BuildDataPacket frames a seq>0 data packet carrying raw or already
// compressed file bytes.
func BuildDataPacket(seq int32, nextSizeHint uint32, payload []byte) []byte {
	return build(seq, nextSizeHint, payload)
}

// BuildEndPacket frames the unverified, trailer-less end-of-transfer
// datagram.
func BuildEndPacket() []byte {
	buf := make([]byte, endPacketSize)
	binary.LittleEndian.PutUint32(buf, uint32(SeqEndOfTransfer))
	return buf
}

// IsEndPacket reports whether buf is the literal end-of-transfer datagram:
// exactly 4 bytes whose single field equals SeqEndOfTransfer. Matched by
// size and value only; no checksum is involved.
func IsEndPacket(buf []byte) bool {
	if len(buf) != endPacketSize {
		return false
	}
	return int32(binary.LittleEndian.Uint32(buf)) == SeqEndOfTransfer
}

// build packs the 8-byte header, payload, and 4-byte little-endian Murmur32
// trailer (computed with the trailer region zeroed).
func build(seq int32, nextSizeHint uint32, payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload)+trailerSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(seq))
	binary.LittleEndian.PutUint32(buf[4:8], nextSizeHint)
	copy(buf[headerSize:], payload)
	sum := checksum(buf)
	binary.LittleEndian.PutUint32(buf[len(buf)-trailerSize:], sum)
	return buf
}

// ParseAndVerify parses a framed packet and validates its trailer against a
// freshly computed Murmur32 over the packet with the trailer zeroed. It
// returns xferrors.ChecksumError on mismatch.
func ParseAndVerify(buf []byte) (Packet, error) {
	if len(buf) < MinPacketSize {
		return Packet{}, xferrors.NewChecksumError("codec.parseAndVerify", errShortPacket)
	}
	want := binary.LittleEndian.Uint32(buf[len(buf)-trailerSize:])
	got := checksum(buf)
	if want != got {
		return Packet{}, xferrors.NewChecksumError("codec.parseAndVerify", nil)
	}
	seq := int32(binary.LittleEndian.Uint32(buf[0:4]))
	nextSize := binary.LittleEndian.Uint32(buf[4:8])
	payload := buf[headerSize : len(buf)-trailerSize]
	return Packet{Seq: seq, NextSize: nextSize, Payload: payload}, nil
}

// ParseMetadataPayload splits a verified metadata packet's payload into the
// destination path and compression flag.
func ParseMetadataPayload(payload []byte) (destPath string, compress bool, err error) {
	if len(payload) < 4 {
		return "", false, errShortMetadata
	}
	destPath = string(payload[:len(payload)-4])
	flag := binary.LittleEndian.Uint32(payload[len(payload)-4:])
	return destPath, flag != 0, nil
}

var (
	errShortPacket   = shortPacketError{}
	errShortMetadata = shortMetadataError{}
)

type shortPacketError struct{}

func (shortPacketError) Error() string { return "packet shorter than minimum frame size" }

type shortMetadataError struct{}

func (shortMetadataError) Error() string { return "metadata payload shorter than flag field" }

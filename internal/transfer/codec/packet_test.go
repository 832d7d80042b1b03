package codec

import (
	"bytes"
	"testing"

	xferrors "github.com/alxayo/go-xfer/internal/errors"
)

func TestDataPacketRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		seq      int32
		nextSize uint32
		payload  []byte
	}{
		{"empty payload", 1, 8096, nil},
		{"small payload", 1, 8096, []byte("HELLO WORLD!")},
		{"max chunk payload", 42, 60000, bytes.Repeat([]byte{0xAB}, 60000)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := BuildDataPacket(tc.seq, tc.nextSize, tc.payload)
			got, err := ParseAndVerify(buf)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got.Seq != tc.seq {
				t.Fatalf("seq mismatch: want %d got %d", tc.seq, got.Seq)
			}
			if got.NextSize != tc.nextSize {
				t.Fatalf("next_size mismatch: want %d got %d", tc.nextSize, got.NextSize)
			}
			if !bytes.Equal(got.Payload, tc.payload) {
				t.Fatalf("payload mismatch")
			}
		})
	}
}

func TestMetadataPacketRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		buf := BuildMetadataPacket("data/out/file.bin", 8096, compress)
		got, err := ParseAndVerify(buf)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if got.Seq != SeqMetadata {
			t.Fatalf("expected seq=0, got %d", got.Seq)
		}
		path, flag, err := ParseMetadataPayload(got.Payload)
		if err != nil {
			t.Fatalf("parse metadata payload: %v", err)
		}
		if path != "data/out/file.bin" {
			t.Fatalf("path mismatch: %q", path)
		}
		if flag != compress {
			t.Fatalf("compress flag mismatch: want %v got %v", compress, flag)
		}
	}
}

func TestEndPacket(t *testing.T) {
	buf := BuildEndPacket()
	if len(buf) != 4 {
		t.Fatalf("expected 4-byte end packet, got %d", len(buf))
	}
	if !IsEndPacket(buf) {
		t.Fatalf("expected IsEndPacket to recognize its own output")
	}
	if IsEndPacket(BuildDataPacket(1, 8096, []byte("x"))) {
		t.Fatalf("data packet incorrectly recognized as end packet")
	}
	if IsEndPacket([]byte{0, 0, 0}) {
		t.Fatalf("short buffer incorrectly recognized as end packet")
	}
}

func TestBitFlipDetection(t *testing.T) {
	buf := BuildDataPacket(7, 8096, []byte("the quick brown fox"))
	for i := range buf {
		for bit := 0; bit < 8; bit++ {
			corrupt := make([]byte, len(buf))
			copy(corrupt, buf)
			corrupt[i] ^= 1 << bit
			if _, err := ParseAndVerify(corrupt); err == nil {
				t.Fatalf("expected checksum mismatch at byte %d bit %d", i, bit)
			} else if !xferrors.IsTransferError(err) {
				t.Fatalf("expected a transfer-layer error, got %v", err)
			}
		}
	}
}

func TestParseAndVerifyShortBuffer(t *testing.T) {
	for _, n := range []int{0, 1, 11} {
		if _, err := ParseAndVerify(make([]byte, n)); err == nil {
			t.Fatalf("expected error for %d-byte buffer", n)
		}
	}
	// exactly the minimum valid size should succeed (zero-length payload).
	buf := BuildDataPacket(1, 8096, nil)
	if len(buf) != MinPacketSize {
		t.Fatalf("expected MinPacketSize for zero payload, got %d", len(buf))
	}
	if _, err := ParseAndVerify(buf); err != nil {
		t.Fatalf("expected minimum-size packet to verify: %v", err)
	}
}

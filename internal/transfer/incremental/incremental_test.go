package incremental

import (
	"testing"

	"github.com/alxayo/go-xfer/internal/transfer/codec"
)

func TestFormatAndParseQueryRoundTrip(t *testing.T) {
	payload := []byte("some chunk of file bytes to hash")
	q := FormatQuery(payload)
	if !IsQuery(q) {
		t.Fatalf("expected IsQuery true for formatted query")
	}
	got, err := ParseQuery(q)
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	want := codec.HashPayload(payload)
	if got != want {
		t.Fatalf("hash mismatch: want %x got %x", want, got)
	}
}

func TestIsQueryRejectsFramedPacket(t *testing.T) {
	framed := codec.BuildDataPacket(1, 8096, []byte("DATA_CRC: looks similar but framed"))
	if IsQuery(framed) {
		t.Fatalf("framed packet should not be misidentified as a query")
	}
}

func TestMatches(t *testing.T) {
	window := []byte("destination file window bytes")
	sum := codec.HashPayload(window)
	if !Matches(window, sum) {
		t.Fatalf("expected matching window to report Matches=true")
	}
	if Matches([]byte("different bytes"), sum) {
		t.Fatalf("expected mismatched window to report Matches=false")
	}
}

func TestParseQueryRejectsMalformed(t *testing.T) {
	if _, err := ParseQuery([]byte("not a query")); err == nil {
		t.Fatalf("expected error for non-query input")
	}
	if _, err := ParseQuery([]byte(Prefix + "zzzz")); err == nil {
		t.Fatalf("expected error for malformed hex")
	}
}

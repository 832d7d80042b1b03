// Package compress implements the optional per-chunk DEFLATE pass:
// highest-level compression on the sender side, with oversize results
// treated as a hard failure; capped inflation on the receiver side.
package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"

	xferrors "github.com/alxayo/go-xfer/internal/errors"
)

// MaxInflatedSize caps decompressed output at 1 GiB.
const MaxInflatedSize = 1 << 30

// Compress deflates payload at best compression. If the codec errors, or
// the compressed result is larger than budget (the original chunk's
// framing+payload budget), the pass has failed and the transfer must abort
// rather than silently falling back to an uncompressed chunk.
func Compress(payload []byte, budget int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, xferrors.NewCompressionError("compress.newWriter", err)
	}
	if _, err := w.Write(payload); err != nil {
		return nil, xferrors.NewCompressionError("compress.write", err)
	}
	if err := w.Close(); err != nil {
		return nil, xferrors.NewCompressionError("compress.close", err)
	}
	if buf.Len() > budget {
		return nil, xferrors.NewCompressionError("compress.oversize", nil)
	}
	return buf.Bytes(), nil
}

// Decompress inflates payload, refusing to produce more than MaxInflatedSize
// bytes. Any inflate error, or hitting the cap before EOF, is reported as a
// DecompressionError.
func Decompress(payload []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(payload))
	defer r.Close()

	limited := io.LimitReader(r, MaxInflatedSize+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return nil, xferrors.NewDecompressionError("decompress.inflate", err)
	}
	if len(out) > MaxInflatedSize {
		return nil, xferrors.NewDecompressionError("decompress.capExceeded", nil)
	}
	return out, nil
}

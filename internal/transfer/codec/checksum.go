package codec

import "github.com/spaolacci/murmur3"

// HashPayload computes the plain MurmurHash3_x86_32 (seed 0) of data with no
// trailer region to zero. Used by the incremental subprotocol to hash a
// chunk-sized window directly, outside of any packet framing.
func HashPayload(data []byte) uint32 {
	return murmur3.Sum32WithSeed(data, 0)
}

// checksum computes the packet integrity hash: MurmurHash3_x86_32, seed 0,
// over buf with its trailing 4-byte trailer region treated as zero. buf
// must already contain the full packet (header + payload + trailer); the
// trailer bytes are zeroed in a scratch copy before hashing so callers
// never need to pre-zero them themselves.
func checksum(buf []byte) uint32 {
	if len(buf) < trailerSize {
		return murmur3.Sum32WithSeed(buf, 0)
	}
	scratch := make([]byte, len(buf))
	copy(scratch, buf)
	clearTrailer(scratch)
	return murmur3.Sum32WithSeed(scratch, 0)
}

func clearTrailer(buf []byte) {
	n := len(buf)
	for i := n - trailerSize; i < n; i++ {
		buf[i] = 0
	}
}

package ir

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 keyed hash identifying a node structurally.
type Digest [32]byte

// String returns the hex form of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 8 bytes in hex, for logs.
func (d Digest) Short() string {
	return hex.EncodeToString(d[:8])
}

// domainKey separates digests of different node families so that a name and
// a level with the same payload never collide.
type domainKey [32]byte

var (
	nameDomainKey = domainKey{
		'k', 'e', 'r', 'n', 'e', 'l', 'f', 'u', 'z', 'z', '.', 'i', 'r', '.',
		'n', 'a', 'm', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	levelDomainKey = domainKey{
		'k', 'e', 'r', 'n', 'e', 'l', 'f', 'u', 'z', 'z', '.', 'i', 'r', '.',
		'l', 'e', 'v', 'e', 'l', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	termDomainKey = domainKey{
		'k', 'e', 'r', 'n', 'e', 'l', 'f', 'u', 'z', 'z', '.', 'i', 'r', '.',
		't', 'e', 'r', 'm', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	inputDomainKey = domainKey{
		'k', 'e', 'r', 'n', 'e', 'l', 'f', 'u', 'z', 'z', '.', 'i', 'n', 'p',
		'u', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

type digestWriter struct {
	h   *blake3.Hasher
	buf [8]byte
}

func newDigestWriter(key domainKey, tag uint8) *digestWriter {
	// NewKeyed fails only on a wrong key length, which domainKey rules out.
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("ir: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	w := &digestWriter{h: h}
	w.byte(tag)
	return w
}

func (w *digestWriter) byte(b uint8) {
	w.buf[0] = b
	_, _ = w.h.Write(w.buf[:1])
}

func (w *digestWriter) u64(v uint64) {
	binary.BigEndian.PutUint64(w.buf[:], v)
	_, _ = w.h.Write(w.buf[:])
}

func (w *digestWriter) digest(d Digest) {
	_, _ = w.h.Write(d[:])
}

// bytes writes a length-prefixed byte string.
func (w *digestWriter) bytes(b []byte) {
	w.u64(uint64(len(b)))
	_, _ = w.h.Write(b)
}

func (w *digestWriter) sum() Digest {
	var d Digest
	copy(d[:], w.h.Sum(nil))
	return d
}

// SumInput computes the input-domain digest of raw bytes. Used to key
// corpus entries and replay cache records.
func SumInput(parts ...[]byte) Digest {
	w := newDigestWriter(inputDomainKey, 0)
	for _, p := range parts {
		w.bytes(p)
	}
	return w.sum()
}

// Package rng contains the randomness sources used by the TLS engine.
package rng

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"sync"
)

// ReseedInterval is the number of output bytes after which a
// CtrDrbg pulls fresh seed material from its entropy source.
const ReseedInterval = 1 << 20

// seedLen is the seed length for AES-256 in CTR mode: a key
// plus a counter block.
const seedLen = 32 + aes.BlockSize

// ErrShortSeed indicates that the entropy source returned
// less seed material than required.
var ErrShortSeed = errors.New("rng: short read from entropy source")

// NewEntropy returns the operating system entropy source.
func NewEntropy() io.Reader {
	return rand.Reader
}

// CtrDrbg is a deterministic random bit generator based on AES-256
// in counter mode. It is safe for concurrent use.
type CtrDrbg struct {
	entropy         io.Reader
	mu              sync.Mutex
	personalization []byte
	sinceReseed     int
	stream          cipher.Stream
}

// NewCtrDrbg creates a new CtrDrbg seeded from entropy. The optional
// personalization string is mixed into every seed.
func NewCtrDrbg(entropy io.Reader, personalization []byte) (*CtrDrbg, error) {
	d := &CtrDrbg{
		entropy:         entropy,
		personalization: append([]byte(nil), personalization...),
	}
	if err := d.reseed(); err != nil {
		return nil, err
	}
	return d, nil
}

// reseed must be called with mu held or before d escapes.
func (d *CtrDrbg) reseed() error {
	seed := make([]byte, seedLen)
	if _, err := io.ReadFull(d.entropy, seed); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return ErrShortSeed
		}
		return err
	}
	if len(d.personalization) > 0 {
		mac := sha256.Sum256(d.personalization)
		for i := range mac {
			seed[i] ^= mac[i]
		}
	}
	block, err := aes.NewCipher(seed[:32])
	if err != nil {
		return err
	}
	d.stream = cipher.NewCTR(block, seed[32:])
	d.sinceReseed = 0
	return nil
}

// Read fills p with pseudo random bytes.
func (d *CtrDrbg) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sinceReseed+len(p) > ReseedInterval {
		if err := d.reseed(); err != nil {
			return 0, err
		}
	}
	for i := range p {
		p[i] = 0
	}
	d.stream.XORKeyStream(p, p)
	d.sinceReseed += len(p)
	return len(p), nil
}

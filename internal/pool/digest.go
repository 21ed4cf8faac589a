package pool

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/koustreak/dbbroker/internal/errs"
)

// Digester turns a plaintext credential into the stable value a SourceKey
// holds in its place. Equal plaintexts must yield equal digests.
type Digester interface {
	Digest(plaintext string) (string, error)
}

// DigesterFunc adapts a function to Digester.
type DigesterFunc func(plaintext string) (string, error)

func (f DigesterFunc) Digest(plaintext string) (string, error) { return f(plaintext) }

// Blake2bDigester computes a keyed BLAKE2b-256 over the plaintext. The key
// keeps digests from being compared across processes.
type Blake2bDigester struct {
	key []byte
}

// NewBlake2bDigester returns a digester keyed with key, which may be empty
// and at most 64 bytes.
func NewBlake2bDigester(key []byte) (*Blake2bDigester, error) {
	if len(key) > blake2b.Size {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "digest key longer than %d bytes", blake2b.Size)
	}
	return &Blake2bDigester{key: append([]byte(nil), key...)}, nil
}

func (d *Blake2bDigester) Digest(plaintext string) (string, error) {
	h, err := blake2b.New256(d.key)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindCredentialTransform, "credential digest unavailable", err)
	}
	h.Write([]byte(plaintext))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// newProcessDigester keys a Blake2bDigester with 32 random bytes.
func newProcessDigester() *Blake2bDigester {
	key := make([]byte, 32)
	rand.Read(key) // cannot fail since Go 1.24
	d, err := NewBlake2bDigester(key)
	if err != nil {
		panic(err)
	}
	return d
}

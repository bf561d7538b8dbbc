package cryptox

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/dmitrijs2005/reportvault/internal/common"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// PepperKeySize is the length of the server pepper in bytes.
	PepperKeySize = 32

	pepperNonceSize = 24
)

// Pepper is the outer encryption layer of match records. Its key is
// provisioned separately from the database and is the same for every record.
type Pepper struct {
	key [PepperKeySize]byte
}

// NewPepper builds a pepper from raw key bytes.
func NewPepper(key []byte) (*Pepper, error) {
	if len(key) != PepperKeySize {
		return nil, fmt.Errorf("%w: pepper must be %d bytes, got %d", common.ErrConfiguration, PepperKeySize, len(key))
	}
	p := &Pepper{}
	copy(p.key[:], key)
	return p, nil
}

// NewPepperFromHex builds a pepper from its hex configuration form.
func NewPepperFromHex(s string) (*Pepper, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: pepper key is not set", common.ErrConfiguration)
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: pepper is not hex: %v", common.ErrConfiguration, err)
	}
	defer common.WipeByteArray(key)
	return NewPepper(key)
}

// Wrap seals data and prefixes the random nonce.
func (p *Pepper) Wrap(data []byte) ([]byte, error) {
	var nonce [pepperNonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], data, &nonce, &p.key), nil
}

// Unwrap reverses Wrap. Failures are reported as common.ErrDecryption.
func (p *Pepper) Unwrap(data []byte) ([]byte, error) {
	if len(data) < pepperNonceSize+secretbox.Overhead {
		return nil, common.ErrDecryption
	}
	var nonce [pepperNonceSize]byte
	copy(nonce[:], data[:pepperNonceSize])
	out, ok := secretbox.Open(nil, data[pepperNonceSize:], &nonce, &p.key)
	if !ok {
		return nil, common.ErrDecryption
	}
	return out, nil
}

// Package cryptox holds the symmetric primitives used by the record layer:
// AES-GCM sealing under a stretched key, and the secretbox pepper layer that
// wraps match records under a server-held secret.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/dmitrijs2005/reportvault/internal/common"
)

// NonceSize is the AES-GCM nonce length stored beside each ciphertext.
const NonceSize = 12

// Seal encrypts plaintext with AES-GCM under key. A fresh random nonce is
// generated per call and returned separately from the ciphertext.
//
// The key must be 16, 24 or 32 bytes long.
func Seal(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Open decrypts a ciphertext produced by Seal. Every failure, including a
// malformed key or nonce, is reported as common.ErrDecryption so callers
// cannot tell a wrong key from corrupted data.
func Open(ciphertext, nonce, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, common.ErrDecryption
	}
	if len(nonce) != aesgcm.NonceSize() {
		return nil, common.ErrDecryption
	}
	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrDecryption
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	return cipher.NewGCM(block)
}

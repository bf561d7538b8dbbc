// Package records implements the encrypted record lifecycle shared by full
// reports and match reports:
//
//	Unencrypted -> Encrypted -> DecryptedOk | DecryptFailed -> Encrypted (re-encrypt)
//
// Reports are sealed under a stretched passphrase. Match reports are sealed
// under a stretched perpetrator identifier and then wrapped by the server
// pepper, so revealing match content needs both the identifier and the pepper.
package records

import (
	"errors"

	"github.com/dmitrijs2005/reportvault/internal/common"
	"github.com/dmitrijs2005/reportvault/internal/cryptox"
	"github.com/dmitrijs2005/reportvault/internal/hashers"
	"github.com/dmitrijs2005/reportvault/internal/server/models"
)

// Sealer encrypts and decrypts records. It is stateless apart from its
// immutable registry and pepper and is safe for concurrent use.
type Sealer struct {
	hashers *hashers.Registry
	pepper  *cryptox.Pepper
}

func NewSealer(r *hashers.Registry, p *cryptox.Pepper) *Sealer {
	return &Sealer{hashers: r, pepper: p}
}

// Encrypt seals plaintext under key using a fresh salt, the default hasher
// and a fresh nonce. Previous ciphertext and metadata on rec are replaced;
// rec is left untouched on error.
func (s *Sealer) Encrypt(rec *models.EncryptedRecord, plaintext []byte, key string) error {
	encoded, err := s.hashers.Encode(key)
	if err != nil {
		return err
	}
	prefix, stretched, err := s.hashers.Default().SplitEncoded(encoded)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(stretched)

	ciphertext, nonce, err := cryptox.Seal(plaintext, stretched)
	if err != nil {
		return err
	}

	rec.Ciphertext = ciphertext
	rec.Nonce = nonce
	rec.EncodePrefix = prefix
	rec.LegacySalt = nil
	return nil
}

// Decrypt opens rec with key. Any failure to open is common.ErrDecryption;
// a prefix naming an algorithm that is not configured yields
// common.ErrUnknownAlgorithm.
//
// When the record was produced with stale parameters and the key is right,
// rec is re-encrypted in place under current defaults and rehashed is true so
// the caller can persist it.
func (s *Sealer) Decrypt(rec *models.EncryptedRecord, key string) (plaintext []byte, rehashed bool, err error) {
	plaintext, err = s.open(rec.Ciphertext, rec, key)
	if err != nil {
		return nil, false, err
	}
	if !s.hashers.MustUpdate(rec.EncodePrefix) {
		return plaintext, false, nil
	}
	// opportunistic: on failure the record keeps its old encryption
	if err := s.Encrypt(rec, plaintext, key); err != nil {
		return plaintext, false, nil
	}
	return plaintext, true, nil
}

// EncryptMatch seals plaintext under the stretched identifier and wraps the
// result with the pepper.
func (s *Sealer) EncryptMatch(rec *models.EncryptedRecord, plaintext []byte, identifier string) error {
	var inner models.EncryptedRecord
	if err := s.Encrypt(&inner, plaintext, identifier); err != nil {
		return err
	}
	wrapped, err := s.pepper.Wrap(inner.Ciphertext)
	if err != nil {
		return err
	}
	inner.Ciphertext = wrapped
	*rec = inner
	return nil
}

// GetMatch returns the match payload when identifier is the one rec was
// created with. It never returns an error: every failure means "no match".
// rec is not modified, so concurrent probes of a shared row are safe.
func (s *Sealer) GetMatch(rec *models.EncryptedRecord, identifier string) ([]byte, bool) {
	inner, err := s.pepper.Unwrap(rec.Ciphertext)
	if err != nil {
		return nil, false
	}
	plaintext, err := s.open(inner, rec, identifier)
	if err != nil {
		return nil, false
	}
	return plaintext, true
}

// NeedsRehash reports whether rec was produced with non-current parameters.
func (s *Sealer) NeedsRehash(rec *models.EncryptedRecord) bool {
	return s.hashers.MustUpdate(rec.EncodePrefix)
}

func (s *Sealer) open(ciphertext []byte, rec *models.EncryptedRecord, key string) ([]byte, error) {
	legacySalt := ""
	if rec.LegacySalt != nil {
		legacySalt = *rec.LegacySalt
	}

	encoded, hasher, err := s.hashers.Derive(key, rec.EncodePrefix, legacySalt)
	if err != nil {
		if errors.Is(err, common.ErrUnknownAlgorithm) {
			return nil, err
		}
		return nil, common.ErrDecryption
	}
	_, stretched, err := hasher.SplitEncoded(encoded)
	if err != nil {
		return nil, common.ErrDecryption
	}
	defer common.WipeByteArray(stretched)

	plaintext, err := cryptox.Open(ciphertext, rec.Nonce, stretched)
	if err != nil {
		_ = hasher.HardenRuntime(key, encoded)
		return nil, common.ErrDecryption
	}
	return plaintext, nil
}

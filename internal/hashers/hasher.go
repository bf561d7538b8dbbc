// Package hashers turns low-entropy secrets (report passphrases, perpetrator
// identifiers) into fixed-length key material through deliberately
// expensive, salted stretching.
//
// Every stretched key is described by an encode prefix of the form
//
//	<algorithm>$<params>$<salt>
//
// which is persisted next to the ciphertext so the exact derivation can be
// repeated after the platform defaults change. The full encoded form appends
// the base64 key: <prefix>$<key>. The key part is never persisted.
//
// An empty prefix is the legacy marker: records written before prefixes
// existed use a fixed PBKDF2 scheme with LegacyIterations and a salt stored
// in a separate column.
package hashers

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/reportvault/internal/common"
)

// Separator delimits the fields of an encode prefix.
const Separator = "$"

// KeyLength is the size of every stretched key in bytes.
const KeyLength = 32

// KeyHasher is the capability set shared by all stretching algorithms.
type KeyHasher interface {
	// Algorithm is the name stored as the first prefix field.
	Algorithm() string

	// Encode stretches secret with salt. iterations <= 0 selects the
	// hasher's current default cost.
	Encode(secret, salt string, iterations int) (string, error)

	// Rederive repeats the derivation recorded in prefix and returns the
	// full encoded form.
	Rederive(secret, prefix string) (string, error)

	// SplitEncoded separates persisted metadata from raw key material.
	SplitEncoded(encoded string) (prefix string, key []byte, err error)

	// Verify re-derives and compares in constant time.
	Verify(secret, encoded string) (bool, error)

	// MustUpdate reports whether current defaults differ from the
	// parameters that produced prefix.
	MustUpdate(prefix string) bool

	// HardenRuntime spends extra stretching work proportional to the gap
	// between the recorded and the current cost.
	HardenRuntime(secret, encoded string) error
}

// NewSalt returns a random salt that never contains Separator.
func NewSalt() (string, error) {
	return common.MakeRandHexString(12)
}

func checkSalt(salt string) error {
	if salt == "" {
		return fmt.Errorf("%w: empty salt", common.ErrInvalidSalt)
	}
	if strings.Contains(salt, Separator) {
		return fmt.Errorf("%w: salt contains %q", common.ErrInvalidSalt, Separator)
	}
	return nil
}

func joinEncoded(prefix string, key []byte) string {
	return prefix + Separator + base64.StdEncoding.EncodeToString(key)
}

// splitEncoded is shared by all hashers: the key is always the last field.
func splitEncoded(encoded string) (string, []byte, error) {
	i := strings.LastIndex(encoded, Separator)
	if i < 0 {
		return "", nil, fmt.Errorf("%w: missing separator", common.ErrInvalidEncoding)
	}
	key, err := base64.StdEncoding.DecodeString(encoded[i+1:])
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", common.ErrInvalidEncoding, err)
	}
	return encoded[:i], key, nil
}

// algorithmOf returns the first prefix field.
func algorithmOf(prefix string) string {
	name, _, _ := strings.Cut(prefix, Separator)
	return name
}

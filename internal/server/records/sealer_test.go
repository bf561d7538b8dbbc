package records

import (
	"crypto/sha256"
	"testing"

	"github.com/dmitrijs2005/reportvault/internal/common"
	"github.com/dmitrijs2005/reportvault/internal/cryptox"
	"github.com/dmitrijs2005/reportvault/internal/hashers"
	"github.com/dmitrijs2005/reportvault/internal/server/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

func newRegistry(t *testing.T, algorithms ...string) *hashers.Registry {
	t.Helper()
	if len(algorithms) == 0 {
		algorithms = []string{hashers.PBKDF2Algorithm, hashers.Argon2Algorithm}
	}
	r, err := hashers.NewRegistry(hashers.Config{
		Algorithms:       algorithms,
		PBKDF2Iterations: 100,
		Argon2:           hashers.Argon2Params{Variety: hashers.Argon2id, Time: 1, MemoryKiB: 64, Threads: 1},
	})
	require.NoError(t, err)
	return r
}

func newPepper(t *testing.T) *cryptox.Pepper {
	t.Helper()
	p, err := cryptox.NewPepper(common.GenerateRandByteArray(cryptox.PepperKeySize))
	require.NoError(t, err)
	return p
}

func newSealer(t *testing.T, algorithms ...string) *Sealer {
	t.Helper()
	return NewSealer(newRegistry(t, algorithms...), newPepper(t))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	s := newSealer(t)
	var rec models.EncryptedRecord

	require.NoError(t, s.Encrypt(&rec, []byte("what happened"), "correct horse"))
	assert.True(t, rec.IsEncrypted())
	assert.Contains(t, rec.EncodePrefix, hashers.PBKDF2Algorithm+"$100$")
	assert.Nil(t, rec.LegacySalt)

	got, rehashed, err := s.Decrypt(&rec, "correct horse")
	require.NoError(t, err)
	assert.False(t, rehashed)
	assert.Equal(t, []byte("what happened"), got)
}

func TestDecrypt_WrongKey(t *testing.T) {
	s := newSealer(t)
	var rec models.EncryptedRecord
	require.NoError(t, s.Encrypt(&rec, []byte("payload"), "right"))

	_, _, err := s.Decrypt(&rec, "wrong")
	assert.ErrorIs(t, err, common.ErrDecryption)
}

func TestEncrypt_ReencryptUsesFreshSalt(t *testing.T) {
	s := newSealer(t)
	var rec models.EncryptedRecord
	require.NoError(t, s.Encrypt(&rec, []byte("v1"), "key"))
	first := rec

	require.NoError(t, s.Encrypt(&rec, []byte("v2"), "key"))
	assert.NotEqual(t, first.EncodePrefix, rec.EncodePrefix)
	assert.NotEqual(t, first.Ciphertext, rec.Ciphertext)

	got, _, err := s.Decrypt(&rec, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestDecrypt_UnknownAlgorithm(t *testing.T) {
	s := newSealer(t)
	rec := models.EncryptedRecord{EncodePrefix: "bcrypt$12$salt", Ciphertext: []byte{1}, Nonce: []byte{1}}
	_, _, err := s.Decrypt(&rec, "key")
	assert.ErrorIs(t, err, common.ErrUnknownAlgorithm)
}

func TestDecrypt_MalformedPrefixIsDecryptionFailure(t *testing.T) {
	s := newSealer(t)
	rec := models.EncryptedRecord{EncodePrefix: "pbkdf2_sha256$oops$salt", Ciphertext: []byte{1}, Nonce: []byte{1}}
	_, _, err := s.Decrypt(&rec, "key")
	assert.ErrorIs(t, err, common.ErrDecryption)
}

func TestDecrypt_LegacyRecord(t *testing.T) {
	salt := "legacy-salt"
	key := pbkdf2.Key([]byte("old passphrase"), []byte(salt), hashers.LegacyIterations, hashers.KeyLength, sha256.New)
	ct, nonce, err := cryptox.Seal([]byte("legacy content"), key)
	require.NoError(t, err)

	s := newSealer(t)
	rec := models.EncryptedRecord{Ciphertext: ct, Nonce: nonce, EncodePrefix: "", LegacySalt: &salt}

	_, _, err = s.Decrypt(&models.EncryptedRecord{Ciphertext: ct, Nonce: nonce, LegacySalt: &salt}, "nope")
	assert.ErrorIs(t, err, common.ErrDecryption)

	got, rehashed, err := s.Decrypt(&rec, "old passphrase")
	require.NoError(t, err)
	assert.Equal(t, []byte("legacy content"), got)
	assert.True(t, rehashed, "legacy records are upgraded on successful decrypt")
	assert.NotEmpty(t, rec.EncodePrefix)
	assert.Nil(t, rec.LegacySalt)

	got, rehashed, err = s.Decrypt(&rec, "old passphrase")
	require.NoError(t, err)
	assert.False(t, rehashed)
	assert.Equal(t, []byte("legacy content"), got)
}

func TestDecrypt_RehashAfterDefaultChange(t *testing.T) {
	pepper := newPepper(t)
	old := NewSealer(newRegistry(t, hashers.PBKDF2Algorithm, hashers.Argon2Algorithm), pepper)
	current := NewSealer(newRegistry(t, hashers.Argon2Algorithm, hashers.PBKDF2Algorithm), pepper)

	var rec models.EncryptedRecord
	require.NoError(t, old.Encrypt(&rec, []byte("content"), "pass"))
	assert.True(t, current.NeedsRehash(&rec))

	_, _, err := current.Decrypt(&rec, "wrong")
	assert.ErrorIs(t, err, common.ErrDecryption)
	assert.Contains(t, rec.EncodePrefix, hashers.PBKDF2Algorithm, "failed decrypt must not touch the record")

	got, rehashed, err := current.Decrypt(&rec, "pass")
	require.NoError(t, err)
	assert.True(t, rehashed)
	assert.Equal(t, []byte("content"), got)
	assert.Contains(t, rec.EncodePrefix, hashers.Argon2Algorithm)
	assert.False(t, current.NeedsRehash(&rec))
}

func TestEncryptMatch_GetMatch(t *testing.T) {
	s := newSealer(t)
	var rec models.EncryptedRecord
	require.NoError(t, s.EncryptMatch(&rec, []byte("perp details"), "perp-handle"))

	got, ok := s.GetMatch(&rec, "perp-handle")
	require.True(t, ok)
	assert.Equal(t, []byte("perp details"), got)

	_, ok = s.GetMatch(&rec, "someone-else")
	assert.False(t, ok)

	// the pepper is the outer layer: a plain Decrypt cannot open it
	_, _, err := s.Decrypt(&rec, "perp-handle")
	assert.ErrorIs(t, err, common.ErrDecryption)
}

func TestGetMatch_NeedsPepper(t *testing.T) {
	registry := newRegistry(t)
	a := NewSealer(registry, newPepper(t))
	b := NewSealer(registry, newPepper(t))

	var rec models.EncryptedRecord
	require.NoError(t, a.EncryptMatch(&rec, []byte("x"), "id"))
	_, ok := b.GetMatch(&rec, "id")
	assert.False(t, ok)
}

func TestGetMatch_GarbageDegradesToNoMatch(t *testing.T) {
	s := newSealer(t)
	cases := []models.EncryptedRecord{
		{},
		{Ciphertext: []byte("short")},
		{Ciphertext: make([]byte, 64), EncodePrefix: "unknown$1$salt"},
	}
	for _, rec := range cases {
		_, ok := s.GetMatch(&rec, "id")
		assert.False(t, ok)
	}
}

func TestSealer_Properties(t *testing.T) {
	if testing.Short() {
		t.Skip("property test")
	}
	s := newSealer(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("decrypt(encrypt(p, k), k) == p", prop.ForAll(
		func(plaintext, key string) bool {
			var rec models.EncryptedRecord
			if err := s.Encrypt(&rec, []byte(plaintext), key); err != nil {
				return false
			}
			got, _, err := s.Decrypt(&rec, key)
			return err == nil && string(got) == plaintext
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("decrypt with another key fails", prop.ForAll(
		func(plaintext, k1, k2 string) bool {
			if k1 == k2 {
				return true
			}
			var rec models.EncryptedRecord
			if err := s.Encrypt(&rec, []byte(plaintext), k1); err != nil {
				return false
			}
			_, _, err := s.Decrypt(&rec, k2)
			return err == common.ErrDecryption
		},
		gen.AnyString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("get_match only for the original identifier", prop.ForAll(
		func(identifier, other string) bool {
			var rec models.EncryptedRecord
			if err := s.EncryptMatch(&rec, []byte("m"), identifier); err != nil {
				return false
			}
			_, ok := s.GetMatch(&rec, identifier)
			_, okOther := s.GetMatch(&rec, other)
			return ok && (identifier == other || !okOther)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

package hashers

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/reportvault/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2Algorithm names the iterated PBKDF2-HMAC-SHA256 scheme.
const PBKDF2Algorithm = "pbkdf2_sha256"

// PBKDF2Hasher is the iterated-hash family. Its params field is a single
// integer iteration count: pbkdf2_sha256$<iterations>$<salt>.
type PBKDF2Hasher struct {
	algorithm  string
	iterations int
}

// NewPBKDF2Hasher returns a hasher whose default cost is iterations.
func NewPBKDF2Hasher(iterations int) *PBKDF2Hasher {
	return &PBKDF2Hasher{algorithm: PBKDF2Algorithm, iterations: iterations}
}

func (h *PBKDF2Hasher) Algorithm() string { return h.algorithm }

// Iterations returns the current default iteration count.
func (h *PBKDF2Hasher) Iterations() int { return h.iterations }

func (h *PBKDF2Hasher) Encode(secret, salt string, iterations int) (string, error) {
	if err := checkSalt(salt); err != nil {
		return "", err
	}
	if iterations <= 0 {
		iterations = h.iterations
	}
	key := pbkdf2.Key([]byte(secret), []byte(salt), iterations, KeyLength, sha256.New)
	prefix := strings.Join([]string{h.algorithm, strconv.Itoa(iterations), salt}, Separator)
	return joinEncoded(prefix, key), nil
}

func (h *PBKDF2Hasher) decode(prefix string) (int, string, error) {
	parts := strings.Split(prefix, Separator)
	if len(parts) != 3 || parts[0] != h.algorithm {
		return 0, "", fmt.Errorf("%w: not a %s prefix", common.ErrInvalidEncoding, h.algorithm)
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return 0, "", fmt.Errorf("%w: bad iteration count %q", common.ErrInvalidEncoding, parts[1])
	}
	return iterations, parts[2], nil
}

func (h *PBKDF2Hasher) Rederive(secret, prefix string) (string, error) {
	iterations, salt, err := h.decode(prefix)
	if err != nil {
		return "", err
	}
	return h.Encode(secret, salt, iterations)
}

func (h *PBKDF2Hasher) SplitEncoded(encoded string) (string, []byte, error) {
	return splitEncoded(encoded)
}

func (h *PBKDF2Hasher) Verify(secret, encoded string) (bool, error) {
	return verify(h, secret, encoded)
}

func (h *PBKDF2Hasher) MustUpdate(prefix string) bool {
	iterations, _, err := h.decode(prefix)
	if err != nil {
		return true
	}
	return iterations != h.iterations
}

func (h *PBKDF2Hasher) HardenRuntime(secret, encoded string) error {
	prefix, _, err := h.SplitEncoded(encoded)
	if err != nil {
		return err
	}
	iterations, salt, err := h.decode(prefix)
	if err != nil {
		return err
	}
	if extra := h.iterations - iterations; extra > 0 {
		_ = pbkdf2.Key([]byte(secret), []byte(salt), extra, KeyLength, sha256.New)
	}
	return nil
}

func verify(h KeyHasher, secret, encoded string) (bool, error) {
	prefix, key, err := h.SplitEncoded(encoded)
	if err != nil {
		return false, err
	}
	again, err := h.Rederive(secret, prefix)
	if err != nil {
		return false, err
	}
	_, candidate, err := h.SplitEncoded(again)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

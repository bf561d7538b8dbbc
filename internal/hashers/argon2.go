package hashers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/reportvault/internal/common"
	"golang.org/x/crypto/argon2"
)

// Argon2Algorithm names the memory-hard family.
const Argon2Algorithm = "argon2"

// Supported argon2 varieties.
const (
	Argon2id = "argon2id"
	Argon2i  = "argon2i"
)

// Argon2Params are the tunable costs of the memory-hard scheme.
type Argon2Params struct {
	Variety   string
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// Argon2Hasher encodes its params as a version tag plus a comma-joined
// key=value set:
//
//	argon2$argon2id$v=19$m=102400,t=2,p=8$<salt>
type Argon2Hasher struct {
	params Argon2Params
}

func NewArgon2Hasher(p Argon2Params) (*Argon2Hasher, error) {
	if p.Variety == "" {
		p.Variety = Argon2id
	}
	if p.Variety != Argon2id && p.Variety != Argon2i {
		return nil, fmt.Errorf("%w: unsupported argon2 variety %q", common.ErrConfiguration, p.Variety)
	}
	if p.Time == 0 || p.Threads == 0 || p.MemoryKiB < 8*uint32(p.Threads) {
		return nil, fmt.Errorf("%w: invalid argon2 cost t=%d m=%d p=%d", common.ErrConfiguration, p.Time, p.MemoryKiB, p.Threads)
	}
	return &Argon2Hasher{params: p}, nil
}

func (h *Argon2Hasher) Algorithm() string { return Argon2Algorithm }

// Params returns the current default costs.
func (h *Argon2Hasher) Params() Argon2Params { return h.params }

// Encode stretches secret; a positive iterations overrides the time cost.
func (h *Argon2Hasher) Encode(secret, salt string, iterations int) (string, error) {
	p := h.params
	if iterations > 0 {
		p.Time = uint32(iterations)
	}
	return h.encode(secret, salt, p)
}

func (h *Argon2Hasher) encode(secret, salt string, p Argon2Params) (string, error) {
	if err := checkSalt(salt); err != nil {
		return "", err
	}
	key, err := argon2Derive(secret, salt, p)
	if err != nil {
		return "", err
	}
	return joinEncoded(argon2Prefix(p, salt), key), nil
}

func argon2Prefix(p Argon2Params, salt string) string {
	return strings.Join([]string{
		Argon2Algorithm,
		p.Variety,
		fmt.Sprintf("v=%d", argon2.Version),
		fmt.Sprintf("m=%d,t=%d,p=%d", p.MemoryKiB, p.Time, p.Threads),
		salt,
	}, Separator)
}

func argon2Derive(secret, salt string, p Argon2Params) ([]byte, error) {
	switch p.Variety {
	case Argon2id:
		return argon2.IDKey([]byte(secret), []byte(salt), p.Time, p.MemoryKiB, p.Threads, KeyLength), nil
	case Argon2i:
		return argon2.Key([]byte(secret), []byte(salt), p.Time, p.MemoryKiB, p.Threads, KeyLength), nil
	default:
		return nil, fmt.Errorf("%w: argon2 variety %q", common.ErrInvalidEncoding, p.Variety)
	}
}

func (h *Argon2Hasher) decode(prefix string) (Argon2Params, string, error) {
	var p Argon2Params
	parts := strings.Split(prefix, Separator)
	if len(parts) != 5 || parts[0] != Argon2Algorithm {
		return p, "", fmt.Errorf("%w: not an argon2 prefix", common.ErrInvalidEncoding)
	}
	p.Variety = parts[1]

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok || version != strconv.Itoa(argon2.Version) {
		return p, "", fmt.Errorf("%w: unsupported argon2 version %q", common.ErrInvalidEncoding, parts[2])
	}

	seen := 0
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return p, "", fmt.Errorf("%w: bad argon2 param %q", common.ErrInvalidEncoding, kv)
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return p, "", fmt.Errorf("%w: bad argon2 param %q", common.ErrInvalidEncoding, kv)
		}
		switch k {
		case "m":
			p.MemoryKiB = uint32(n)
		case "t":
			p.Time = uint32(n)
		case "p":
			if n > 255 {
				return p, "", fmt.Errorf("%w: argon2 parallelism %d", common.ErrInvalidEncoding, n)
			}
			p.Threads = uint8(n)
		default:
			return p, "", fmt.Errorf("%w: unknown argon2 param %q", common.ErrInvalidEncoding, k)
		}
		seen++
	}
	if seen != 3 || p.Time == 0 || p.Threads == 0 || p.MemoryKiB == 0 {
		return p, "", fmt.Errorf("%w: incomplete argon2 params", common.ErrInvalidEncoding)
	}
	return p, parts[4], nil
}

func (h *Argon2Hasher) Rederive(secret, prefix string) (string, error) {
	p, salt, err := h.decode(prefix)
	if err != nil {
		return "", err
	}
	return h.encode(secret, salt, p)
}

func (h *Argon2Hasher) SplitEncoded(encoded string) (string, []byte, error) {
	return splitEncoded(encoded)
}

func (h *Argon2Hasher) Verify(secret, encoded string) (bool, error) {
	return verify(h, secret, encoded)
}

func (h *Argon2Hasher) MustUpdate(prefix string) bool {
	p, _, err := h.decode(prefix)
	if err != nil {
		return true
	}
	return p != h.params
}

// HardenRuntime only compensates a lower time cost. Memory or parallelism
// differences have no proportional equivalent and are left alone.
func (h *Argon2Hasher) HardenRuntime(secret, encoded string) error {
	prefix, _, err := h.SplitEncoded(encoded)
	if err != nil {
		return err
	}
	p, salt, err := h.decode(prefix)
	if err != nil {
		return err
	}
	if p.Variety != h.params.Variety || p.MemoryKiB != h.params.MemoryKiB || p.Threads != h.params.Threads {
		return nil
	}
	if h.params.Time > p.Time {
		p.Time = h.params.Time - p.Time
		_, err = argon2Derive(secret, salt, p)
	}
	return err
}

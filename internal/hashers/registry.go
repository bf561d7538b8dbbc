package hashers

import (
	"fmt"

	"github.com/dmitrijs2005/reportvault/internal/common"
)

// Config is the immutable hasher configuration. Algorithms is ordered and
// its first entry is the default used for new encodings; the others stay
// available so older prefixes keep resolving.
type Config struct {
	Algorithms       []string
	PBKDF2Iterations int
	Argon2           Argon2Params
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		Algorithms:       []string{Argon2Algorithm, PBKDF2Algorithm},
		PBKDF2Iterations: 390000,
		Argon2: Argon2Params{
			Variety:   Argon2id,
			Time:      2,
			MemoryKiB: 102400,
			Threads:   8,
		},
	}
}

type factory func(Config) (KeyHasher, error)

// factories is the closed set of supported algorithms.
var factories = map[string]factory{
	PBKDF2Algorithm: func(c Config) (KeyHasher, error) {
		if c.PBKDF2Iterations <= 0 {
			return nil, fmt.Errorf("%w: pbkdf2 iterations must be positive", common.ErrConfiguration)
		}
		return NewPBKDF2Hasher(c.PBKDF2Iterations), nil
	},
	Argon2Algorithm: func(c Config) (KeyHasher, error) {
		h, err := NewArgon2Hasher(c.Argon2)
		if err != nil {
			return nil, err
		}
		return h, nil
	},
}

// Registry maps persisted prefixes back to the hasher that produced them.
type Registry struct {
	ordered []KeyHasher
	byName  map[string]KeyHasher
	legacy  *LegacyHasher
}

// NewRegistry builds the hashers named in cfg. A failure here is fatal at
// startup and wraps common.ErrConfiguration.
func NewRegistry(cfg Config) (*Registry, error) {
	hs := make([]KeyHasher, 0, len(cfg.Algorithms))
	for _, name := range cfg.Algorithms {
		build, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a supported algorithm", common.ErrConfiguration, name)
		}
		h, err := build(cfg)
		if err != nil {
			return nil, err
		}
		hs = append(hs, h)
	}
	return NewRegistryFromHashers(hs...)
}

// NewRegistryFromHashers registers already constructed hashers in order.
func NewRegistryFromHashers(hs ...KeyHasher) (*Registry, error) {
	if len(hs) == 0 {
		return nil, fmt.Errorf("%w: no hashers configured", common.ErrConfiguration)
	}
	r := &Registry{
		ordered: make([]KeyHasher, 0, len(hs)),
		byName:  make(map[string]KeyHasher, len(hs)),
		legacy:  NewLegacyHasher(),
	}
	for _, h := range hs {
		name := h.Algorithm()
		if name == "" {
			return nil, fmt.Errorf("%w: hasher %T does not declare an algorithm name", common.ErrConfiguration, h)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("%w: algorithm %q configured twice", common.ErrConfiguration, name)
		}
		r.ordered = append(r.ordered, h)
		r.byName[name] = h
	}
	return r, nil
}

// Default is the hasher used for new encodings.
func (r *Registry) Default() KeyHasher { return r.ordered[0] }

// Legacy is the hasher for records with an empty prefix.
func (r *Registry) Legacy() *LegacyHasher { return r.legacy }

// Algorithms lists the configured algorithm names in order.
func (r *Registry) Algorithms() []string {
	names := make([]string, len(r.ordered))
	for i, h := range r.ordered {
		names[i] = h.Algorithm()
	}
	return names
}

// Identify resolves the hasher that produced prefix. The empty prefix
// resolves to the legacy hasher.
func (r *Registry) Identify(prefix string) (KeyHasher, error) {
	if prefix == "" {
		return r.legacy, nil
	}
	name := algorithmOf(prefix)
	h, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownAlgorithm, name)
	}
	return h, nil
}

// MustUpdate is true when prefix was not produced by the default hasher
// with its current parameters.
func (r *Registry) MustUpdate(prefix string) bool {
	h, err := r.Identify(prefix)
	if err != nil {
		return true
	}
	if h.Algorithm() != r.Default().Algorithm() {
		return true
	}
	return h.MustUpdate(prefix)
}

// Derive repeats the derivation recorded by prefix and returns the full
// encoded form together with the hasher that produced it. legacySalt is only
// consulted for the empty prefix.
func (r *Registry) Derive(secret, prefix, legacySalt string) (string, KeyHasher, error) {
	if prefix == "" {
		encoded, err := r.legacy.Stretch(secret, legacySalt)
		return encoded, r.legacy, err
	}
	h, err := r.Identify(prefix)
	if err != nil {
		return "", nil, err
	}
	encoded, err := h.Rederive(secret, prefix)
	return encoded, h, err
}

// Encode stretches secret with a fresh salt under the default hasher.
func (r *Registry) Encode(secret string) (string, error) {
	salt, err := NewSalt()
	if err != nil {
		return "", err
	}
	return r.Default().Encode(secret, salt, 0)
}

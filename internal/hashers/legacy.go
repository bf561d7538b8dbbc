package hashers

// LegacyIterations is the hard-coded cost of records that carry no prefix.
const LegacyIterations = 100000

// legacyAlgorithm is internal only; it is never written to a prefix.
const legacyAlgorithm = "pbkdf2_sha256_legacy"

// LegacyHasher derives keys for records persisted before encode prefixes
// existed. The salt comes from the record's separate legacy salt column.
type LegacyHasher struct {
	PBKDF2Hasher
}

func NewLegacyHasher() *LegacyHasher {
	return &LegacyHasher{PBKDF2Hasher{algorithm: legacyAlgorithm, iterations: LegacyIterations}}
}

// Stretch returns the legacy key for secret and the record's legacy salt.
func (h *LegacyHasher) Stretch(secret, legacySalt string) (string, error) {
	return h.Encode(secret, legacySalt, LegacyIterations)
}

// MustUpdate is always true: legacy records are upgraded on first use.
func (h *LegacyHasher) MustUpdate(string) bool { return true }

// HardenRuntime is a no-op; the legacy cost is fixed.
func (h *LegacyHasher) HardenRuntime(string, string) error { return nil }

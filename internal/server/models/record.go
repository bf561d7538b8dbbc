// Package models defines server-side data models persisted in the database.
package models

// EncryptedRecord is the ciphertext part shared by reports and match
// reports. EncodePrefix always describes the derivation that produced the
// key for Ciphertext; an empty prefix means the legacy scheme keyed by
// LegacySalt.
type EncryptedRecord struct {
	Ciphertext   []byte
	Nonce        []byte
	EncodePrefix string
	LegacySalt   *string
}

// IsEncrypted reports whether the record has been sealed at least once.
func (r *EncryptedRecord) IsEncrypted() bool {
	return len(r.Ciphertext) > 0
}

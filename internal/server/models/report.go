package models

import "time"

// Report is a full incident record encrypted under the reporter's passphrase.
type Report struct {
	ID      string
	OwnerID string
	EncryptedRecord

	CreatedAt time.Time
	EditedAt  *time.Time

	// MatchFound mirrors whether any child MatchReport joined a match.
	MatchFound bool
	// SubmittedToSchool is set once the full report went to the authority.
	SubmittedToSchool *time.Time
}

// MatchReport carries a perpetrator identifier flag for a Report. Its
// payload is encrypted under the stretched identifier and then peppered.
type MatchReport struct {
	ID       string
	ReportID string
	// OwnerID is read from the parent report; it is not stored on the row.
	OwnerID string
	Contact string
	EncryptedRecord

	// Seen only ever goes from false to true.
	Seen bool
	// Identifier is plaintext only between creation and the first sweep
	// that probes the row.
	Identifier *string

	CreatedAt time.Time
}

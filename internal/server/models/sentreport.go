package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/reportvault/internal/common"
)

// SentReport is the audit record of a delivery to the receiving authority.
type SentReport struct {
	ID         int64
	Match      bool
	ToAddress  string
	StorageKey string
	SentAt     time.Time

	// ReportID is set for full deliveries.
	ReportID *string
	// MatchReportIDs lists the bundled rows of a match delivery.
	MatchReportIDs []string
}

// Discriminator is 0 for a full report and 1 for a match bundle.
func (s *SentReport) Discriminator() int {
	if s.Match {
		return common.MatchReportDiscriminator
	}
	return common.FullReportDiscriminator
}

// GeneratedID returns the human-facing identifier, e.g. "SCH-00042-1".
func (s *SentReport) GeneratedID(prefix string) string {
	return fmt.Sprintf("%s-%05d-%d", prefix, s.ID, s.Discriminator())
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentReport_GeneratedID(t *testing.T) {
	tests := []struct {
		name   string
		report SentReport
		prefix string
		want   string
	}{
		{name: "full", report: SentReport{ID: 42}, prefix: "SCH", want: "SCH-00042-0"},
		{name: "match", report: SentReport{ID: 7, Match: true}, prefix: "SCH", want: "SCH-00007-1"},
		{name: "wide id", report: SentReport{ID: 1234567}, prefix: "X", want: "X-1234567-0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.report.GeneratedID(tt.prefix))
		})
	}
}

func TestEncryptedRecord_IsEncrypted(t *testing.T) {
	var r EncryptedRecord
	assert.False(t, r.IsEncrypted())
	r.Ciphertext = []byte{1}
	assert.True(t, r.IsEncrypted())
}

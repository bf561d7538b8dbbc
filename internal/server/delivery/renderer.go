package delivery

import (
	"encoding/json"
	"time"
)

// Bundle kinds.
const (
	KindFull  = "full"
	KindMatch = "match"
)

// Item is one decrypted record inside a bundle.
type Item struct {
	RecordID  string    `json:"record_id"`
	ReportID  string    `json:"report_id"`
	Contact   string    `json:"contact,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Content   string    `json:"content"`
}

// Bundle is what the authority receives.
type Bundle struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	SentAt time.Time `json:"sent_at"`
	Items  []Item    `json:"items"`
}

// Renderer turns a bundle into a document.
type Renderer interface {
	Render(b *Bundle) (data []byte, contentType string, err error)
}

// JSONRenderer renders bundles as indented JSON documents.
type JSONRenderer struct{}

func (JSONRenderer) Render(b *Bundle) ([]byte, string, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

// Extension returns the file extension for contentType.
func Extension(contentType string) string {
	switch contentType {
	case "application/json":
		return ".json"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}

package delivery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/reportvault/internal/netx"
)

// RelayNotifier hands notifications to an HTTP mail relay as JSON. The
// relay owns templates and SMTP.
type RelayNotifier struct {
	url    string
	client *http.Client
}

func NewRelayNotifier(url string, timeout time.Duration) *RelayNotifier {
	return &RelayNotifier{url: url, client: &http.Client{Timeout: timeout}}
}

type relayAttachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

type relayMessage struct {
	Template   string            `json:"template"`
	To         []string          `json:"to"`
	Context    map[string]string `json:"context,omitempty"`
	Attachment *relayAttachment  `json:"attachment,omitempty"`
}

func (n *RelayNotifier) Send(ctx context.Context, msg Notification) error {
	body := relayMessage{Template: msg.Template, To: msg.To, Context: msg.Context}
	if a := msg.Attachment; a != nil {
		body.Attachment = &relayAttachment{Name: a.Name, ContentType: a.ContentType, Data: a.Data}
	}
	if err := netx.PostJSON(ctx, n.client, n.url, body); err != nil {
		return fmt.Errorf("relay %s: %w", msg.Template, err)
	}
	return nil
}

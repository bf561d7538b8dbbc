// Package delivery sends reports and match bundles to the receiving
// authority and notifies reporters. Email transport is an external
// collaborator reached through Notifier.
package delivery

import (
	"context"

	"github.com/dmitrijs2005/reportvault/internal/logging"
)

// Notification templates.
const (
	TemplateMatchAuthority  = "match_authority"
	TemplateMatchOwner      = "match_owner"
	TemplateReportAuthority = "report_authority"
)

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Notification is a templated message to a list of addresses.
type Notification struct {
	Template   string
	To         []string
	Context    map[string]string
	Attachment *Attachment
}

// Notifier sends notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LogNotifier records notifications in the log instead of sending them. It
// is the default transport until a mail relay is configured.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notifier")}
}

func (n *LogNotifier) Send(ctx context.Context, msg Notification) error {
	args := []any{"template", msg.Template, "recipients", len(msg.To)}
	if id, ok := msg.Context["report_id"]; ok {
		args = append(args, "report_id", id)
	}
	if msg.Attachment != nil {
		args = append(args, "attachment", msg.Attachment.Name, "attachment_bytes", len(msg.Attachment.Data))
	}
	n.logger.Info(ctx, "notification", args...)
	return nil
}

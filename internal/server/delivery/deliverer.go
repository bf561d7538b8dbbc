package delivery

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/reportvault/internal/dbx"
	"github.com/dmitrijs2005/reportvault/internal/logging"
	"github.com/dmitrijs2005/reportvault/internal/metrics"
	"github.com/dmitrijs2005/reportvault/internal/server/models"
	"github.com/dmitrijs2005/reportvault/internal/server/repositories/repomanager"
)

// Deliverer records, renders, archives and announces deliveries. Its
// methods take the caller's transaction so the SentReport row commits or
// rolls back together with the state change that caused it.
type Deliverer struct {
	repomanager repomanager.RepositoryManager
	notifier    Notifier
	renderer    Renderer
	archive     Archive
	authority   string
	prefix      string
	logger      logging.Logger
	metrics     *metrics.Registry
}

func NewDeliverer(rm repomanager.RepositoryManager, notifier Notifier, renderer Renderer, archive Archive,
	authority, prefix string, logger logging.Logger, m *metrics.Registry) *Deliverer {
	return &Deliverer{
		repomanager: rm,
		notifier:    notifier,
		renderer:    renderer,
		archive:     archive,
		authority:   authority,
		prefix:      prefix,
		logger:      logger.With("module", "delivery"),
		metrics:     m,
	}
}

// DeliverMatch sends one bundle with every member of a match group to the
// authority.
func (d *Deliverer) DeliverMatch(ctx context.Context, tx dbx.DBTX, items []Item) (*models.SentReport, error) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.RecordID
	}
	sent := &models.SentReport{Match: true, ToAddress: d.authority, MatchReportIDs: ids}

	err := d.deliver(ctx, tx, sent, KindMatch, TemplateMatchAuthority, items)
	d.metrics.RecordDelivery(KindMatch, err)
	if err != nil {
		return nil, err
	}
	return sent, nil
}

// DeliverReport sends a single full report to the authority.
func (d *Deliverer) DeliverReport(ctx context.Context, tx dbx.DBTX, item Item) (*models.SentReport, error) {
	reportID := item.ReportID
	sent := &models.SentReport{ToAddress: d.authority, ReportID: &reportID}

	err := d.deliver(ctx, tx, sent, KindFull, TemplateReportAuthority, []Item{item})
	d.metrics.RecordDelivery(KindFull, err)
	if err != nil {
		return nil, err
	}
	return sent, nil
}

// NotifyOwner tells a reporter that their match report joined a match.
func (d *Deliverer) NotifyOwner(ctx context.Context, contact, sentID string) error {
	err := d.notifier.Send(ctx, Notification{
		Template: TemplateMatchOwner,
		To:       []string{contact},
		Context:  map[string]string{"report_id": sentID},
	})
	d.metrics.RecordNotification(TemplateMatchOwner, err)
	if err != nil {
		return fmt.Errorf("notify owner: %w", err)
	}
	return nil
}

// GeneratedID formats the human-facing identifier of sent.
func (d *Deliverer) GeneratedID(sent *models.SentReport) string {
	return sent.GeneratedID(d.prefix)
}

func (d *Deliverer) deliver(ctx context.Context, tx dbx.DBTX, sent *models.SentReport, kind, template string, items []Item) error {
	repo := d.repomanager.SentReports(tx)
	if err := repo.Create(ctx, sent); err != nil {
		return err
	}
	id := d.GeneratedID(sent)

	data, contentType, err := d.renderer.Render(&Bundle{ID: id, Kind: kind, SentAt: sent.SentAt, Items: items})
	if err != nil {
		return fmt.Errorf("render %s: %w", id, err)
	}

	sent.StorageKey = StorageKey(kind, id, Extension(contentType))
	if err := d.archive.Put(ctx, sent.StorageKey, data, contentType); err != nil {
		return err
	}
	if err := repo.SetStorageKey(ctx, sent.ID, sent.StorageKey); err != nil {
		return err
	}

	err = d.notifier.Send(ctx, Notification{
		Template: template,
		To:       []string{d.authority},
		Context:  map[string]string{"report_id": id, "records": fmt.Sprint(len(items))},
		Attachment: &Attachment{
			Name:        id + Extension(contentType),
			ContentType: contentType,
			Data:        data,
		},
	})
	d.metrics.RecordNotification(template, err)
	if err != nil {
		return fmt.Errorf("notify authority: %w", err)
	}

	d.logger.Info(ctx, "delivered", "kind", kind, "report_id", id, "records", len(items))
	return nil
}

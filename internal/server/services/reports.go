// Package services contains server-side business logic. ReportService owns
// the lifecycle of encrypted reports and match submissions and hands match
// candidates to the matching engine.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/reportvault/internal/common"
	"github.com/dmitrijs2005/reportvault/internal/dbx"
	"github.com/dmitrijs2005/reportvault/internal/logging"
	"github.com/dmitrijs2005/reportvault/internal/metrics"
	"github.com/dmitrijs2005/reportvault/internal/server/config"
	"github.com/dmitrijs2005/reportvault/internal/server/delivery"
	"github.com/dmitrijs2005/reportvault/internal/server/matching"
	"github.com/dmitrijs2005/reportvault/internal/server/models"
	"github.com/dmitrijs2005/reportvault/internal/server/records"
	"github.com/dmitrijs2005/reportvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ReportService provides report operations:
// - CreateReport / UpdateReport / OpenReport / DeleteReport
// - SubmitMatch: flag a perpetrator identifier for matching
// - SubmitToAuthority: deliver a full report once
//
// Callers are expected to rate limit OpenReport and SubmitToAuthority; both
// run the key stretching on the request path.
type ReportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sealer      *records.Sealer
	engine      *matching.Engine
	deliverer   *delivery.Deliverer
	immediate   bool
	logger      logging.Logger
	metrics     *metrics.Registry
}

// NewReportService constructs a ReportService using repositories and server config.
func NewReportService(db *sql.DB, rm repomanager.RepositoryManager, sealer *records.Sealer, engine *matching.Engine,
	deliverer *delivery.Deliverer, cfg *config.Config, logger logging.Logger, m *metrics.Registry) *ReportService {
	return &ReportService{
		db:          db,
		repomanager: rm,
		sealer:      sealer,
		engine:      engine,
		deliverer:   deliverer,
		immediate:   cfg.ImmediateMatching,
		logger:      logger.With("module", "reports"),
		metrics:     m,
	}
}

// CreateReport encrypts content under passphrase and stores it.
func (s *ReportService) CreateReport(ctx context.Context, req CreateReportRequest) (*models.Report, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	report := &models.Report{ID: uuid.NewString(), OwnerID: req.OwnerID}
	if err := s.sealer.Encrypt(&report.EncryptedRecord, []byte(req.Content), req.Passphrase); err != nil {
		return nil, fmt.Errorf("encrypt report: %w", err)
	}
	if err := s.repomanager.Reports(s.db).Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// UpdateReport replaces the content of a report. The passphrase must open the
// current version; the new version gets a fresh salt and nonce.
func (s *ReportService) UpdateReport(ctx context.Context, req UpdateReportRequest) (*models.Report, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	report, err := s.ownedReport(ctx, req.ReportID, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.decrypt(report, req.Passphrase); err != nil {
		return nil, err
	}

	if err := s.sealer.Encrypt(&report.EncryptedRecord, []byte(req.Content), req.Passphrase); err != nil {
		return nil, fmt.Errorf("encrypt report: %w", err)
	}
	now := time.Now()
	report.EditedAt = &now
	if err := s.repomanager.Reports(s.db).UpdateRecord(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// OpenReport decrypts a report. A wrong passphrase yields common.ErrDecryption.
// Records with stale hasher parameters are re-encrypted and saved.
func (s *ReportService) OpenReport(ctx context.Context, reportID, ownerID, passphrase string) ([]byte, error) {
	report, err := s.ownedReport(ctx, reportID, ownerID)
	if err != nil {
		return nil, err
	}
	plaintext, rehashed, err := s.decrypt(report, passphrase)
	if err != nil {
		return nil, err
	}
	if rehashed {
		s.saveRehash(ctx, report)
	}
	return plaintext, nil
}

// DeleteReport removes a report and its match reports.
func (s *ReportService) DeleteReport(ctx context.Context, reportID, ownerID string) error {
	if err := validateReportID(reportID); err != nil {
		return err
	}
	return s.repomanager.Reports(s.db).Delete(ctx, reportID, ownerID)
}

// SubmitMatch stores a match report for an owned report and runs matching
// for it, inline in immediate mode or on the next sweep otherwise.
func (s *ReportService) SubmitMatch(ctx context.Context, req SubmitMatchRequest) (*models.MatchReport, error) {
	req.Identifier = NormalizeIdentifier(req.Identifier)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if _, err := s.ownedReport(ctx, req.ReportID, req.OwnerID); err != nil {
		return nil, err
	}

	m := &models.MatchReport{ID: uuid.NewString(), ReportID: req.ReportID, Contact: req.Contact}
	if err := s.sealer.EncryptMatch(&m.EncryptedRecord, []byte(req.Content), req.Identifier); err != nil {
		return nil, fmt.Errorf("encrypt match report: %w", err)
	}
	if !s.immediate {
		identifier := req.Identifier
		m.Identifier = &identifier
	}

	repo := s.repomanager.MatchReports(s.db)
	if err := repo.Create(ctx, m); err != nil {
		return nil, err
	}
	if !s.immediate {
		return m, nil
	}

	if _, err := s.engine.RunMatching(ctx, []matching.Candidate{{MatchReport: m, Identifier: req.Identifier}}); err != nil {
		s.logger.Warn(ctx, "immediate matching failed, deferring to sweep", "match_report_id", m.ID, "error", err.Error())
		if err := repo.SetIdentifier(ctx, m.ID, req.Identifier); err != nil {
			return nil, fmt.Errorf("defer matching: %w", err)
		}
	}
	return m, nil
}

// SubmitToAuthority delivers the decrypted report to the receiving authority
// and returns the sent report identifier. A report is delivered at most once;
// repeats yield common.ErrAlreadySubmitted.
func (s *ReportService) SubmitToAuthority(ctx context.Context, reportID, ownerID, passphrase string) (string, error) {
	report, err := s.ownedReport(ctx, reportID, ownerID)
	if err != nil {
		return "", err
	}
	if report.SubmittedToSchool != nil {
		return "", common.ErrAlreadySubmitted
	}

	plaintext, rehashed, err := s.decrypt(report, passphrase)
	if err != nil {
		return "", err
	}
	if rehashed {
		s.saveRehash(ctx, report)
	}

	var sentID string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Reports(tx).MarkSubmitted(ctx, report.ID, time.Now()); err != nil {
			return err
		}
		sent, err := s.deliverer.DeliverReport(ctx, tx, delivery.Item{
			RecordID:  report.ID,
			ReportID:  report.ID,
			CreatedAt: report.CreatedAt,
			Content:   string(plaintext),
		})
		if err != nil {
			return err
		}
		sentID = s.deliverer.GeneratedID(sent)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sentID, nil
}

// ownedReport hides reports of other owners behind common.ErrorNotFound.
func (s *ReportService) ownedReport(ctx context.Context, reportID, ownerID string) (*models.Report, error) {
	if err := validateReportID(reportID); err != nil {
		return nil, err
	}
	report, err := s.repomanager.Reports(s.db).Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.OwnerID != ownerID {
		return nil, common.ErrorNotFound
	}
	return report, nil
}

func (s *ReportService) decrypt(report *models.Report, passphrase string) ([]byte, bool, error) {
	plaintext, rehashed, err := s.sealer.Decrypt(&report.EncryptedRecord, passphrase)
	if err != nil {
		if errors.Is(err, common.ErrDecryption) {
			s.metrics.RecordDecryptFailure()
		}
		return nil, false, err
	}
	return plaintext, rehashed, nil
}

func (s *ReportService) saveRehash(ctx context.Context, report *models.Report) {
	if err := s.repomanager.Reports(s.db).UpdateRecord(ctx, report); err != nil {
		s.logger.Warn(ctx, "failed to persist rehashed report", "report_id", report.ID, "error", err.Error())
		return
	}
	s.metrics.RecordRehash("report")
}

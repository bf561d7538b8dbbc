// Package matching discovers match reports that share a perpetrator
// identifier. There is no plaintext lookup column: every stored match report
// is probed by attempting to decrypt it under each candidate identifier.
package matching

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/reportvault/internal/common"
	"github.com/dmitrijs2005/reportvault/internal/dbx"
	"github.com/dmitrijs2005/reportvault/internal/logging"
	"github.com/dmitrijs2005/reportvault/internal/metrics"
	"github.com/dmitrijs2005/reportvault/internal/server/delivery"
	"github.com/dmitrijs2005/reportvault/internal/server/models"
	"github.com/dmitrijs2005/reportvault/internal/server/records"
	"github.com/dmitrijs2005/reportvault/internal/server/repositories/repomanager"
	"golang.org/x/sync/errgroup"
)

// Candidate is a match report together with the identifier it was created
// with. The identifier comes either from the row itself (deferred sweep) or
// from memory (immediate matching).
type Candidate struct {
	MatchReport *models.MatchReport
	Identifier  string
}

// groupTxAttempts bounds how often a group transaction is rerun after losing
// a lock race with a concurrent pass. Notifications sent by a failed attempt
// are not recalled, so delivery is at least once.
const groupTxAttempts = 3

// Result summarizes one invocation of RunMatching.
type Result struct {
	Groups  int
	Matched int
	Failed  int
}

type Engine struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sealer      *records.Sealer
	deliverer   *delivery.Deliverer
	workers     int
	logger      logging.Logger
	metrics     *metrics.Registry
}

func NewEngine(db *sql.DB, rm repomanager.RepositoryManager, sealer *records.Sealer, deliverer *delivery.Deliverer,
	workers int, logger logging.Logger, m *metrics.Registry) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		db:          db,
		repomanager: rm,
		sealer:      sealer,
		deliverer:   deliverer,
		workers:     workers,
		logger:      logger.With("module", "matching"),
		metrics:     m,
	}
}

type group struct {
	index      int
	identifier string
	candidates []*models.MatchReport
}

// RunMatching runs one pass over candidates. A nil slice means every unseen
// match report that still carries an identifier; an empty slice is a no-op.
//
// Candidates are grouped by identifier and each group is processed in its
// own transaction on a bounded worker pool. A failing group leaves its rows
// unseen for the next sweep and does not stop the others; the returned error
// then wraps common.ErrMatchingPass.
func (e *Engine) RunMatching(ctx context.Context, candidates []Candidate) (*Result, error) {
	start := time.Now()
	defer func() { e.metrics.RecordSweep(time.Since(start)) }()

	if candidates == nil {
		pending, err := e.repomanager.MatchReports(e.db).ListPending(ctx)
		if err != nil {
			return nil, fmt.Errorf("load pending: %w", err)
		}
		for _, m := range pending {
			candidates = append(candidates, Candidate{MatchReport: m, Identifier: *m.Identifier})
		}
	}

	groups := groupCandidates(candidates)
	result := &Result{Groups: len(groups)}
	if len(groups) == 0 {
		return result, nil
	}

	snapshot, err := e.repomanager.MatchReports(e.db).ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load match reports: %w", err)
	}

	var (
		mu       sync.Mutex
		failures []error
	)

	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, grp := range groups {
		g.Go(func() error {
			outcome, err := e.processGroup(ctx, grp, snapshot)
			e.metrics.RecordGroup(outcome)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				failures = append(failures, fmt.Errorf("%w: group %d: %w", common.ErrMatchingPass, grp.index, err))
				e.logger.Error(ctx, "matching group failed", "group", grp.index, "candidates", len(grp.candidates), "error", err.Error())
				return nil
			}
			if outcome == metrics.OutcomeMatchedNew {
				result.Matched++
			}
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Info(ctx, "matching pass done", "groups", result.Groups, "matched", result.Matched,
		"failed", result.Failed, "rows", len(snapshot), "duration", time.Since(start).String())

	return result, errors.Join(failures...)
}

// groupCandidates merges candidates by identifier, keeping first-seen order.
func groupCandidates(candidates []Candidate) []*group {
	var groups []*group
	byIdentifier := make(map[string]*group)
	for _, c := range candidates {
		if c.MatchReport == nil || c.Identifier == "" {
			continue
		}
		grp, ok := byIdentifier[c.Identifier]
		if !ok {
			grp = &group{index: len(groups), identifier: c.Identifier}
			byIdentifier[c.Identifier] = grp
			groups = append(groups, grp)
		}
		grp.candidates = append(grp.candidates, c.MatchReport)
	}
	return groups
}

// probe decrypts every snapshot row under identifier. Candidates missing
// from the snapshot are probed directly.
func (e *Engine) probe(grp *group, snapshot []*models.MatchReport) map[string][]byte {
	matched := make(map[string][]byte)
	probed := make(map[string]struct{}, len(snapshot))
	for _, m := range snapshot {
		probed[m.ID] = struct{}{}
		if payload, ok := e.sealer.GetMatch(&m.EncryptedRecord, grp.identifier); ok {
			matched[m.ID] = payload
		}
	}
	n := len(snapshot)
	for _, c := range grp.candidates {
		if _, ok := probed[c.ID]; ok {
			continue
		}
		n++
		if payload, ok := e.sealer.GetMatch(&c.EncryptedRecord, grp.identifier); ok {
			matched[c.ID] = payload
		}
	}
	e.metrics.RecordProbes(n)
	return matched
}

func (e *Engine) processGroup(ctx context.Context, grp *group, snapshot []*models.MatchReport) (string, error) {
	matched := e.probe(grp, snapshot)

	ids := make([]string, 0, len(matched)+len(grp.candidates))
	for id := range matched {
		ids = append(ids, id)
	}
	for _, c := range grp.candidates {
		if _, ok := matched[c.ID]; !ok {
			ids = append(ids, c.ID)
		}
	}

	outcome := metrics.OutcomeNoMatch
	err := dbx.WithTxRetry(ctx, e.db, nil, groupTxAttempts, func(ctx context.Context, tx dbx.DBTX) error {
		matchRepo := e.repomanager.MatchReports(tx)

		// reload under lock: another pass may have marked rows seen meanwhile
		rows, err := matchRepo.LockByIDs(ctx, ids)
		if err != nil {
			return err
		}

		var members []*models.MatchReport
		seenOwners := make(map[string]struct{})
		newOwners := make(map[string]struct{})
		for _, m := range rows {
			if _, ok := matched[m.ID]; !ok {
				continue
			}
			members = append(members, m)
			if m.Seen {
				seenOwners[m.OwnerID] = struct{}{}
			} else {
				newOwners[m.OwnerID] = struct{}{}
			}
		}

		if isNewMatch(seenOwners, newOwners) {
			if err := e.triggerMatch(ctx, tx, members, matched); err != nil {
				return err
			}
			outcome = metrics.OutcomeMatchedNew
		} else if len(seenOwners)+len(newOwners) > 1 {
			outcome = metrics.OutcomeMatchedKnown
		}

		for _, m := range members {
			if !e.sealer.NeedsRehash(&m.EncryptedRecord) {
				continue
			}
			if err := e.sealer.EncryptMatch(&m.EncryptedRecord, matched[m.ID], grp.identifier); err != nil {
				return err
			}
			if err := matchRepo.UpdateRecord(ctx, m); err != nil {
				return err
			}
			e.metrics.RecordRehash("match")
		}

		lockedIDs := make([]string, len(rows))
		for i, m := range rows {
			lockedIDs[i] = m.ID
		}
		return matchRepo.MarkSeen(ctx, lockedIDs)
	})
	if err != nil {
		return metrics.OutcomeFailed, err
	}

	e.logger.Debug(ctx, "matching group done", "group", grp.index, "outcome", outcome, "members", len(matched))
	return outcome, nil
}

// isNewMatch requires at least two distinct owners overall and at least one
// owner the group did not already know about.
func isNewMatch(seenOwners, newOwners map[string]struct{}) bool {
	union := make(map[string]struct{}, len(seenOwners)+len(newOwners))
	for o := range seenOwners {
		union[o] = struct{}{}
	}
	for o := range newOwners {
		union[o] = struct{}{}
	}
	if len(union) < 2 {
		return false
	}
	for o := range newOwners {
		if _, ok := seenOwners[o]; !ok {
			return true
		}
	}
	return false
}

// triggerMatch flags the parent reports, sends one bundle to the authority
// and notifies every owner whose report was neither flagged nor submitted
// before this match.
func (e *Engine) triggerMatch(ctx context.Context, tx dbx.DBTX, members []*models.MatchReport, payloads map[string][]byte) error {
	reportRepo := e.repomanager.Reports(tx)

	var parentIDs []string
	seenParent := make(map[string]struct{})
	for _, m := range members {
		if _, ok := seenParent[m.ReportID]; !ok {
			seenParent[m.ReportID] = struct{}{}
			parentIDs = append(parentIDs, m.ReportID)
		}
	}

	parents, err := reportRepo.LockByIDs(ctx, parentIDs)
	if err != nil {
		return err
	}
	parentByID := make(map[string]*models.Report, len(parents))
	for _, p := range parents {
		parentByID[p.ID] = p
	}

	if err := reportRepo.SetMatchFound(ctx, parentIDs); err != nil {
		return err
	}

	items := make([]delivery.Item, len(members))
	for i, m := range members {
		items[i] = delivery.Item{
			RecordID:  m.ID,
			ReportID:  m.ReportID,
			Contact:   m.Contact,
			CreatedAt: m.CreatedAt,
			Content:   string(payloads[m.ID]),
		}
	}
	sent, err := e.deliverer.DeliverMatch(ctx, tx, items)
	if err != nil {
		return err
	}
	sentID := e.deliverer.GeneratedID(sent)

	notified := make(map[string]struct{})
	for _, m := range members {
		parent, ok := parentByID[m.ReportID]
		if !ok || parent.MatchFound || parent.SubmittedToSchool != nil {
			continue
		}
		if _, ok := notified[m.OwnerID]; ok {
			continue
		}
		if err := e.deliverer.NotifyOwner(ctx, m.Contact, sentID); err != nil {
			return err
		}
		notified[m.OwnerID] = struct{}{}
	}

	e.logger.Info(ctx, "match found", "report_id", sentID, "members", len(members), "notified", len(notified))
	return nil
}

package repomanager

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/reportvault/internal/common"
	"github.com/dmitrijs2005/reportvault/internal/dbx"
	"github.com/dmitrijs2005/reportvault/internal/server/models"
	"github.com/dmitrijs2005/reportvault/internal/server/repositories/matchreports"
	"github.com/dmitrijs2005/reportvault/internal/server/repositories/reports"
	"github.com/dmitrijs2005/reportvault/internal/server/repositories/sentreports"
)

// undoMarker is the statement the in-memory repositories execute on a
// transaction to attach an undo step to it. Only connections opened through
// OpenDB understand it.
const undoMarker = "-- reportvault:undo"

// InMemoryRepositoryManager keeps every table in process memory. It backs
// service and engine tests.
//
// Writes made through a *sql.Tx are applied at once and journaled on that
// transaction; a rollback (or a failed commit) replays the journal backwards.
// The transaction must come from a *sql.DB built by OpenDB. Writes through
// any other handle, nil included, are permanent.
type InMemoryRepositoryManager struct {
	mu         sync.Mutex
	reports    map[string]*models.Report
	matches    map[string]*models.MatchReport
	matchOrder []string
	sent       []*models.SentReport
	nextSentID int64

	undoMu   sync.Mutex
	undos    map[int64]func()
	nextUndo int64
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		reports: make(map[string]*models.Report),
		matches: make(map[string]*models.MatchReport),
		undos:   make(map[int64]func()),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Reports(db dbx.DBTX) reports.Repository {
	return memReports{m, db}
}

func (m *InMemoryRepositoryManager) MatchReports(db dbx.DBTX) matchreports.Repository {
	return memMatches{m, db}
}

func (m *InMemoryRepositoryManager) SentReports(db dbx.DBTX) sentreports.Repository {
	return memSent{m, db}
}

// Report returns a copy of the stored report, or nil.
func (m *InMemoryRepositoryManager) Report(id string) *models.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reports[id]; ok {
		return cloneReport(r)
	}
	return nil
}

// MatchReport returns a copy of the stored match report, or nil.
func (m *InMemoryRepositoryManager) MatchReport(id string) *models.MatchReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.matches[id]; ok {
		return cloneMatch(r)
	}
	return nil
}

// Deliveries returns copies of every recorded SentReport in creation order.
func (m *InMemoryRepositoryManager) Deliveries() []models.SentReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.SentReport, len(m.sent))
	for i, s := range m.sent {
		out[i] = *s
		out[i].MatchReportIDs = slices.Clone(s.MatchReportIDs)
	}
	return out
}

// apply runs change under the table lock and journals the undo step it
// returns on db. If the journal entry cannot be written the change is
// reverted and the error returned.
func (m *InMemoryRepositoryManager) apply(ctx context.Context, db dbx.DBTX, change func() (undo func(), err error)) error {
	m.mu.Lock()
	undo, err := change()
	m.mu.Unlock()
	if err != nil || undo == nil {
		return err
	}

	tx, ok := db.(*sql.Tx)
	if !ok {
		return nil
	}

	m.undoMu.Lock()
	m.nextUndo++
	id := m.nextUndo
	m.undos[id] = undo
	m.undoMu.Unlock()

	if _, err := tx.ExecContext(ctx, undoMarker, id); err != nil {
		m.settle([]int64{id}, true)
		return err
	}
	return nil
}

// settle drops the undo steps ids, running them newest first when revert is
// set.
func (m *InMemoryRepositoryManager) settle(ids []int64, revert bool) {
	m.undoMu.Lock()
	steps := make([]func(), 0, len(ids))
	for _, id := range ids {
		if f, ok := m.undos[id]; ok {
			steps = append(steps, f)
			delete(m.undos, id)
		}
	}
	m.undoMu.Unlock()

	if !revert {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(steps) - 1; i >= 0; i-- {
		steps[i]()
	}
}

// OpenDB returns a *sql.DB whose connections come from d and dsn and whose
// transactions settle this manager's journal on commit and rollback. Tests
// pass the driver of a sqlmock database created with sqlmock.NewWithDSN.
func (m *InMemoryRepositoryManager) OpenDB(d driver.Driver, dsn string) *sql.DB {
	return sql.OpenDB(journalConnector{m: m, drv: d, dsn: dsn})
}

type journalConnector struct {
	m   *InMemoryRepositoryManager
	drv driver.Driver
	dsn string
}

func (c journalConnector) Connect(context.Context) (driver.Conn, error) {
	conn, err := c.drv.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &journalConn{inner: conn, m: c.m}, nil
}

func (c journalConnector) Driver() driver.Driver { return c.drv }

// journalConn passes everything to the wrapped connection except the undo
// marker, which it records on the open transaction.
type journalConn struct {
	inner driver.Conn
	m     *InMemoryRepositoryManager
	tx    *journalTx
}

func (c *journalConn) Prepare(query string) (driver.Stmt, error) { return c.inner.Prepare(query) }

func (c *journalConn) Close() error { return c.inner.Close() }

func (c *journalConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *journalConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	var (
		tx  driver.Tx
		err error
	)
	if b, ok := c.inner.(driver.ConnBeginTx); ok {
		tx, err = b.BeginTx(ctx, opts)
	} else {
		tx, err = c.inner.Begin()
	}
	if err != nil {
		return nil, err
	}
	c.tx = &journalTx{inner: tx, conn: c}
	return c.tx, nil
}

func (c *journalConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if query == undoMarker {
		if c.tx != nil && len(args) == 1 {
			if id, ok := args[0].Value.(int64); ok {
				c.tx.undos = append(c.tx.undos, id)
			}
		}
		return driver.RowsAffected(0), nil
	}
	if e, ok := c.inner.(driver.ExecerContext); ok {
		return e.ExecContext(ctx, query, args)
	}
	return nil, driver.ErrSkip
}

type journalTx struct {
	inner driver.Tx
	conn  *journalConn
	undos []int64
}

func (t *journalTx) Commit() error {
	err := t.inner.Commit()
	t.finish(err != nil)
	return err
}

func (t *journalTx) Rollback() error {
	err := t.inner.Rollback()
	t.finish(true)
	return err
}

func (t *journalTx) finish(revert bool) {
	if t.conn.tx == t {
		t.conn.tx = nil
	}
	t.conn.m.settle(t.undos, revert)
	t.undos = nil
}

func cloneRecord(r models.EncryptedRecord) models.EncryptedRecord {
	r.Ciphertext = slices.Clone(r.Ciphertext)
	r.Nonce = slices.Clone(r.Nonce)
	r.LegacySalt = clonePtr(r.LegacySalt)
	return r
}

func cloneReport(r *models.Report) *models.Report {
	c := *r
	c.EncryptedRecord = cloneRecord(r.EncryptedRecord)
	c.EditedAt = clonePtr(r.EditedAt)
	c.SubmittedToSchool = clonePtr(r.SubmittedToSchool)
	return &c
}

func cloneMatch(r *models.MatchReport) *models.MatchReport {
	c := *r
	c.EncryptedRecord = cloneRecord(r.EncryptedRecord)
	c.Identifier = clonePtr(r.Identifier)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// restoreOrder puts ids back into the match order, keeping rows created
// after the snapshot at the end.
func (m *InMemoryRepositoryManager) restoreOrder(snapshot []string) {
	known := make(map[string]struct{}, len(snapshot))
	order := make([]string, 0, len(snapshot)+len(m.matchOrder))
	for _, id := range snapshot {
		known[id] = struct{}{}
		if _, ok := m.matches[id]; ok {
			order = append(order, id)
		}
	}
	for _, id := range m.matchOrder {
		if _, ok := known[id]; !ok {
			order = append(order, id)
		}
	}
	m.matchOrder = order
}

type memReports struct {
	m  *InMemoryRepositoryManager
	db dbx.DBTX
}

func (r memReports) Create(ctx context.Context, report *models.Report) error {
	return r.m.apply(ctx, r.db, func() (func(), error) {
		report.CreatedAt = time.Now()
		r.m.reports[report.ID] = cloneReport(report)
		return func() { delete(r.m.reports, report.ID) }, nil
	})
}

func (r memReports) Get(_ context.Context, id string) (*models.Report, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	report, ok := r.m.reports[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneReport(report), nil
}

func (r memReports) UpdateRecord(ctx context.Context, report *models.Report) error {
	return r.m.apply(ctx, r.db, func() (func(), error) {
		stored, ok := r.m.reports[report.ID]
		if !ok {
			return nil, common.ErrorNotFound
		}
		prevRecord, prevEdited := stored.EncryptedRecord, stored.EditedAt
		stored.EncryptedRecord = cloneRecord(report.EncryptedRecord)
		stored.EditedAt = clonePtr(report.EditedAt)
		return func() {
			stored.EncryptedRecord = prevRecord
			stored.EditedAt = prevEdited
		}, nil
	})
}

func (r memReports) Delete(ctx context.Context, id, ownerID string) error {
	return r.m.apply(ctx, r.db, func() (func(), error) {
		stored, ok := r.m.reports[id]
		if !ok || stored.OwnerID != ownerID {
			return nil, common.ErrorNotFound
		}
		order := slices.Clone(r.m.matchOrder)
		removed := make(map[string]*models.MatchReport)

		delete(r.m.reports, id)
		r.m.matchOrder = slices.DeleteFunc(r.m.matchOrder, func(mid string) bool {
			if mr := r.m.matches[mid]; mr.ReportID == id {
				removed[mid] = mr
				delete(r.m.matches, mid)
				return true
			}
			return false
		})
		return func() {
			r.m.reports[id] = stored
			for mid, mr := range removed {
				r.m.matches[mid] = mr
			}
			r.m.restoreOrder(order)
		}, nil
	})
}

func (r memReports) LockByIDs(_ context.Context, ids []string) ([]*models.Report, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	var out []*models.Report
	for _, id := range slices.Compact(sorted) {
		if report, ok := r.m.reports[id]; ok {
			out = append(out, cloneReport(report))
		}
	}
	return out, nil
}

func (r memReports) SetMatchFound(ctx context.Context, ids []string) error {
	return r.m.apply(ctx, r.db, func() (func(), error) {
		var flipped []*models.Report
		for _, id := range ids {
			if report, ok := r.m.reports[id]; ok && !report.MatchFound {
				report.MatchFound = true
				flipped = append(flipped, report)
			}
		}
		return func() {
			for _, report := range flipped {
				report.MatchFound = false
			}
		}, nil
	})
}

func (r memReports) MarkSubmitted(ctx context.Context, id string, at time.Time) error {
	return r.m.apply(ctx, r.db, func() (func(), error) {
		report, ok := r.m.reports[id]
		if !ok || report.SubmittedToSchool != nil {
			return nil, common.ErrAlreadySubmitted
		}
		report.SubmittedToSchool = &at
		return func() { report.SubmittedToSchool = nil }, nil
	})
}

type memMatches struct {
	m  *InMemoryRepositoryManager
	db dbx.DBTX
}

func (r memMatches) Create(ctx context.Context, mr *models.MatchReport) error {
	return r.m.apply(ctx, r.db, func() (func(), error) {
		parent, ok := r.m.reports[mr.ReportID]
		if !ok {
			return nil, common.ErrorNotFound
		}
		mr.OwnerID = parent.OwnerID
		mr.CreatedAt = time.Now()
		r.m.matches[mr.ID] = cloneMatch(mr)
		r.m.matchOrder = append(r.m.matchOrder, mr.ID)
		return func() {
			delete(r.m.matches, mr.ID)
			r.m.matchOrder = slices.DeleteFunc(r.m.matchOrder, func(id string) bool { return id == mr.ID })
		}, nil
	})
}

func (r memMatches) ListAll(context.Context) ([]*models.MatchReport, error) {
	return r.list(func(*models.MatchReport) bool { return true }), nil
}

func (r memMatches) ListPending(context.Context) ([]*models.MatchReport, error) {
	return r.list(func(mr *models.MatchReport) bool { return !mr.Seen && mr.Identifier != nil }), nil
}

func (r memMatches) list(keep func(*models.MatchReport) bool) []*models.MatchReport {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.MatchReport
	for _, id := range r.m.matchOrder {
		if mr := r.m.matches[id]; keep(mr) {
			out = append(out, cloneMatch(mr))
		}
	}
	return out
}

func (r memMatches) LockByIDs(_ context.Context, ids []string) ([]*models.MatchReport, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	var out []*models.MatchReport
	for _, id := range slices.Compact(sorted) {
		if mr, ok := r.m.matches[id]; ok {
			out = append(out, cloneMatch(mr))
		}
	}
	return out, nil
}

func (r memMatches) MarkSeen(ctx context.Context, ids []string) error {
	return r.m.apply(ctx, r.db, func() (func(), error) {
		type prev struct {
			mr         *models.MatchReport
			seen       bool
			identifier *string
		}
		var before []prev
		for _, id := range ids {
			if mr, ok := r.m.matches[id]; ok {
				before = append(before, prev{mr, mr.Seen, mr.Identifier})
				mr.Seen = true
				mr.Identifier = nil
			}
		}
		return func() {
			for _, p := range before {
				p.mr.Seen = p.seen
				p.mr.Identifier = p.identifier
			}
		}, nil
	})
}

func (r memMatches) UpdateRecord(ctx context.Context, mr *models.MatchReport) error {
	return r.m.apply(ctx, r.db, func() (func(), error) {
		stored, ok := r.m.matches[mr.ID]
		if !ok {
			return nil, common.ErrorNotFound
		}
		prevRecord := stored.EncryptedRecord
		stored.EncryptedRecord = cloneRecord(mr.EncryptedRecord)
		return func() { stored.EncryptedRecord = prevRecord }, nil
	})
}

func (r memMatches) SetIdentifier(ctx context.Context, id, identifier string) error {
	return r.m.apply(ctx, r.db, func() (func(), error) {
		stored, ok := r.m.matches[id]
		if !ok || stored.Seen {
			return nil, common.ErrorNotFound
		}
		prevIdentifier := stored.Identifier
		stored.Identifier = &identifier
		return func() { stored.Identifier = prevIdentifier }, nil
	})
}

type memSent struct {
	m  *InMemoryRepositoryManager
	db dbx.DBTX
}

func (r memSent) Create(ctx context.Context, s *models.SentReport) error {
	return r.m.apply(ctx, r.db, func() (func(), error) {
		r.m.nextSentID++
		s.ID = r.m.nextSentID
		s.SentAt = time.Now()
		c := *s
		c.MatchReportIDs = slices.Clone(s.MatchReportIDs)
		r.m.sent = append(r.m.sent, &c)
		return func() {
			r.m.sent = slices.DeleteFunc(r.m.sent, func(x *models.SentReport) bool { return x == &c })
		}, nil
	})
}

func (r memSent) SetStorageKey(ctx context.Context, id int64, key string) error {
	return r.m.apply(ctx, r.db, func() (func(), error) {
		i := slices.IndexFunc(r.m.sent, func(s *models.SentReport) bool { return s.ID == id })
		if i < 0 {
			return nil, common.ErrorNotFound
		}
		stored := r.m.sent[i]
		prevKey := stored.StorageKey
		stored.StorageKey = key
		return func() { stored.StorageKey = prevKey }, nil
	})
}

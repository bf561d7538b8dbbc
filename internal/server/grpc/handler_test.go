package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/reportvault/internal/common"
	"github.com/dmitrijs2005/reportvault/internal/logging"
	"github.com/dmitrijs2005/reportvault/internal/server/auth"
	"github.com/dmitrijs2005/reportvault/internal/server/models"
	"github.com/dmitrijs2005/reportvault/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeReports struct {
	owner string
	err   error

	lastMatch services.SubmitMatchRequest
}

func (f *fakeReports) CreateReport(_ context.Context, req services.CreateReportRequest) (*models.Report, error) {
	f.owner = req.OwnerID
	if f.err != nil {
		return nil, f.err
	}
	return &models.Report{ID: "r1", OwnerID: req.OwnerID, CreatedAt: time.Unix(1700000000, 0).UTC()}, nil
}

func (f *fakeReports) UpdateReport(_ context.Context, req services.UpdateReportRequest) (*models.Report, error) {
	f.owner = req.OwnerID
	if f.err != nil {
		return nil, f.err
	}
	now := time.Now()
	return &models.Report{ID: req.ReportID, EditedAt: &now}, nil
}

func (f *fakeReports) OpenReport(_ context.Context, reportID, ownerID, passphrase string) ([]byte, error) {
	f.owner = ownerID
	if f.err != nil {
		return nil, f.err
	}
	return []byte("content of " + reportID), nil
}

func (f *fakeReports) DeleteReport(_ context.Context, _, ownerID string) error {
	f.owner = ownerID
	return f.err
}

func (f *fakeReports) SubmitMatch(_ context.Context, req services.SubmitMatchRequest) (*models.MatchReport, error) {
	f.owner = req.OwnerID
	f.lastMatch = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.MatchReport{ID: "m1", ReportID: req.ReportID}, nil
}

func (f *fakeReports) SubmitToAuthority(_ context.Context, _, ownerID, _ string) (string, error) {
	f.owner = ownerID
	if f.err != nil {
		return "", f.err
	}
	return "SCH-00001-0", nil
}

func authedContext(userID string) context.Context {
	return context.WithValue(context.Background(), userIDKey, userID)
}

func TestHandlers_RequireUser(t *testing.T) {
	s := newTestServer("secret")

	_, err := s.OpenReport(context.Background(), &OpenReportRequest{ReportID: "r1"})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestHandlers_PassOwnerFromContext(t *testing.T) {
	fake := &fakeReports{}
	s := NewGRPCServer("", logging.NewNopLogger(), fake, "secret")
	ctx := authedContext("u7")

	resp, err := s.SubmitMatch(ctx, &SubmitMatchRequest{ReportID: "r1", Contact: "u7@example.edu", Identifier: "perp"})
	if err != nil {
		t.Fatalf("SubmitMatch: %v", err)
	}
	if resp.MatchReportID != "m1" {
		t.Fatalf("unexpected id %q", resp.MatchReportID)
	}
	if fake.owner != "u7" || fake.lastMatch.Identifier != "perp" || fake.lastMatch.Contact != "u7@example.edu" {
		t.Fatalf("request not forwarded: owner=%q req=%+v", fake.owner, fake.lastMatch)
	}

	open, err := s.OpenReport(ctx, &OpenReportRequest{ReportID: "r9", Passphrase: "p"})
	if err != nil {
		t.Fatalf("OpenReport: %v", err)
	}
	if open.Content != "content of r9" {
		t.Fatalf("unexpected content %q", open.Content)
	}
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
		msg  string
	}{
		{common.ErrDecryption, codes.InvalidArgument, "incorrect passphrase"},
		{fmt.Errorf("decrypt: %w", common.ErrDecryption), codes.InvalidArgument, "incorrect passphrase"},
		{fmt.Errorf("%w: Contact failed \"email\"", common.ErrValidation), codes.InvalidArgument, "validation error: Contact failed \"email\""},
		{common.ErrorNotFound, codes.NotFound, "report not found"},
		{common.ErrAlreadySubmitted, codes.FailedPrecondition, "report already submitted"},
		{errors.New("pq: connection refused"), codes.Internal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			fake := &fakeReports{err: tt.err}
			s := NewGRPCServer("", logging.NewNopLogger(), fake, "secret")

			_, err := s.OpenReport(authedContext("u1"), &OpenReportRequest{ReportID: "r1"})
			st := status.Convert(err)
			if st.Code() != tt.code {
				t.Fatalf("code: got %v want %v", st.Code(), tt.code)
			}
			if st.Message() != tt.msg {
				t.Fatalf("message: got %q want %q", st.Message(), tt.msg)
			}
		})
	}
}

func TestEndToEnd_OverBufconn(t *testing.T) {
	fake := &fakeReports{}
	s := NewGRPCServer("", logging.NewNopLogger(), fake, "secret")

	tok, err := auth.GenerateToken("u1", []byte("secret"), time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	c := startBufconn(t, s, tok)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	created, err := c.CreateReport(ctx, "text", "pass")
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	if created.ReportID != "r1" || !created.CreatedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected response %+v", created)
	}
	if fake.owner != "u1" {
		t.Fatalf("owner not taken from token: %q", fake.owner)
	}

	id, err := c.SubmitReport(ctx, "r1", "pass")
	if err != nil {
		t.Fatalf("SubmitReport: %v", err)
	}
	if id != "SCH-00001-0" {
		t.Fatalf("unexpected sent id %q", id)
	}

	fake.err = common.ErrDecryption
	if _, err := c.OpenReport(ctx, "r1", "bad"); !errors.Is(err, common.ErrDecryption) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}
	fake.err = common.ErrAlreadySubmitted
	if _, err := c.SubmitReport(ctx, "r1", "pass"); !errors.Is(err, common.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestEndToEnd_NoToken(t *testing.T) {
	s := NewGRPCServer("", logging.NewNopLogger(), &fakeReports{}, "secret")
	c := startBufconn(t, s, "")

	if err := c.DeleteReport(context.Background(), "r1"); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("expected ErrorUnauthorized, got %v", err)
	}
}

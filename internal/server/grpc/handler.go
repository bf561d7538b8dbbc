package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/reportvault/internal/common"
	"github.com/dmitrijs2005/reportvault/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) CreateReport(ctx context.Context, req *CreateReportRequest) (*CreateReportResponse, error) {
	owner, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	report, err := s.reports.CreateReport(ctx, services.CreateReportRequest{
		OwnerID: owner, Content: req.Content, Passphrase: req.Passphrase,
	})
	if err != nil {
		return nil, s.toStatus(ctx, "CreateReport", err)
	}

	s.logger.Info(ctx, "Report created", "report_id", report.ID)
	return &CreateReportResponse{ReportID: report.ID, CreatedAt: report.CreatedAt}, nil
}

func (s *GRPCServer) UpdateReport(ctx context.Context, req *UpdateReportRequest) (*UpdateReportResponse, error) {
	owner, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	report, err := s.reports.UpdateReport(ctx, services.UpdateReportRequest{
		ReportID: req.ReportID, OwnerID: owner, Content: req.Content, Passphrase: req.Passphrase,
	})
	if err != nil {
		return nil, s.toStatus(ctx, "UpdateReport", err)
	}

	return &UpdateReportResponse{ReportID: report.ID, EditedAt: report.EditedAt}, nil
}

func (s *GRPCServer) OpenReport(ctx context.Context, req *OpenReportRequest) (*OpenReportResponse, error) {
	owner, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	content, err := s.reports.OpenReport(ctx, req.ReportID, owner, req.Passphrase)
	if err != nil {
		return nil, s.toStatus(ctx, "OpenReport", err)
	}

	return &OpenReportResponse{Content: string(content)}, nil
}

func (s *GRPCServer) DeleteReport(ctx context.Context, req *DeleteReportRequest) (*DeleteReportResponse, error) {
	owner, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.reports.DeleteReport(ctx, req.ReportID, owner); err != nil {
		return nil, s.toStatus(ctx, "DeleteReport", err)
	}

	return &DeleteReportResponse{}, nil
}

func (s *GRPCServer) SubmitMatch(ctx context.Context, req *SubmitMatchRequest) (*SubmitMatchResponse, error) {
	owner, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	m, err := s.reports.SubmitMatch(ctx, services.SubmitMatchRequest{
		ReportID:   req.ReportID,
		OwnerID:    owner,
		Contact:    req.Contact,
		Identifier: req.Identifier,
		Content:    req.Content,
	})
	if err != nil {
		return nil, s.toStatus(ctx, "SubmitMatch", err)
	}

	return &SubmitMatchResponse{MatchReportID: m.ID}, nil
}

func (s *GRPCServer) SubmitReport(ctx context.Context, req *SubmitReportRequest) (*SubmitReportResponse, error) {
	owner, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	id, err := s.reports.SubmitToAuthority(ctx, req.ReportID, owner, req.Passphrase)
	if err != nil {
		return nil, s.toStatus(ctx, "SubmitReport", err)
	}

	s.logger.Info(ctx, "Report submitted", "sent_report_id", id)
	return &SubmitReportResponse{SentReportID: id}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *PingRequest) (*PingResponse, error) {

	return &PingResponse{Status: "OK"}, nil

}

// toStatus maps service errors onto gRPC codes. Unexpected errors are
// logged and reported as Internal without detail.
func (s *GRPCServer) toStatus(ctx context.Context, method string, err error) error {
	switch {
	case errors.Is(err, common.ErrDecryption):
		return status.Error(codes.InvalidArgument, common.ErrDecryption.Error())
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "report not found")
	case errors.Is(err, common.ErrAlreadySubmitted):
		return status.Error(codes.FailedPrecondition, common.ErrAlreadySubmitted.Error())
	}
	s.logger.Error(ctx, "request failed", "method", method, "error", err.Error())
	return status.Error(codes.Internal, "internal error")
}

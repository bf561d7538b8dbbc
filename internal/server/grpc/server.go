// Package grpc exposes the report service over gRPC. Messages are plain Go
// structs carried by a JSON codec.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/reportvault/internal/logging"
	"github.com/dmitrijs2005/reportvault/internal/server/models"
	"github.com/dmitrijs2005/reportvault/internal/server/services"
	"google.golang.org/grpc"
)

// ReportService is the subset of services.ReportService the handlers use.
type ReportService interface {
	CreateReport(ctx context.Context, req services.CreateReportRequest) (*models.Report, error)
	UpdateReport(ctx context.Context, req services.UpdateReportRequest) (*models.Report, error)
	OpenReport(ctx context.Context, reportID, ownerID, passphrase string) ([]byte, error)
	DeleteReport(ctx context.Context, reportID, ownerID string) error
	SubmitMatch(ctx context.Context, req services.SubmitMatchRequest) (*models.MatchReport, error)
	SubmitToAuthority(ctx context.Context, reportID, ownerID, passphrase string) (string, error)
}

type GRPCServer struct {
	address   string
	reports   ReportService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, rs ReportService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		reports:   rs,
		jwtSecret: []byte(secretKey),
	}
}

// NewServer builds a grpc.Server with the interceptors and service attached.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	srv := grpc.NewServer(opts...)
	RegisterReportVaultServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

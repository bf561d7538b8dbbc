package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "reportvault.v1.ReportVault"

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

// ReportVaultServer is the method set served under serviceName.
type ReportVaultServer interface {
	CreateReport(context.Context, *CreateReportRequest) (*CreateReportResponse, error)
	UpdateReport(context.Context, *UpdateReportRequest) (*UpdateReportResponse, error)
	OpenReport(context.Context, *OpenReportRequest) (*OpenReportResponse, error)
	DeleteReport(context.Context, *DeleteReportRequest) (*DeleteReportResponse, error)
	SubmitMatch(context.Context, *SubmitMatchRequest) (*SubmitMatchResponse, error)
	SubmitReport(context.Context, *SubmitReportRequest) (*SubmitReportResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

func unary[Req, Resp any](method string, call func(ReportVaultServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(ReportVaultServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ReportVaultServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateReport", ReportVaultServer.CreateReport),
		unary("UpdateReport", ReportVaultServer.UpdateReport),
		unary("OpenReport", ReportVaultServer.OpenReport),
		unary("DeleteReport", ReportVaultServer.DeleteReport),
		unary("SubmitMatch", ReportVaultServer.SubmitMatch),
		unary("SubmitReport", ReportVaultServer.SubmitReport),
		unary("Ping", ReportVaultServer.Ping),
	},
	Metadata: "reportvault.v1",
}

// RegisterReportVaultServer registers srv on s.
func RegisterReportVaultServer(s grpc.ServiceRegistrar, srv ReportVaultServer) {
	s.RegisterService(&serviceDesc, srv)
}

package grpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/reportvault/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var ErrUnavailable = errors.New("server unavailable")

// GRPCClient calls the report vault service with a fixed access token.
type GRPCClient struct {
	conn        *grpc.ClientConn
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if c.accessToken != "" {
		ctx = withAccessToken(ctx, c.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient connects to endpointURL over plaintext transport. Extra
// dial options are appended, e.g. a bufconn dialer in tests.
func NewGRPCClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{accessToken: accessToken}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.mapError(c.conn.Invoke(ctx, fullMethod(method), in, out))
}

func (c *GRPCClient) CreateReport(ctx context.Context, content, passphrase string) (*CreateReportResponse, error) {
	out := &CreateReportResponse{}
	if err := c.invoke(ctx, "CreateReport", &CreateReportRequest{Content: content, Passphrase: passphrase}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GRPCClient) UpdateReport(ctx context.Context, reportID, content, passphrase string) (*UpdateReportResponse, error) {
	out := &UpdateReportResponse{}
	req := &UpdateReportRequest{ReportID: reportID, Content: content, Passphrase: passphrase}
	if err := c.invoke(ctx, "UpdateReport", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GRPCClient) OpenReport(ctx context.Context, reportID, passphrase string) (string, error) {
	out := &OpenReportResponse{}
	if err := c.invoke(ctx, "OpenReport", &OpenReportRequest{ReportID: reportID, Passphrase: passphrase}, out); err != nil {
		return "", err
	}
	return out.Content, nil
}

func (c *GRPCClient) DeleteReport(ctx context.Context, reportID string) error {
	return c.invoke(ctx, "DeleteReport", &DeleteReportRequest{ReportID: reportID}, &DeleteReportResponse{})
}

func (c *GRPCClient) SubmitMatch(ctx context.Context, req *SubmitMatchRequest) (string, error) {
	out := &SubmitMatchResponse{}
	if err := c.invoke(ctx, "SubmitMatch", req, out); err != nil {
		return "", err
	}
	return out.MatchReportID, nil
}

func (c *GRPCClient) SubmitReport(ctx context.Context, reportID, passphrase string) (string, error) {
	out := &SubmitReportResponse{}
	if err := c.invoke(ctx, "SubmitReport", &SubmitReportRequest{ReportID: reportID, Passphrase: passphrase}, out); err != nil {
		return "", err
	}
	return out.SentReportID, nil
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	out := &PingResponse{}
	if err := c.invoke(ctx, "Ping", &PingRequest{}, out); err != nil {
		return err
	}
	if out.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

// mapError turns status codes back into the common sentinel errors.
func (c *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		if st.Message() == common.ErrTokenExpired.Error() {
			return common.ErrTokenExpired
		}
		return common.ErrorUnauthorized
	case codes.NotFound:
		return common.ErrorNotFound
	case codes.FailedPrecondition:
		return common.ErrAlreadySubmitted
	case codes.InvalidArgument:
		if st.Message() == common.ErrDecryption.Error() {
			return common.ErrDecryption
		}
		return fmt.Errorf("%w: %s", common.ErrValidation, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

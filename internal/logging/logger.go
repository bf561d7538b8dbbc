// Package logging is the structured logger of the report vault server.
//
// Components log record IDs and counts, never passphrases, identifiers or
// plaintext. The JSON logger redacts those keys anyway in case one slips in.
package logging

import "context"

// Logger is what services, the matching engine and the gRPC layer log
// through. args are alternating keys and values:
//
//	logger.Info(ctx, "sweep finished", "groups", res.Groups, "matched", res.Matched)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger carrying args on every record.
	With(args ...any) Logger
}

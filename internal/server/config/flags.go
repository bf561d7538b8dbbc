package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/reportvault/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   metrics bind address (empty disables)
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-k string   pepper key, hex
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-D string   local archive directory (replaces S3 when set)
//	-r string   mail relay URL
//	-o string   authority address
//	-x string   sent report ID prefix
//	-i bool     immediate matching
//	-n duration sweep interval (e.g., "5m")
//	-w int      sweep workers
//	-H string   enabled hashers, comma separated, default first
//	-I int      PBKDF2 iterations
//	-l string   log level (debug, info, warn, error)
//
// Only recognized flags are kept (flagx.FilterArgs), so cobra commands can
// share os.Args without collisions.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-m", "-d", "-s", "-t", "-k", "-u", "-p", "-b", "-g", "-e",
		"-D", "-r", "-o", "-x", "-i", "-n", "-w", "-H", "-I", "-l"}, "-i")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.PepperKey, "k", config.PepperKey, "pepper key (hex)")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.ArchiveDir, "D", config.ArchiveDir, "local archive directory")
	fs.StringVar(&config.RelayURL, "r", config.RelayURL, "mail relay URL")
	fs.StringVar(&config.AuthorityAddress, "o", config.AuthorityAddress, "authority address")
	fs.StringVar(&config.ReportIDPrefix, "x", config.ReportIDPrefix, "sent report ID prefix")
	fs.BoolVar(&config.ImmediateMatching, "i", config.ImmediateMatching, "run matching inline after submission")
	fs.DurationVar(&config.SweepInterval, "n", config.SweepInterval, "matching sweep interval")
	fs.IntVar(&config.SweepWorkers, "w", config.SweepWorkers, "matching sweep workers")

	enabledHashers := fs.String("H", strings.Join(config.Hashers, ","), "enabled hashers, default first")

	fs.IntVar(&config.PBKDF2Iterations, "I", config.PBKDF2Iterations, "PBKDF2 iterations")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	if *enabledHashers != "" {
		config.Hashers = splitList(*enabledHashers)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-m", ":9999", "-d", "db", "-s", "secret", "-t", "5", "-k", "abcd",
			"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
			"-D", "/var/lib/rv", "-r", "http://relay/send",
			"-o", "title9@school.edu", "-x", "SCH", "-i=true", "-n", "30s", "-w", "8",
			"-H", "pbkdf2_sha256, argon2", "-I", "1000", "-l", "debug",
		}, expected: &Config{
			EndpointAddrGRPC:            "127.0.0.1:9090",
			MetricsAddr:                 ":9999",
			DatabaseDSN:                 "db",
			SecretKey:                   "secret",
			AccessTokenValidityDuration: 5 * time.Minute,
			PepperKey:                   "abcd",
			S3RootUser:                  "user",
			S3RootPassword:              "password",
			S3Bucket:                    "bucket",
			S3Region:                    "us-west-1",
			S3BaseEndpoint:              "http://endpoint",
			ArchiveDir:                  "/var/lib/rv",
			RelayURL:                    "http://relay/send",
			AuthorityAddress:            "title9@school.edu",
			ReportIDPrefix:              "SCH",
			ImmediateMatching:           true,
			SweepInterval:               30 * time.Second,
			SweepWorkers:                8,
			Hashers:                     []string{"pbkdf2_sha256", "argon2"},
			PBKDF2Iterations:            1000,
			LogLevel:                    "debug",
		}},
		{name: "unknown flags are ignored", args: []string{"cmd", "sweep", "--verbose", "-w", "2"},
			expected: &Config{SweepWorkers: 2}},
		{name: "bool flag before subcommand", args: []string{"cmd", "-i", "sweep", "-w", "3"},
			expected: &Config{ImmediateMatching: true, SweepWorkers: 3}},
		{name: "bad value panics", args: []string{"cmd", "-w", "many"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Nil(t, splitList(" , "))
}

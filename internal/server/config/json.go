package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/reportvault/internal/flagx"
	"github.com/dmitrijs2005/reportvault/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
//
// Only fields present in the file override the target Config.
type JsonConfig struct {
	EndpointAddrGRPC            string          `json:"endpoint_addr_grpc"`
	MetricsAddr                 *string         `json:"metrics_addr"`
	DatabaseDSN                 string          `json:"database_dsn"`
	SecretKey                   string          `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	PepperKey                   string          `json:"pepper_key"`
	S3RootUser                  string          `json:"s3_root_user"`
	S3RootPassword              string          `json:"s3_root_password"`
	S3Bucket                    string          `json:"s3_bucket"`
	S3Region                    string          `json:"s3_region"`
	S3BaseEndpoint              string          `json:"s3_base_endpoint"`
	ArchiveDir                  string          `json:"archive_dir"`
	RelayURL                    string          `json:"relay_url"`
	AuthorityAddress            string          `json:"authority_address"`
	ReportIDPrefix              string          `json:"report_id_prefix"`
	ImmediateMatching           *bool           `json:"immediate_matching"`
	SweepInterval               *timex.Duration `json:"sweep_interval"`
	SweepWorkers                int             `json:"sweep_workers"`
	Hashers                     []string        `json:"hashers"`
	PBKDF2Iterations            int             `json:"pbkdf2_iterations"`
	LogLevel                    string          `json:"log_level"`
	Argon2                      *struct {
		Variety   string `json:"variety"`
		Time      uint32 `json:"time"`
		MemoryKiB uint32 `json:"memory_kib"`
		Threads   uint8  `json:"threads"`
	} `json:"argon2"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag. Without either flag nothing is loaded. An unreadable or
// invalid file panics; this runs once during startup.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}
	if err := ApplyJSONFile(config, jsonConfigFile); err != nil {
		panic(err)
	}
}

// ApplyJSONFile overlays the values found in the JSON file at path onto config.
func ApplyJSONFile(config *Config, path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	if c.MetricsAddr != nil {
		config.MetricsAddr = *c.MetricsAddr
	}
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	setString(&config.PepperKey, c.PepperKey)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.ArchiveDir, c.ArchiveDir)
	setString(&config.RelayURL, c.RelayURL)
	setString(&config.AuthorityAddress, c.AuthorityAddress)
	setString(&config.ReportIDPrefix, c.ReportIDPrefix)
	if c.ImmediateMatching != nil {
		config.ImmediateMatching = *c.ImmediateMatching
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.SweepWorkers > 0 {
		config.SweepWorkers = c.SweepWorkers
	}
	if len(c.Hashers) > 0 {
		config.Hashers = c.Hashers
	}
	if c.PBKDF2Iterations > 0 {
		config.PBKDF2Iterations = c.PBKDF2Iterations
	}
	setString(&config.LogLevel, c.LogLevel)
	if a := c.Argon2; a != nil {
		setString(&config.Argon2Variety, a.Variety)
		if a.Time > 0 {
			config.Argon2Time = a.Time
		}
		if a.MemoryKiB > 0 {
			config.Argon2MemoryKiB = a.MemoryKiB
		}
		if a.Threads > 0 {
			config.Argon2Threads = a.Threads
		}
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// S3Scheme prefixes input and output locations stored in S3-compatible object storage.
const S3Scheme = "s3://"

// Config holds all job settings: the three CLI flags plus ambient settings
// populated from environment variables.
type Config struct {
	CrimesFile   string
	CodesFile    string
	OutputFolder string

	LogLevel  string
	LogFormat string

	MedianStrategy string
	MedianEpsilon  float64

	MetricsTextfile string

	// Optional report sinks.
	KafkaBrokers     []string
	KafkaReportTopic string
	DatabaseURL      string

	// Object storage for s3:// locations.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
}

// Load parses the command-line flags in args and reads the environment,
// applying defaults where unset. A .env file in the working directory is
// loaded first when present; variables already set take precedence.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	crimesFile := fs.String("crimes_file", "", "Crimes file")
	codesFile := fs.String("codes_file", "", "File with codes")
	outputFolder := fs.String("output_folder", "output", "Output folder")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	epsilon, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MEDIAN_EPSILON", "0.01"), 64)
	if err != nil {
		return nil, errors.New("invalid MEDIAN_EPSILON")
	}

	cfg := &Config{
		CrimesFile:   *crimesFile,
		CodesFile:    *codesFile,
		OutputFolder: *outputFolder,

		LogLevel:  strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json")),

		MedianStrategy: strings.ToLower(sharedcfg.EnvOrDefault("MEDIAN_STRATEGY", "approx")),
		MedianEpsilon:  epsilon,

		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),

		KafkaBrokers:     sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaReportTopic: sharedcfg.EnvOrDefault("KAFKA_REPORT_TOPIC", "district-crime-report"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:    os.Getenv("S3_USE_SSL") == "true",
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CrimesFile == "" {
		return errors.New("crimes_file is required")
	}
	if c.CodesFile == "" {
		return errors.New("codes_file is required")
	}
	if c.OutputFolder == "" {
		return errors.New("output_folder must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	switch c.MedianStrategy {
	case "exact", "approx":
	default:
		return fmt.Errorf("invalid MEDIAN_STRATEGY %q", c.MedianStrategy)
	}
	if c.MedianEpsilon <= 0 || c.MedianEpsilon >= 0.5 {
		return errors.New("MEDIAN_EPSILON must be in (0, 0.5)")
	}
	if c.UsesS3() && c.S3Endpoint == "" {
		return errors.New("S3_ENDPOINT is required for s3:// locations")
	}
	return nil
}

// UsesS3 reports whether any input or output location points at object storage.
func (c *Config) UsesS3() bool {
	return IsS3(c.CrimesFile) || IsS3(c.CodesFile) || IsS3(c.OutputFolder)
}

// KafkaEnabled reports whether report rows should be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// IsS3 reports whether location uses the s3:// scheme.
func IsS3(location string) bool {
	return strings.HasPrefix(location, S3Scheme)
}

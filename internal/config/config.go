// Package config materializes the environment-style configuration both
// binaries recognize. Values come from ITY_-prefixed environment variables;
// main loads a .env file first via godotenv.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/tendant/post-import-pipeline/internal/catalog"
)

// Config carries every recognized option.
type Config struct {
	// Object store.
	Bucket     string // ITY_BUCKET_NAME
	Prefix     string // ITY_PREFIX (namespace prefix, usually only for testing)
	CropPrefix string // ITY_CROP_PREFIX, default "crop/"

	// Crop identity.
	CropSecret string // ITY_CROP_SECRET

	// Inference.
	ModelARN      string  // ITY_MODEL_ARN
	MinConfidence float64 // ITY_MIN_CONFIDENCE, default 35

	// Persistence.
	DynamoTable string // ITY_DYNAMO_TABLE
	PostgresDSN string // ITY_POSTGRES_DSN
	NoDB        bool   // ITY_NO_DB: skip record inserts
	DeleteAll   bool   // ITY_DELETE_ALL: truncate before converting

	// Run shaping.
	Stage            int     // ITY_STAGE: 1..3, 0 = all
	ExistingPolicy   string  // ITY_EXISTING_POLICY: reuse | redownload | skip
	LogPercentChange float64 // ITY_LOG_PERCENT_CHANGE, default 0.01
	MaxRows          int     // ITY_MAX_ROWS, 0 = unbounded
	StartAtID        int64   // ITY_START_AT_ID, 0 = start at the beginning

	// Local directories.
	OrigDir string // ITY_ORIG_DIR, default "orig"
	MetaDir string // ITY_META_DIR, default "meta"
	CropDir string // ITY_CROP_DIR, default "crop"

	// Observability.
	MetricsAddr string // ITY_METRICS_ADDR, empty disables the listener
}

// Load reads the environment. Parse failures are returned; required-value
// enforcement lives in the Validate methods since the two binaries need
// different things.
func Load() (*Config, error) {
	cfg := &Config{
		Bucket:         os.Getenv("ITY_BUCKET_NAME"),
		Prefix:         os.Getenv("ITY_PREFIX"),
		CropPrefix:     getenv("ITY_CROP_PREFIX", "crop/"),
		CropSecret:     os.Getenv("ITY_CROP_SECRET"),
		ModelARN:       os.Getenv("ITY_MODEL_ARN"),
		DynamoTable:    os.Getenv("ITY_DYNAMO_TABLE"),
		PostgresDSN:    os.Getenv("ITY_POSTGRES_DSN"),
		ExistingPolicy: getenv("ITY_EXISTING_POLICY", "reuse"),
		OrigDir:        getenv("ITY_ORIG_DIR", "orig"),
		MetaDir:        getenv("ITY_META_DIR", "meta"),
		CropDir:        getenv("ITY_CROP_DIR", "crop"),
		MetricsAddr:    os.Getenv("ITY_METRICS_ADDR"),
		NoDB:           os.Getenv("ITY_NO_DB") != "",
		DeleteAll:      os.Getenv("ITY_DELETE_ALL") != "",
	}

	var err error
	if cfg.MinConfidence, err = parseFloat("ITY_MIN_CONFIDENCE", 35); err != nil {
		return nil, err
	}
	if cfg.LogPercentChange, err = parseFloat("ITY_LOG_PERCENT_CHANGE", catalog.DefaultLogPercentChange); err != nil {
		return nil, err
	}
	if cfg.Stage, err = parseInt("ITY_STAGE", 0); err != nil {
		return nil, err
	}
	if cfg.Stage < 0 || cfg.Stage > 3 {
		return nil, fmt.Errorf("ITY_STAGE must be 1..3, got %d", cfg.Stage)
	}
	if cfg.MaxRows, err = parseInt("ITY_MAX_ROWS", 0); err != nil {
		return nil, err
	}
	startAt, err := parseInt("ITY_START_AT_ID", 0)
	if err != nil {
		return nil, err
	}
	cfg.StartAtID = int64(startAt)

	return cfg, nil
}

// ValidateImporter enforces what the staged importer cannot run without.
func (c *Config) ValidateImporter() error {
	var problems []error

	if c.CropSecret == "" {
		log.Printf("! Running with an empty crop secret - check ITY_CROP_SECRET")
	}
	if c.Prefix != "" {
		log.Printf("! Running with a prefix - usually only good for testing")
	}

	if c.Bucket == "" {
		problems = append(problems, errors.New("cannot operate without a bucket - check ITY_BUCKET_NAME"))
	}
	if c.ModelARN == "" {
		problems = append(problems, errors.New("cannot operate without a model version ARN - check ITY_MODEL_ARN"))
	}
	if c.DynamoTable == "" && !c.NoDB {
		problems = append(problems, errors.New("cannot operate without a destination table - check ITY_DYNAMO_TABLE or set ITY_NO_DB"))
	}

	return errors.Join(problems...)
}

// ValidateConverter enforces what the bulk converter cannot run without.
func (c *Config) ValidateConverter() error {
	if c.PostgresDSN == "" {
		return errors.New("cannot operate without a database - check ITY_POSTGRES_DSN")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func parseInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

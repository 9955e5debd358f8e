package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateIntervals(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	if len(c.Discovery.Roots) == 0 {
		return errors.New("discovery.roots must list at least one directory to scan")
	}
	if c.Discovery.MinFileSize < 0 {
		return errors.New("discovery.min_file_size must not be negative")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/docbridge/config.toml"
		}
		return fmt.Errorf("ingest.base_url is required. Set DOCBRIDGE_INGEST_URL env var or edit %s (create with 'docbridge config init')", defaultPath)
	}
	if !strings.HasPrefix(c.Ingest.BaseURL, "http://") && !strings.HasPrefix(c.Ingest.BaseURL, "https://") {
		return fmt.Errorf("ingest.base_url must start with http:// or https://, got %q", c.Ingest.BaseURL)
	}
	if c.Ingest.KnowledgeBaseID == "" {
		return errors.New("ingest.knowledge_base_id is required (or set DOCBRIDGE_KB_ID)")
	}
	return nil
}

func (c *Config) validateIntervals() error {
	return ensurePositiveMap(map[string]int{
		"discovery.interval":            c.Discovery.Interval,
		"submission.interval":           c.Submission.Interval,
		"submission.batch_size":         c.Submission.BatchSize,
		"polling.interval":              c.Polling.Interval,
		"polling.batch_size":            c.Polling.BatchSize,
		"ingest.upload_timeout":         c.Ingest.UploadTimeout,
		"ingest.status_timeout":         c.Ingest.StatusTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateArchive() error {
	if !c.Archive.Enabled {
		return nil
	}
	if c.Archive.Endpoint == "" {
		return errors.New("archive.endpoint must be set when archive.enabled is true")
	}
	if c.Archive.AccessKey == "" || c.Archive.SecretKey == "" {
		return errors.New("archive.access_key and archive.secret_key must be set when archive.enabled is true")
	}
	if c.Archive.Bucket == "" {
		return errors.New("archive.bucket must be set when archive.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if c.Polling.RequestDelayMS < 0 {
		return errors.New("polling.request_delay_ms must not be negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

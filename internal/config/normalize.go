package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDiscovery(); err != nil {
		return err
	}
	c.normalizeIngest()
	c.normalizeArchive()
	if err := c.normalizeERP(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDiscovery() error {
	roots := make([]string, 0, len(c.Discovery.Roots))
	for _, root := range c.Discovery.Roots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			continue
		}
		expanded, err := ExpandPath(trimmed)
		if err != nil {
			return fmt.Errorf("discovery.roots: %w", err)
		}
		roots = append(roots, expanded)
	}
	c.Discovery.Roots = roots
	return nil
}

func (c *Config) normalizeIngest() {
	if c.Ingest.BaseURL == "" {
		if value, ok := os.LookupEnv("DOCBRIDGE_INGEST_URL"); ok {
			c.Ingest.BaseURL = value
		}
	}
	if c.Ingest.APIKey == "" {
		if value, ok := os.LookupEnv("DOCBRIDGE_INGEST_API_KEY"); ok {
			c.Ingest.APIKey = value
		}
	}
	if c.Ingest.KnowledgeBaseID == "" {
		if value, ok := os.LookupEnv("DOCBRIDGE_KB_ID"); ok {
			c.Ingest.KnowledgeBaseID = value
		}
	}
	c.Ingest.BaseURL = strings.TrimRight(strings.TrimSpace(c.Ingest.BaseURL), "/")
	c.Ingest.APIKey = strings.TrimSpace(c.Ingest.APIKey)
	c.Ingest.KnowledgeBaseID = strings.TrimSpace(c.Ingest.KnowledgeBaseID)
}

func (c *Config) normalizeArchive() {
	c.Archive.Endpoint = strings.TrimSpace(c.Archive.Endpoint)
	c.Archive.Bucket = strings.TrimSpace(c.Archive.Bucket)
	if c.Archive.Bucket == "" {
		c.Archive.Bucket = defaultArchiveBucket
	}
}

func (c *Config) normalizeERP() error {
	c.ERP.DumpDir = strings.TrimSpace(c.ERP.DumpDir)
	if c.ERP.DumpDir == "" {
		return nil
	}
	expanded, err := ExpandPath(c.ERP.DumpDir)
	if err != nil {
		return fmt.Errorf("erp.dump_dir: %w", err)
	}
	c.ERP.DumpDir = expanded
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from an optional config.yaml and
// environment variables. Environment variables always win over YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MailProvider selects which Mail Gateway Adapter variant to construct.
type MailProvider string

const (
	MailProviderOAuth MailProvider = "oauth"
	MailProviderIMAP  MailProvider = "imap"
)

// CacheProvider selects which Cache Layer strategy to construct.
type CacheProvider string

const (
	CacheProviderMemory CacheProvider = "memory"
	CacheProviderRemote CacheProvider = "remote"
)

// Config holds all configuration for the ingestion service.
type Config struct {
	MailUser             string
	MailSubjectPattern   string
	ProcessedMarker      string
	AttachmentsFolder    string
	RequiredTableColumns []string

	MailProvider      MailProvider
	OAuthTenantID     string
	OAuthClientID     string
	OAuthClientSecret string
	IMAPHost          string
	IMAPPort          int
	IMAPUser          string
	IMAPPassword      string

	DatabaseURL string

	CacheProvider CacheProvider
	CacheTTL      time.Duration
	CacheRedisURL string

	BranchID        int
	AllowedBranches []int

	LogFilePath string

	UpcomingArrivalsWindow  int
	UpcomingBirthdaysWindow int

	HTTPPort int
}

// rawConfig mirrors the subset of config.yaml that can supply defaults;
// every field here may be overridden by its corresponding environment
// variable, in line with the matching teacher convention.
type rawConfig struct {
	Mail struct {
		User            string `yaml:"user"`
		SubjectPattern  string `yaml:"subject_pattern"`
		ProcessedMarker string `yaml:"processed_marker"`
		Provider        string `yaml:"provider"`
	} `yaml:"mail"`
	AttachmentsFolderID       string   `yaml:"attachments_folder_id"`
	EmailTableRequiredColumns []string `yaml:"email_table_required_columns"`
	Database                  struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Cache struct {
		Provider string `yaml:"provider"`
		TTLMin   int    `yaml:"ttl_minutes"`
		RedisURL string `yaml:"redis_url"`
	} `yaml:"cache"`
	BranchID        int    `yaml:"branch_id"`
	AllowedBranches []int  `yaml:"allowed_branches"`
	LogFilePath     string `yaml:"log_file_path"`
	HTTPPort        int    `yaml:"http_port"`
}

// Load reads configuration from CONFIG_PATH (if present, with env var
// expansion) and overlays environment variables for every recognized
// option. YAML supplies defaults; environment variables always win.
func Load() (*Config, error) {
	var raw rawConfig

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	cfg := &Config{
		MailUser:           envOrDefault("MAIL_USER", raw.Mail.User),
		MailSubjectPattern: envOrDefault("MAIL_SUBJECT_PATTERN", raw.Mail.SubjectPattern),
		ProcessedMarker:    envOrDefault("PROCESSED_MARKER", firstNonEmpty(raw.Mail.ProcessedMarker, "ccm-processed")),
		AttachmentsFolder:  envOrDefault("ATTACHMENTS_FOLDER_ID", raw.AttachmentsFolderID),
		RequiredTableColumns: parseStringList(envOrDefault(
			"EMAIL_TABLE_REQUIRED_COLUMNS",
			firstNonEmpty(strings.Join(raw.EmailTableRequiredColumns, ","), "Distrito,Zona"),
		)),

		MailProvider:      MailProvider(envOrDefault("MAIL_PROVIDER", firstNonEmpty(raw.Mail.Provider, "oauth"))),
		OAuthTenantID:     envOrDefault("MAIL_OAUTH_TENANT_ID", ""),
		OAuthClientID:     envOrDefault("MAIL_OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: envOrDefault("MAIL_OAUTH_CLIENT_SECRET", ""),
		IMAPHost:          envOrDefault("MAIL_IMAP_HOST", ""),
		IMAPPort:          envOrDefaultInt("MAIL_IMAP_PORT", 993),
		IMAPUser:          envOrDefault("MAIL_IMAP_USER", ""),
		IMAPPassword:      envOrDefault("MAIL_IMAP_PASSWORD", ""),

		DatabaseURL: envOrDefault("DB_DSN", raw.Database.DSN),

		CacheProvider: CacheProvider(envOrDefault("CACHE_PROVIDER", firstNonEmpty(raw.Cache.Provider, "memory"))),
		CacheTTL:      time.Duration(envOrDefaultInt("CACHE_TTL_MINUTES", firstNonZero(raw.Cache.TTLMin, 30))) * time.Minute,
		CacheRedisURL: envOrDefault("CACHE_REDIS_URL", raw.Cache.RedisURL),

		BranchID:        envOrDefaultInt("BRANCH_ID", raw.BranchID),
		AllowedBranches: parseIntList(envOrDefault("ALLOWED_BRANCHES", joinInts(raw.AllowedBranches))),

		LogFilePath: envOrDefault("LOG_FILE_PATH", raw.LogFilePath),

		UpcomingArrivalsWindow:  envOrDefaultInt("UPCOMING_ARRIVALS_WINDOW_DAYS", 21),
		UpcomingBirthdaysWindow: envOrDefaultInt("UPCOMING_BIRTHDAYS_WINDOW_DAYS", 21),

		HTTPPort: envOrDefaultInt("HTTP_PORT", firstNonZero(raw.HTTPPort, 8080)),
	}

	if cfg.MailUser == "" {
		return nil, fmt.Errorf("config_invalid: MAIL_USER is required")
	}
	if cfg.MailSubjectPattern == "" {
		return nil, fmt.Errorf("config_invalid: MAIL_SUBJECT_PATTERN is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config_invalid: DB_DSN is required")
	}
	if cfg.MailProvider != MailProviderOAuth && cfg.MailProvider != MailProviderIMAP {
		return nil, fmt.Errorf("mail_provider_unsupported: %q", cfg.MailProvider)
	}
	if cfg.CacheProvider != CacheProviderMemory && cfg.CacheProvider != CacheProviderRemote {
		return nil, fmt.Errorf("cache_provider_unsupported: %q", cfg.CacheProvider)
	}
	if cfg.CacheProvider == CacheProviderRemote && cfg.CacheRedisURL == "" {
		return nil, fmt.Errorf("config_invalid: CACHE_REDIS_URL is required when CACHE_PROVIDER=remote")
	}

	return cfg, nil
}

// AllowsBranch reports whether branchID is in the configured allow-list.
// An empty allow-list means no branch other than BranchID is permitted.
func (c *Config) AllowsBranch(branchID int) bool {
	if branchID == c.BranchID {
		return true
	}
	for _, b := range c.AllowedBranches {
		if b == branchID {
			return true
		}
	}
	return false
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func parseIntList(s string) []int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func parseStringList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

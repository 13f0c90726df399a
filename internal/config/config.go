package config

import (
	"path/filepath"
	"time"
)

// DefaultConfigName is the YAML file looked up in the working directory.
const DefaultConfigName = ".kb2mcp.yaml"

// journalFileName is the sqlite database kept under the state dir.
const journalFileName = "journal.db"

// Config is the effective bridge configuration after merging defaults,
// config file, dotenv files, environment, and CLI overrides.
type Config struct {
	Version int     `yaml:"version"`
	Backend Backend `yaml:"backend"`
	Upload  Upload  `yaml:"upload"`
	Log     Log     `yaml:"log"`
	State   State   `yaml:"state"`
	Server  Server  `yaml:"server"`
}

// Backend locates the knowledge-base indexing service.
type Backend struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
	// Timeouts bound the two HTTP exchanges; indexing is allowed to take
	// longer than retrieval.
	SubmitTimeoutSeconds int `yaml:"submit_timeout_seconds"`
	QueryTimeoutSeconds  int `yaml:"query_timeout_seconds"`
}

type Upload struct {
	MaxFileMB int `yaml:"max_file_mb"`
}

type Log struct {
	Level string `yaml:"level"`
}

// State holds local bridge state; today that is the upload journal.
type State struct {
	Dir            string `yaml:"dir"`
	JournalEnabled bool   `yaml:"journal_enabled"`
}

type Server struct {
	ProtocolVersion string `yaml:"protocol_version"`
}

// MaxUploadBytes is the decoded payload ceiling.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxFileMB) << 20
}

func (c *Config) SubmitTimeout() time.Duration {
	return time.Duration(c.Backend.SubmitTimeoutSeconds) * time.Second
}

func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Backend.QueryTimeoutSeconds) * time.Second
}

// JournalPath is the sqlite journal location under the state dir.
func (c *Config) JournalPath() string {
	return filepath.Join(c.State.Dir, journalFileName)
}

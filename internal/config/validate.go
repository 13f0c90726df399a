package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kb2mcp/kb2mcp/internal/protocol"
)

// LogLevels lists the accepted log.level values.
var LogLevels = []string{"debug", "info", "warn", "error"}

// maxFileMBCeiling keeps the base64 wire form of the largest allowed
// upload under the 64 MiB frame scanner limit.
const maxFileMBCeiling = 45

// Validate checks the effective config and returns an actionable
// CONFIG_INVALID error for the first problem found.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Backend.URL) == "" {
		return fmt.Errorf("CONFIG_INVALID: Missing backend.url\nSet env: KB2MCP_BACKEND_URL=http://host:port\nOr run: kb2mcp config init")
	}
	u, err := url.Parse(cfg.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("CONFIG_INVALID: backend.url %q is not a valid http(s) URL\nSet env: KB2MCP_BACKEND_URL=http://host:port", cfg.Backend.URL)
	}
	if !stringIn(cfg.Log.Level, LogLevels) {
		return fmt.Errorf("CONFIG_INVALID: log.level %q must be one of %s", cfg.Log.Level, strings.Join(LogLevels, ", "))
	}
	if cfg.Upload.MaxFileMB < 1 || cfg.Upload.MaxFileMB > maxFileMBCeiling {
		return fmt.Errorf("CONFIG_INVALID: upload.max_file_mb %d must be between 1 and %d", cfg.Upload.MaxFileMB, maxFileMBCeiling)
	}
	if cfg.Backend.SubmitTimeoutSeconds <= 0 {
		return fmt.Errorf("CONFIG_INVALID: backend.submit_timeout_seconds %d must be positive", cfg.Backend.SubmitTimeoutSeconds)
	}
	if cfg.Backend.QueryTimeoutSeconds <= 0 {
		return fmt.Errorf("CONFIG_INVALID: backend.query_timeout_seconds %d must be positive", cfg.Backend.QueryTimeoutSeconds)
	}
	if !stringIn(cfg.Server.ProtocolVersion, protocol.SupportedVersions) {
		return fmt.Errorf("CONFIG_INVALID: server.protocol_version %q must be one of %s", cfg.Server.ProtocolVersion, strings.Join(protocol.SupportedVersions, ", "))
	}
	if strings.TrimSpace(cfg.State.Dir) == "" {
		return fmt.Errorf("CONFIG_INVALID: state.dir must not be empty\nSet env: KB2MCP_STATE_DIR=.kb2mcp")
	}
	return nil
}

func stringIn(s string, set []string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

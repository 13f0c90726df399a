package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Options control where Load looks for configuration. ConfigPath is
// relative to WorkDir unless absolute.
type Options struct {
	ConfigPath   string
	WorkDir      string
	SkipValidate bool // print the config even when it would not validate
	// Overrides apply last (flags > env > dotenv > file > defaults).
	// Nil means no CLI overrides.
	Overrides *Overrides
}

// Overrides holds CLI flag values. Only non-nil fields are applied.
type Overrides struct {
	BackendURL   *string
	BackendToken *string
	LogLevel     *string
	MaxFileMB    *int
	StateDir     *string
}

// Load builds the effective config with precedence:
// defaults → .kb2mcp.yaml → .env.local/.env → KB2MCP_* env → Overrides.
// Errors are prefixed CONFIG_INVALID and suitable for exit code 2.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	// Dotenv files fill process env without overwriting variables that are
	// already set, so explicit env still wins.
	for _, name := range []string{".env.local", ".env"} {
		path := name
		if opts.WorkDir != "" {
			path = filepath.Join(opts.WorkDir, name)
		}
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("CONFIG_INVALID: cannot read %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("CONFIG_INVALID: failed loading %s: %w", path, err)
		}
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = DefaultConfigName
	}
	if !filepath.IsAbs(configPath) && opts.WorkDir != "" {
		configPath = filepath.Join(opts.WorkDir, configPath)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("CONFIG_INVALID: cannot read config file %s: %w", configPath, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("CONFIG_INVALID: malformed YAML in %s: %w", configPath, err)
	}

	cfg.Backend.Token = resolvePlaceholder(cfg.Backend.Token)

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if opts.Overrides != nil {
		applyOverrides(&cfg, opts.Overrides)
	}

	if !opts.SkipValidate {
		if err := Validate(&cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("KB2MCP_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("KB2MCP_BACKEND_TOKEN"); v != "" {
		cfg.Backend.Token = v
	}
	if v := os.Getenv("KB2MCP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("KB2MCP_STATE_DIR"); v != "" {
		cfg.State.Dir = v
	}
	if v := os.Getenv("KB2MCP_PROTOCOL_VERSION"); v != "" {
		cfg.Server.ProtocolVersion = v
	}
	if v := os.Getenv("KB2MCP_MAX_FILE_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONFIG_INVALID: KB2MCP_MAX_FILE_MB=%q is not an integer", v)
		}
		cfg.Upload.MaxFileMB = n
	}
	return nil
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o.BackendURL != nil {
		cfg.Backend.URL = *o.BackendURL
	}
	if o.BackendToken != nil {
		cfg.Backend.Token = *o.BackendToken
	}
	if o.LogLevel != nil {
		cfg.Log.Level = *o.LogLevel
	}
	if o.MaxFileMB != nil {
		cfg.Upload.MaxFileMB = *o.MaxFileMB
	}
	if o.StateDir != nil {
		cfg.State.Dir = *o.StateDir
	}
}

// resolvePlaceholder expands a ${VAR} value written by the config template
// against the environment. Unset variables resolve to empty.
func resolvePlaceholder(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}"))
	}
	return value
}

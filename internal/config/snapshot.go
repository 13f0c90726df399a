package config

// Snapshot returns a copy of cfg with secrets replaced by a hint at
// where to set them, safe to print or serialize.
func Snapshot(cfg *Config) Config {
	out := *cfg
	if out.Backend.Token != "" {
		out.Backend.Token = "<from env KB2MCP_BACKEND_TOKEN>"
	}
	return out
}

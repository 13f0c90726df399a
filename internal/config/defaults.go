package config

import "github.com/kb2mcp/kb2mcp/internal/protocol"

// Default returns the built-in configuration. Every layer that follows
// (file, dotenv, env, CLI) only overwrites what it explicitly sets.
func Default() Config {
	return Config{
		Version: 1,
		Backend: Backend{
			URL:                  "http://127.0.0.1:8080",
			SubmitTimeoutSeconds: 30,
			QueryTimeoutSeconds:  10,
		},
		Upload: Upload{
			MaxFileMB: 20,
		},
		Log: Log{
			Level: "info",
		},
		State: State{
			Dir:            ".kb2mcp",
			JournalEnabled: true,
		},
		Server: Server{
			ProtocolVersion: protocol.DefaultVersion,
		},
	}
}

package config

// DefaultYAML is the starter config written by `kb2mcp config init`.
// The token line keeps the secret in the environment.
const DefaultYAML = `version: 1

backend:
  url: "http://127.0.0.1:8080"
  token: "${KB2MCP_BACKEND_TOKEN}"
  submit_timeout_seconds: 30
  query_timeout_seconds: 10

upload:
  max_file_mb: 20

log:
  level: "info"

state:
  dir: ".kb2mcp"
  journal_enabled: true

server:
  protocol_version: "2025-11-25"
`

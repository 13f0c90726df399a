package protocol

const (
	ToolNameUpload = "upload"
	ToolNameQuery  = "query"
	ToolNameStatus = "status"
)

const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// String codes carried in structured error payloads alongside the
// human-readable message.
const (
	ErrorCodeMissingField   = "MISSING_FIELD"
	ErrorCodeInvalidField   = "INVALID_FIELD"
	ErrorCodeInvalidRange   = "INVALID_RANGE"
	ErrorCodeMethodNotFound = "METHOD_NOT_FOUND"
	ErrorCodeInternal       = "INTERNAL_ERROR"
)

// JSON-RPC 2.0 numeric error codes.
const (
	RPCCodeParseError     = -32700
	RPCCodeInvalidRequest = -32600
	RPCCodeMethodNotFound = -32601
	RPCCodeInvalidParams  = -32602
	RPCCodeInternalError  = -32603
)

const JSONRPCVersion = "2.0"

// DefaultVersion is the protocol revision the bridge answers with when the
// client requests one it does not speak.
const DefaultVersion = "2025-11-25"

// SupportedVersions lists the protocol revisions initialize will echo back.
var SupportedVersions = []string{
	"2024-11-05",
	"2025-03-26",
	"2025-06-18",
	DefaultVersion,
}

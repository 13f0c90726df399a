// Package payload converts between raw document bytes and the text-safe
// base64 form used to carry binary content inside protocol frames.
package payload

import (
	"encoding/base64"
	"strings"

	"github.com/kb2mcp/kb2mcp/internal/model"
)

// Decode reverses the standard base64 encoding. The decoded length is
// computed from the input length and padding before any buffer is
// allocated, so an oversized payload is rejected without materializing it.
// A limit <= 0 disables the size check.
func Decode(s string, limit int64) ([]byte, error) {
	if strings.ContainsAny(s, "\r\n \t") {
		return nil, &model.EncodingError{Message: "content contains whitespace, which is outside the base64 alphabet"}
	}

	if limit > 0 && len(s)%4 == 0 {
		if size := decodedSize(s); size > limit {
			return nil, &model.SizeLimitError{Size: size, Limit: limit}
		}
	}

	raw, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		return nil, &model.EncodingError{Message: "content is not valid base64", Cause: err}
	}
	return raw, nil
}

// Encode is the inverse of Decode, total over all byte sequences.
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// decodedSize returns the exact decoded byte count for a well-formed padded
// base64 string. Callers must have checked len(s)%4 == 0.
func decodedSize(s string) int64 {
	n := int64(len(s))
	if n == 0 {
		return 0
	}
	size := n / 4 * 3
	if strings.HasSuffix(s, "==") {
		size -= 2
	} else if strings.HasSuffix(s, "=") {
		size--
	}
	return size
}

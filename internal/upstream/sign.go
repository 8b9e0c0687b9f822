// Package upstream implements the client for the third-party gift-code API:
// request signing, bounded retries and normalization of the free-text result
// messages into outcome categories the orchestrator can act on.
package upstream

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Sign computes the signature the upstream requires on every payload: all
// keys sorted lexicographically, joined as key=value with '&', the shared
// secret appended, MD5 over the whole string, hex encoded. Non-string values
// are JSON-serialized before joining. MD5 here is a pinned wire detail of
// the upstream protocol, not a security choice on our side.
func Sign(payload map[string]any, secret string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+encodeValue(payload[k]))
	}

	sum := md5.Sum([]byte(strings.Join(parts, "&") + secret))
	return hex.EncodeToString(sum[:])
}

// SignedPayload returns a copy of payload with the "sign" field added.
func SignedPayload(payload map[string]any, secret string) map[string]any {
	signed := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		signed[k] = v
	}
	signed["sign"] = Sign(payload, secret)
	return signed
}

func encodeValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return fmt.Sprintf("%d", val)
	case int:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%v", val)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

package toolclient

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// requestHash mirrors internal/tools's requestPayloadHash: decoding to a
// map before re-marshaling relies on encoding/json emitting object keys in
// sorted order, so the cache key is stable regardless of the caller's
// original key order.
func requestHash(input json.RawMessage) string {
	var decoded any
	if len(input) > 0 {
		if err := json.Unmarshal(input, &decoded); err != nil {
			decoded = string(input)
		}
	}
	sorted, err := json.Marshal(decoded)
	if err != nil {
		sorted = input
	}
	h := sha256.Sum256(sorted)
	return hex.EncodeToString(h[:])[:16]
}

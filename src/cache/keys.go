package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"
)

const (
	DefaultListHashThreshold = 20
	DefaultMaxKeyLength      = 256
)

// KeyOptions tune cache key derivation.
type KeyOptions struct {
	// ListHashThreshold replaces list arguments with more items than this by
	// a content hash.
	ListHashThreshold int
	// MaxKeyLength collapses longer keys to a fixed-length hash.
	MaxKeyLength int
}

// DefaultKeyOptions returns the thresholds used by Key.
func DefaultKeyOptions() KeyOptions {
	return KeyOptions{ListHashThreshold: DefaultListHashThreshold, MaxKeyLength: DefaultMaxKeyLength}
}

// Key derives the cache key for a tool and its resolved arguments with the
// default options.
func Key(tool string, args map[string]any) string {
	return DefaultKeyOptions().Key(tool, args)
}

// Key returns "tool:<name>:<canonical JSON of args>". Map keys are sorted,
// so two argument maps that differ only in insertion order share a key.
func (o KeyOptions) Key(tool string, args map[string]any) string {
	keyArgs := make(map[string]any, len(args))
	for k, v := range args {
		if o.ListHashThreshold > 0 && listLen(v) > o.ListHashThreshold {
			keyArgs[k] = "sha256:" + HashKey(canonicalJSON(v))[:16]
			continue
		}
		keyArgs[k] = v
	}

	key := "tool:" + tool + ":" + canonicalJSON(keyArgs)
	if o.MaxKeyLength > 0 && len(key) > o.MaxKeyLength {
		return "tool:" + tool + ":h:" + HashKey(key)
	}
	return key
}

// Pattern returns a glob matching every key of a tool.
func Pattern(tool string) string {
	return "tool:" + tool + ":*"
}

// HashKey returns the hex SHA-256 of s.
func HashKey(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func canonicalJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "!" + err.Error()
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

func listLen(v any) int {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0
	}
	return rv.Len()
}

// ABOUTME: SHA-256 integrity hashing for manifesto and certification payloads
// ABOUTME: Produces lowercase hex digests and verifies them in constant time

package integrity

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash returns the hex-encoded SHA-256 digest of payload.
func Hash(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// HashJSON serializes v with encoding/json and returns the digest of the bytes.
// HTML characters and the U+2028/U+2029 separators are left unescaped so
// prompts containing them hash the same way JSON.stringify output does.
func HashJSON(v any) (string, error) {
	data, err := Serialize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Serialize returns the compact JSON form of v that HashJSON digests.
func Serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("serializing payload: %w", err)
	}
	return unescapeSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unescapeSeparators turns the \u2028 and \u2029 escapes encoding/json always
// emits back into raw UTF-8. Other escape pairs are copied untouched, so an
// escaped backslash followed by "u2028" is not rewritten.
func unescapeSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' || i+1 >= len(data) {
			out = append(out, data[i])
			continue
		}
		if i+5 < len(data) && data[i+1] == 'u' && string(data[i+2:i+5]) == "202" {
			switch data[i+5] {
			case '8':
				out = append(out, "\u2028"...)
				i += 5
				continue
			case '9':
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		out = append(out, data[i], data[i+1])
		i++
	}
	return out
}

// Verify reports whether digest is the hash of payload.
func Verify(payload, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(payload)), []byte(digest)) == 1
}

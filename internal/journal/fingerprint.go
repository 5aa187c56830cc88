package journal

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// fingerprintDomain separates journal fingerprints from any other sha256
// use. The version suffix allows the algorithm to change later.
const fingerprintDomain = "cozoq/script/v1"

// Fingerprint identifies a script call for replay: sha256 over the
// NFC-normalised script, the canonical form of its params and the mode.
// Param key order, insignificant whitespace and Unicode normalisation
// differences produce the same fingerprint.
func Fingerprint(script, paramsJSON string, immutable bool) string {
	mode := "mutable"
	if immutable {
		mode = "immutable"
	}

	h := sha256.New()
	for _, part := range []string{
		fingerprintDomain,
		norm.NFC.String(script),
		canonicalParams(paramsJSON),
		mode,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0x00})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalParams re-encodes params with sorted keys and no HTML escaping.
// Text that is not valid JSON is used as-is after normalisation.
func canonicalParams(paramsJSON string) string {
	trimmed := strings.TrimSpace(paramsJSON)
	if trimmed == "" {
		return "{}"
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return norm.NFC.String(trimmed)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return norm.NFC.String(trimmed)
	}
	return norm.NFC.String(strings.TrimSuffix(buf.String(), "\n"))
}

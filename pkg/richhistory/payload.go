package richhistory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxNormalizedExponent bounds the exponents expanded by normalizeNumber.
// Literals with larger exponents are kept as written.
const maxNormalizedExponent = 400

// replacementChar is what encoding/json substitutes for undecodable text.
const replacementChar = "\uFFFD"

// CanonicalPayload re-encodes a JSON query payload into a canonical form:
// object keys sorted, no insignificant whitespace, numbers normalized.
// Two payloads that are structurally equal produce identical bytes, and
// numbers keep their exact value.
//
// Returns an error wrapping ErrInvalidEntry if raw is empty, not valid JSON,
// or contains text that is not valid UTF-8.
func CanonicalPayload(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, invalidPayload("payload is empty")
	}
	if !utf8.Valid(trimmed) {
		return nil, invalidPayload("payload is not valid UTF-8")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, invalidPayload(fmt.Sprintf("payload is not valid JSON: %v", err))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, invalidPayload("payload has data after the top-level value")
	}

	// The decoder turns unpaired surrogate escapes into U+FFFD.
	if countReplacement(v) > bytes.Count(trimmed, []byte(replacementChar))+countEscapedReplacement(trimmed) {
		return nil, invalidPayload("payload contains an unpaired surrogate escape")
	}

	v = normalize(v)

	// encoding/json sorts map keys on output.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, invalidPayload(fmt.Sprintf("payload cannot be encoded: %v", err))
	}

	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func invalidPayload(msg string) error {
	return &ValidationError{Field: "queries", Message: msg, Kind: ErrInvalidEntry}
}

// normalize rewrites every number in a decoded value to its canonical literal.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	case json.Number:
		return json.Number(normalizeNumber(string(t)))
	default:
		return v
	}
}

// normalizeNumber returns the shortest exact decimal for a JSON number
// literal: integers without fraction or exponent, other values as a plain
// decimal without trailing zeros. 1.0 and 1e0 both become 1.
func normalizeNumber(lit string) string {
	mantissa, exp := lit, 0
	if i := strings.IndexAny(lit, "eE"); i >= 0 {
		n, err := strconv.Atoi(lit[i+1:])
		if err != nil || n > maxNormalizedExponent || n < -maxNormalizedExponent {
			return lit
		}
		mantissa, exp = lit[:i], n
	}

	r, ok := new(big.Rat).SetString(lit)
	if !ok {
		return lit
	}
	if r.IsInt() {
		return r.Num().String()
	}

	// A decimal literal needs at most this many fractional digits.
	prec := -exp
	if i := strings.IndexByte(mantissa, '.'); i >= 0 {
		prec += len(mantissa) - i - 1
	}
	s := r.FloatString(prec)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// countReplacement counts U+FFFD in the strings and keys of a decoded value.
func countReplacement(v any) int {
	switch t := v.(type) {
	case map[string]any:
		n := 0
		for k, e := range t {
			n += strings.Count(k, replacementChar) + countReplacement(e)
		}
		return n
	case []any:
		n := 0
		for _, e := range t {
			n += countReplacement(e)
		}
		return n
	case string:
		return strings.Count(t, replacementChar)
	default:
		return 0
	}
}

// countEscapedReplacement counts \ufffd escapes in raw JSON text.
func countEscapedReplacement(raw []byte) int {
	return bytes.Count(bytes.ToLower(raw), []byte(`\ufffd`))
}

// PayloadEqual reports whether two payloads are structurally equal.
// Invalid payloads are never equal to anything.
func PayloadEqual(a, b json.RawMessage) bool {
	ca, err := CanonicalPayload(a)
	if err != nil {
		return false
	}
	cb, err := CanonicalPayload(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}

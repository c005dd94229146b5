package richhistory

import (
	"encoding/json"
	"errors"
	"testing"
)

// TestCanonicalPayload tests that formatting differences collapse to one form.
func TestCanonicalPayload(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already canonical", `[{"expr":"up"}]`, `[{"expr":"up"}]`},
		{"whitespace", "[ { \"expr\" : \"up\" } ]\n", `[{"expr":"up"}]`},
		{"key order", `{"refId":"A","expr":"up"}`, `{"expr":"up","refId":"A"}`},
		{"nested key order", `{"b":{"y":1,"x":2},"a":[3,2,1]}`, `{"a":[3,2,1],"b":{"x":2,"y":1}}`},
		{"number forms", `{"n":1.0,"m":1e2}`, `{"m":100,"n":1}`},
		{"html not escaped", `{"expr":"a<b && c>d"}`, `{"expr":"a<b && c>d"}`},
		{"scalar", `"up"`, `"up"`},
		{"large integer", `{"id":9007199254740993}`, `{"id":9007199254740993}`},
		{"larger than int64", `[123456789012345678901234567890]`, `[123456789012345678901234567890]`},
		{"trailing zeros", `[1.50,-0.250,2.0e1]`, `[1.5,-0.25,20]`},
		{"negative exponent", `[1.5e-3,25E-1]`, `[0.0015,2.5]`},
		{"negative zero", `[-0.0]`, `[0]`},
		{"huge exponent kept", `[1e999]`, `[1e999]`},
		{"surrogate pair", `["\ud83d\ude00"]`, "[\"\U0001F600\"]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalPayload(json.RawMessage(tt.in))
			if err != nil {
				t.Fatalf("CanonicalPayload() failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("CanonicalPayload() = %s, want %s", got, tt.want)
			}
		})
	}
}

// TestCanonicalPayload_Invalid tests rejection of empty and malformed payloads.
func TestCanonicalPayload_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "{", `{"a":}`, `{} {}`, "[\"\xff\"]", `["\ud800"]`, `{"\udc00":1}`} {
		_, err := CanonicalPayload(json.RawMessage(in))
		if err == nil {
			t.Errorf("CanonicalPayload(%q) expected error", in)
			continue
		}
		if !errors.Is(err, ErrInvalidEntry) {
			t.Errorf("CanonicalPayload(%q) error = %v, want ErrInvalidEntry", in, err)
		}
	}
}

// TestPayloadEqual tests structural payload comparison.
func TestPayloadEqual(t *testing.T) {
	if !PayloadEqual(json.RawMessage(`{"a":1,"b":2}`), json.RawMessage(`{ "b": 2, "a": 1 }`)) {
		t.Error("Expected payloads with reordered keys to be equal")
	}
	if PayloadEqual(json.RawMessage(`{"a":1}`), json.RawMessage(`{"a":2}`)) {
		t.Error("Expected payloads with different values to differ")
	}
	if PayloadEqual(json.RawMessage(`[1,2]`), json.RawMessage(`[2,1]`)) {
		t.Error("Expected array order to matter")
	}
	if PayloadEqual(json.RawMessage(`{`), json.RawMessage(`{`)) {
		t.Error("Expected invalid payloads never to be equal")
	}
}

// TestPayloadEqual_Precision tests that numbers are compared exactly.
func TestPayloadEqual_Precision(t *testing.T) {
	if PayloadEqual(json.RawMessage(`{"id":9007199254740993}`), json.RawMessage(`{"id":9007199254740992}`)) {
		t.Error("Expected integers beyond float64 precision to differ")
	}
	if PayloadEqual(json.RawMessage(`[0.1]`), json.RawMessage(`[0.10000000000000001]`)) {
		t.Error("Expected decimals that round to the same float64 to differ")
	}
	if !PayloadEqual(json.RawMessage(`[1, 1.5]`), json.RawMessage(`[1.0, 15e-1]`)) {
		t.Error("Expected equal values in different notation to be equal")
	}
	if !PayloadEqual(json.RawMessage(`["\ufffd"]`), json.RawMessage("[\"\uFFFD\"]")) {
		t.Error("Expected an escaped replacement character to be accepted")
	}
}

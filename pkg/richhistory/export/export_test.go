package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/richhistory/pkg/richhistory"
)

func testEntries() []richhistory.Entry {
	comment := "slow, check \"rate\""
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []richhistory.Entry{
		{
			ID:             "a",
			CreatedAt:      base,
			DataSourceUID:  "prom",
			DataSourceName: "Prometheus",
			Queries:        json.RawMessage(`[{"expr":"up"}]`),
			Starred:        true,
			Comment:        &comment,
		},
		{
			ID:             "b",
			CreatedAt:      base.Add(time.Minute),
			DataSourceUID:  "loki",
			DataSourceName: "Loki",
			Queries:        json.RawMessage(`[{"expr":"{job=\"x\"}"}]`),
		},
	}
}

// TestJSONExporter_Export tests that JSON output decodes back to the entries.
func TestJSONExporter_Export(t *testing.T) {
	for _, pretty := range []bool{false, true} {
		var buf bytes.Buffer
		if err := NewJSONExporter(pretty).Export(context.Background(), testEntries(), &buf); err != nil {
			t.Fatalf("Export() failed: %v", err)
		}

		var decoded []richhistory.Entry
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("Failed to decode JSON: %v", err)
		}
		if len(decoded) != 2 {
			t.Fatalf("Expected 2 entries, got %d", len(decoded))
		}
		if decoded[0].ID != "a" || !decoded[0].Starred || decoded[0].Comment == nil {
			t.Errorf("Unexpected first entry %+v", decoded[0])
		}
		if decoded[1].Comment != nil {
			t.Error("Expected no comment on second entry")
		}
		if !decoded[1].CreatedAt.Equal(testEntries()[1].CreatedAt) {
			t.Errorf("CreatedAt = %v", decoded[1].CreatedAt)
		}
		if !richhistory.PayloadEqual(decoded[1].Queries, testEntries()[1].Queries) {
			t.Errorf("Queries changed: %s", decoded[1].Queries)
		}
	}
}

// TestJSONExporter_Empty tests that no entries produce an empty array.
func TestJSONExporter_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(false).Export(context.Background(), nil, &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("Export() = %q, want []", got)
	}
}

// TestJSONExporter_ExportStream tests streaming entries from a channel.
func TestJSONExporter_ExportStream(t *testing.T) {
	ch := make(chan richhistory.Entry)
	go func() {
		for _, e := range testEntries() {
			ch <- e
		}
		close(ch)
	}()

	var buf bytes.Buffer
	if err := NewJSONExporter(true).ExportStream(context.Background(), ch, &buf); err != nil {
		t.Fatalf("ExportStream() failed: %v", err)
	}

	var decoded []richhistory.Entry
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Failed to decode stream: %v\n%s", err, buf.String())
	}
	if len(decoded) != 2 || decoded[1].ID != "b" {
		t.Errorf("Unexpected stream result %+v", decoded)
	}
}

// TestJSONExporter_ExportStreamCancelled tests that cancellation stops the stream.
func TestJSONExporter_ExportStreamCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := NewJSONExporter(false).ExportStream(ctx, make(chan richhistory.Entry), &buf)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestCSVExporter_Export tests CSV rows and escaping.
func TestCSVExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(true).Export(context.Background(), testEntries(), &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(Header, ",") {
		t.Errorf("Header = %v", rows[0])
	}

	first := rows[1]
	if first[0] != "a" || first[2] != "prom" || first[4] != "true" {
		t.Errorf("Unexpected first row %v", first)
	}
	if first[5] != `slow, check "rate"` {
		t.Errorf("Comment = %q", first[5])
	}
	if first[6] != `[{"expr":"up"}]` {
		t.Errorf("Queries = %q", first[6])
	}
	if first[1] != "2024-05-01T12:00:00Z" {
		t.Errorf("CreatedAt = %q", first[1])
	}
	if rows[2][5] != "" || rows[2][4] != "false" {
		t.Errorf("Unexpected second row %v", rows[2])
	}
}

// TestCSVExporter_ExportStream tests streaming CSV without a header.
func TestCSVExporter_ExportStream(t *testing.T) {
	ch := make(chan richhistory.Entry, 2)
	for _, e := range testEntries() {
		ch <- e
	}
	close(ch)

	var buf bytes.Buffer
	if err := NewCSVExporter(false).ExportStream(context.Background(), ch, &buf); err != nil {
		t.Fatalf("ExportStream() failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(rows))
	}
}

// TestNew tests exporter selection by format.
func TestNew(t *testing.T) {
	if _, err := New("json", false); err != nil {
		t.Errorf("New(json) failed: %v", err)
	}
	if _, err := New("csv", false); err != nil {
		t.Errorf("New(csv) failed: %v", err)
	}
	if _, err := New("xml", false); err == nil {
		t.Error("Expected error for xml")
	}
}

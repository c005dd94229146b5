// Package export writes rich history entries as JSON or CSV.
//
// # JSON Export
//
// The JSON exporter always writes an array, so exported files can be read
// back with encoding/json regardless of how many entries they hold:
//
//	exporter := export.NewJSONExporter(true)
//	err := exporter.Export(ctx, entries, os.Stdout)
//
// # CSV Export
//
// The CSV exporter flattens each entry into one row. The query payload is
// written as its canonical JSON text:
//
//	exporter := export.NewCSVExporter(true)
//	err := exporter.Export(ctx, entries, f)
//
// # Streaming
//
// Both exporters also accept a channel of entries through ExportStream, which
// writes each entry as it arrives.
package export

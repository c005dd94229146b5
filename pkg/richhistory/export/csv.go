package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"mercator-hq/richhistory/pkg/richhistory"
)

// CSVExporter exports entries as CSV rows.
type CSVExporter struct {
	// IncludeHeader writes a header row first.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Header is the CSV column order.
var Header = []string{
	"id", "created_at", "datasource_uid", "datasource_name",
	"starred", "comment", "queries",
}

// Export writes entries to w.
func (e *CSVExporter) Export(ctx context.Context, entries []richhistory.Entry, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(Header); err != nil {
			return NewExportError("csv", 0, err)
		}
	}

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.Write(row(entry)); err != nil {
			return NewExportError("csv", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return NewExportError("csv", len(entries), err)
	}
	return nil
}

// ExportStream writes entries from ch until ch is closed, flushing every
// 100 rows.
func (e *CSVExporter) ExportStream(ctx context.Context, ch <-chan richhistory.Entry, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(Header); err != nil {
			return NewExportError("csv", 0, err)
		}
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case entry, ok := <-ch:
			if !ok {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return NewExportError("csv", count, err)
				}
				return nil
			}

			if err := writer.Write(row(entry)); err != nil {
				return NewExportError("csv", count, err)
			}
			count++

			if count%100 == 0 {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return NewExportError("csv", count, err)
				}
			}
		}
	}
}

func row(e richhistory.Entry) []string {
	comment := ""
	if e.Comment != nil {
		comment = *e.Comment
	}
	return []string{
		e.ID,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.DataSourceUID,
		e.DataSourceName,
		strconv.FormatBool(e.Starred),
		comment,
		string(e.Queries),
	}
}

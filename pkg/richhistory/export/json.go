package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/richhistory/pkg/richhistory"
)

// JSONExporter exports entries as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes entries to w. An empty slice is written as "[]".
func (e *JSONExporter) Export(ctx context.Context, entries []richhistory.Entry, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entries == nil {
		entries = []richhistory.Entry{}
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(entries, "", "  ")
	} else {
		data, err = json.Marshal(entries)
	}
	if err != nil {
		return NewExportError("json", 0, err)
	}

	if _, err := w.Write(append(data, '\n')); err != nil {
		return NewExportError("json", 0, err)
	}
	return nil
}

// ExportStream writes entries from ch as a JSON array until ch is closed.
func (e *JSONExporter) ExportStream(ctx context.Context, ch <-chan richhistory.Entry, w io.Writer) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return NewExportError("json", 0, err)
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case entry, ok := <-ch:
			if !ok {
				if _, err := io.WriteString(w, "]\n"); err != nil {
					return NewExportError("json", count, err)
				}
				return nil
			}

			if count > 0 {
				sep := ","
				if e.Pretty {
					sep = ",\n"
				}
				if _, err := io.WriteString(w, sep); err != nil {
					return NewExportError("json", count, err)
				}
			}

			data, err := e.encode(entry)
			if err != nil {
				return NewExportError("json", count, err)
			}
			if _, err := w.Write(data); err != nil {
				return NewExportError("json", count, err)
			}
			count++
		}
	}
}

func (e *JSONExporter) encode(entry richhistory.Entry) ([]byte, error) {
	if e.Pretty {
		return json.MarshalIndent(entry, "  ", "  ")
	}
	return json.Marshal(entry)
}

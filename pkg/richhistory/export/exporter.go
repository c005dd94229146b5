package export

import (
	"context"
	"fmt"
	"io"

	"mercator-hq/richhistory/pkg/richhistory"
)

// Exporter writes a batch of entries to w.
type Exporter interface {
	Export(ctx context.Context, entries []richhistory.Entry, w io.Writer) error
}

// Formats lists the supported export formats.
var Formats = []string{"json", "csv"}

// New returns the exporter for format.
func New(format string, pretty bool) (Exporter, error) {
	switch format {
	case "json":
		return NewJSONExporter(pretty), nil
	case "csv":
		return NewCSVExporter(true), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (supported: %v)", format, Formats)
	}
}

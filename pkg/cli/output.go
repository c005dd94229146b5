package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"mercator-hq/richhistory/pkg/richhistory"
	"mercator-hq/richhistory/pkg/richhistory/export"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is an aligned table (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV output.
	FormatCSV OutputFormat = "csv"
)

// maxQueryWidth truncates payloads in table output.
const maxQueryWidth = 60

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (must be text, json or csv)", s)
	}
}

// Formatter formats command output.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// TextFormatter formats output as plain text.
type TextFormatter struct{}

// FormatTo writes data to writer in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	_, err := fmt.Fprintf(w, "%+v\n", data)
	return err
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// NewFormatter creates a new formatter for the specified format.
// CSV has no generic form and falls back to JSON.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON, FormatCSV:
		return &JSONFormatter{Indent: true}
	default:
		return &TextFormatter{}
	}
}

// WriteResults prints a page of search results.
func WriteResults(ctx context.Context, w io.Writer, format OutputFormat, res richhistory.Results) error {
	switch format {
	case FormatJSON:
		return (&JSONFormatter{Indent: true}).FormatTo(w, res)
	case FormatCSV:
		return export.NewCSVExporter(true).Export(ctx, res.RichHistory, w)
	default:
		return writeTable(w, res)
	}
}

func writeTable(w io.Writer, res richhistory.Results) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tDATASOURCE\tSTAR\tCOMMENT\tQUERIES")
	for _, e := range res.RichHistory {
		star := ""
		if e.Starred {
			star = "*"
		}
		comment := ""
		if e.Comment != nil {
			comment = truncate(*e.Comment, 30)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.CreatedAt.Local().Format(time.DateTime),
			e.DataSourceName,
			star,
			comment,
			truncate(string(e.Queries), maxQueryWidth),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d of %d entries\n", len(res.RichHistory), res.Total)
	return err
}

// WriteEntry prints a single entry.
func WriteEntry(ctx context.Context, w io.Writer, format OutputFormat, e richhistory.Entry) error {
	if format == FormatText {
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.DataSourceName, e.Queries)
		return err
	}
	return WriteResults(ctx, w, format, richhistory.Results{RichHistory: []richhistory.Entry{e}, Total: 1})
}

// PrintWarning writes a store warning to w, usually stderr.
func PrintWarning(w io.Writer, warning *richhistory.Warning) {
	if warning == nil {
		return
	}
	fmt.Fprintf(w, "warning: %s\n", warning.Message)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

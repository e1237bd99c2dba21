// package formatter renders list screens and bulk results as text, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/models"
	"github.com/desertthunder/notedesk/internal/screens"
	"github.com/desertthunder/notedesk/internal/shared"
	"github.com/desertthunder/notedesk/internal/tasks"
	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"
)

// Format selects an output encoding.
type Format string

const (
	Text Format = "text"
	CSV  Format = "csv"
	JSON Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{Text, CSV, JSON}

// ParseFormat resolves a format name, defaulting to [Text] when empty.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return Text, nil
	}
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("%w: unknown format %q (want text, csv or json)", shared.ErrInvalidArgument, s)
	}
	return f, nil
}

// Render encodes v in format f.
func Render(f Format, v screens.View) ([]byte, error) {
	switch f {
	case CSV:
		return ExportToCSV(v)
	case JSON:
		return ExportToJSON(v)
	case Text, "":
		return ExportToText(v)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
}

// Write renders v to w.
func Write(w io.Writer, f Format, v screens.View) error {
	data, err := Render(f, v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile renders v and atomically replaces the file at path.
func WriteFile(path string, f Format, v screens.View) error {
	data, err := Render(f, v)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ExportToCSV writes a header of the view's columns followed by one record per row.
func ExportToCSV(v screens.View) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(append([]string{"id"}, v.Columns...)); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, row := range v.Rows {
		if err := writer.Write(append([]string{id(v, i)}, row...)); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToText renders a summary line, the active filters and the rows as a table.
func ExportToText(v screens.View) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(Summary(v) + "\n")
	if filters := FilterLine(v.Filters); filters != "" {
		buf.WriteString("Filters: " + filters + "\n")
	}
	if v.Err != nil {
		buf.WriteString(fmt.Sprintf("Error: %v\n", v.Err))
	}

	if len(v.Rows) == 0 {
		if !v.Loading {
			buf.WriteString("No results.\n")
		}
		return buf.Bytes(), nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(v.Columns...).
		Rows(v.Rows...)
	buf.WriteString(t.String() + "\n")

	return buf.Bytes(), nil
}

type jsonView struct {
	Resource   models.Resource   `json:"resource"`
	State      string            `json:"state"`
	Items      []any             `json:"items"`
	Pagination models.Pagination `json:"pagination"`
	Filters    map[string]string `json:"filters,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// ExportToJSON encodes the items with pagination and filter metadata.
func ExportToJSON(v screens.View) ([]byte, error) {
	items := v.Items
	if items == nil {
		items = []any{}
	}

	out := jsonView{
		Resource: v.Resource,
		State:    v.State.String(),
		Items:    items,
		Pagination: models.Pagination{
			Page:       v.Page,
			PageSize:   v.PageSize,
			TotalItems: v.TotalItems,
			TotalPages: v.TotalPages,
		},
		Filters: v.Filters.Active(),
	}
	if v.Err != nil {
		out.Error = v.Err.Error()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode view: %w", err)
	}
	return append(data, '\n'), nil
}

// Summary describes the view's position, e.g. "notes: page 2/3, 57 items".
func Summary(v screens.View) string {
	var b strings.Builder
	b.WriteString(string(v.Resource))
	b.WriteString(": ")

	switch {
	case v.Loading && v.FetchVersion <= 1 && len(v.Rows) == 0:
		b.WriteString("loading...")
		return b.String()
	case v.TotalPages == 0:
		b.WriteString("no items")
	default:
		b.WriteString(fmt.Sprintf("page %d/%d, %s %s", v.Page, v.TotalPages,
			humanize.Comma(int64(v.TotalItems)), plural(v.TotalItems, "item", "items")))
	}
	if v.Loading {
		b.WriteString(" (refreshing)")
	}
	return b.String()
}

// FilterLine renders the non-empty filters as sorted key=value pairs.
func FilterLine(s listsync.FilterState) string {
	active := s.Active()
	keys := make([]string, 0, len(active))
	for k := range active {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + active[k]
	}
	return strings.Join(parts, " ")
}

// BulkSummary describes a bulk run, listing each failure on its own line.
func BulkSummary(r *tasks.BulkResult) string {
	if r == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s: %d of %d succeeded", r.Action, r.Succeeded, r.Total))
	if len(r.Failed) > 0 {
		b.WriteString(fmt.Sprintf(", %d failed", len(r.Failed)))
	}
	if len(r.Skipped) > 0 {
		b.WriteString(fmt.Sprintf(", %d skipped", len(r.Skipped)))
	}
	for _, f := range r.Failed {
		b.WriteString(fmt.Sprintf("\n  %s: %v", f.ID, f.Err))
	}
	return b.String()
}

func id(v screens.View, i int) string {
	if i < len(v.IDs) {
		return v.IDs[i]
	}
	return ""
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

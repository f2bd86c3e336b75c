// Package export renders flat record sets as CSV, PDF, Excel or JSON files.
// Formatting is pure: results carry the file content and a generated name,
// and storing them is up to the caller.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"opas-admin-workers/internal/common/errors"
	"opas-admin-workers/internal/models"
)

// DefaultMaxCSVBytes caps CSV exports when no limit is configured.
const DefaultMaxCSVBytes int64 = 10 * 1024 * 1024

// Dataset is the input to every formatter. When Columns is empty the
// sorted union of all record keys is used.
type Dataset struct {
	Name    string
	Title   string
	Columns []string
	Records []models.Record
}

type Options struct {
	Delimiter      rune
	IncludeHeaders bool
	// MaxCSVBytes rejects CSV exports whose estimated size is larger.
	// Zero means DefaultMaxCSVBytes; negative disables the check.
	MaxCSVBytes int64
}

// DefaultOptions matches the admin console defaults.
func DefaultOptions() Options {
	return Options{Delimiter: ',', IncludeHeaders: true, MaxCSVBytes: DefaultMaxCSVBytes}
}

type Formatter struct {
	opts Options
	now  func() time.Time
}

func NewFormatter(opts Options) *Formatter {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.MaxCSVBytes == 0 {
		opts.MaxCSVBytes = DefaultMaxCSVBytes
	}
	return &Formatter{opts: opts, now: time.Now}
}

// WithClock returns a copy of f that reads the time from now.
func (f *Formatter) WithClock(now func() time.Time) *Formatter {
	cp := *f
	cp.now = now
	return &cp
}

// Format dispatches to the formatter for format.
func (f *Formatter) Format(format string, ds Dataset) (*models.ExportResult, error) {
	switch strings.ToLower(format) {
	case models.FormatCSV:
		return f.CSV(ds)
	case models.FormatPDF:
		return f.PDF(ds)
	case models.FormatExcel, "xlsx":
		return f.Excel(ds)
	case models.FormatJSON:
		return f.JSON(ds)
	default:
		return nil, errors.NewExportUnsupportedFormatError(format)
	}
}

// SupportedFormats lists the accepted format names.
func SupportedFormats() []string {
	return []string{models.FormatCSV, models.FormatPDF, models.FormatExcel, models.FormatJSON}
}

func (f *Formatter) result(format, ext string, ds Dataset, content []byte, at time.Time) *models.ExportResult {
	return &models.ExportResult{
		Format:      format,
		FileName:    FileName(ds.Name, ext, at),
		SizeBytes:   int64(len(content)),
		RecordCount: len(ds.Records),
		Timestamp:   at,
		Content:     content,
	}
}

// FileName builds export_<name>_<timestamp>.<ext> with the colons of the
// ISO timestamp replaced by dashes so the name is valid on every filesystem.
func FileName(name, ext string, at time.Time) string {
	ts := strings.ReplaceAll(at.Format("2006-01-02T15:04:05.000"), ":", "-")
	return fmt.Sprintf("export_%s_%s.%s", name, ts, ext)
}

// columns returns the explicit column list or the sorted union of keys.
func columns(ds Dataset) []string {
	if len(ds.Columns) > 0 {
		return ds.Columns
	}
	seen := make(map[string]struct{})
	for _, r := range ds.Records {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// formatValue renders a record value as display text.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// requireRecords rejects datasets with no rows, or with rows but no columns
// to lay them out in.
func requireRecords(format string, ds Dataset) error {
	if len(ds.Records) == 0 {
		return errors.NewExportEmptyDatasetError(format)
	}
	if len(columns(ds)) == 0 {
		return errors.NewExportEmptyDatasetError(format).WithMetadata("reason", "records have no fields")
	}
	return nil
}

// ContentType returns the MIME type of files produced for format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case models.FormatCSV:
		return "text/csv; charset=utf-8"
	case models.FormatPDF:
		return "application/pdf"
	case models.FormatExcel, "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case models.FormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

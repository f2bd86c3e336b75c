package export

import (
	"strings"

	"opas-admin-workers/internal/common/errors"
	"opas-admin-workers/internal/models"
)

// CSV renders ds as delimited text. Rows are joined with "\n" and the
// output has no trailing newline.
func (f *Formatter) CSV(ds Dataset) (*models.ExportResult, error) {
	if err := requireRecords(models.FormatCSV, ds); err != nil {
		return nil, err
	}

	cols := columns(ds)
	delim := string(f.opts.Delimiter)

	// Reject before any buffer is allocated.
	if f.opts.MaxCSVBytes > 0 {
		if est := estimateCSVSize(ds, cols); est > f.opts.MaxCSVBytes {
			return nil, errors.NewExportTooLargeError(est, f.opts.MaxCSVBytes)
		}
	}

	lines := make([]string, 0, len(ds.Records)+1)
	if f.opts.IncludeHeaders {
		lines = append(lines, f.csvRow(cols, delim))
	}
	fields := make([]string, len(cols))
	for _, rec := range ds.Records {
		for i, c := range cols {
			fields[i] = formatValue(rec[c])
		}
		lines = append(lines, f.csvRow(fields, delim))
	}

	now := f.now()
	return f.result(models.FormatCSV, "csv", ds, []byte(strings.Join(lines, "\n")), now), nil
}

func (f *Formatter) csvRow(fields []string, delim string) string {
	// A lone empty field would otherwise produce a blank line, which CSV
	// readers skip.
	if len(fields) == 1 && fields[0] == "" {
		return `""`
	}
	escaped := make([]string, len(fields))
	for i, v := range fields {
		escaped[i] = escapeCSV(v, delim)
	}
	return strings.Join(escaped, delim)
}

// escapeCSV quotes value when it contains the delimiter, a quote or a line
// break, doubling any inner quotes.
func escapeCSV(value, delim string) string {
	if strings.Contains(value, delim) || strings.ContainsAny(value, "\"\n\r") {
		return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
	}
	return value
}

// estimateCSVSize is an upper bound on the rendered size: every field is
// assumed quoted and followed by a delimiter or newline.
func estimateCSVSize(ds Dataset, cols []string) int64 {
	var size int64
	for _, c := range cols {
		size += int64(len(c)) + 3
	}
	for _, rec := range ds.Records {
		for _, c := range cols {
			v := formatValue(rec[c])
			size += int64(len(v)+strings.Count(v, `"`)) + 3
		}
	}
	return size
}

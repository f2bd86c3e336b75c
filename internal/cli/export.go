package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"opas-admin-workers/internal/export"
	"opas-admin-workers/internal/models"
	exportrecords "opas-admin-workers/internal/workers/reporting/export-records"

	"github.com/spf13/cobra"
)

type exportFlags struct {
	format    string
	source    string
	name      string
	title     string
	batchID   string
	input     string
	outDir    string
	delimiter string
	store     bool
}

func newExportCommand(root *rootOptions) *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records or the approval audit trail to csv, pdf, excel or json",
		Example: `  opas-admin export --input sellers.json --format excel --out ./exports
  opas-admin export --source approval_audit --batch-id BATCH_1717236000000 --format pdf --store`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input := &exportrecords.Input{
				Name:    f.name,
				Title:   f.title,
				Format:  f.format,
				Source:  f.source,
				BatchID: f.batchID,
			}
			if f.input != "" {
				records, err := readRecords(f.input)
				if err != nil {
					return err
				}
				input.Records = records
			}

			// Inline exports written to disk need no backend.
			if !f.store && f.source != exportrecords.SourceApprovalAudit {
				if len(f.delimiter) != 1 {
					return fmt.Errorf("--delimiter must be a single character")
				}
				opts := export.DefaultOptions()
				opts.Delimiter = rune(f.delimiter[0])
				h := exportrecords.NewHandler(nil, export.NewFormatter(opts), nil, nil, nil, root.logger())
				res, err := h.Render(cmd.Context(), input)
				if err != nil {
					return err
				}
				return writeExport(cmd, f.outDir, res)
			}

			a, err := root.loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if f.store {
				out, err := a.Export.Execute(cmd.Context(), input)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			res, err := a.Export.Render(cmd.Context(), input)
			if err != nil {
				return err
			}
			return writeExport(cmd, f.outDir, res)
		},
	}
	cmd.Flags().StringVar(&f.format, "format", models.FormatCSV, "csv, pdf, excel or json")
	cmd.Flags().StringVar(&f.source, "source", exportrecords.SourceInline, "inline or approval_audit")
	cmd.Flags().StringVar(&f.name, "name", "", "export name used in the file name")
	cmd.Flags().StringVar(&f.title, "title", "", "document title for pdf exports")
	cmd.Flags().StringVar(&f.batchID, "batch-id", "", "limit approval_audit exports to one batch")
	cmd.Flags().StringVar(&f.input, "input", "", "JSON file holding an array of records")
	cmd.Flags().StringVar(&f.outDir, "out", ".", "directory the file is written to")
	cmd.Flags().StringVar(&f.delimiter, "delimiter", ",", "csv delimiter for inline exports")
	cmd.Flags().BoolVar(&f.store, "store", false, "store the file in the configured export bucket instead of --out")
	return cmd
}

func readRecords(path string) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}

func writeExport(cmd *cobra.Command, dir string, res *models.ExportResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, res.FileName)
	if err := os.WriteFile(path, res.Content, 0o644); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d records, %d bytes)\n", path, res.RecordCount, res.SizeBytes)
	return err
}

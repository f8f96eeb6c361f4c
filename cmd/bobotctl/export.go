package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobotlabs/bobot/internal/export"
)

var (
	exportFormat string
	exportOutput string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the saved transcript",
	Long: `Export the locally persisted conversation in a portable format.

Formats: json, yaml, md. Writes to stdout unless --output names a file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, openErr := openWidget(cmd.Context())
		if openErr != nil {
			return openErr
		}
		defer handle.Close()

		exporter, exporterErr := export.NewExporter(exportFormat)
		if exporterErr != nil {
			return exporterErr
		}

		transcript := &export.Transcript{
			CompanyID:      companyID,
			SessionID:      handle.SessionID(),
			ConversationID: handle.ConversationID(),
			ExportedAt:     time.Now().UTC(),
			Messages:       handle.Messages(),
		}

		destination := os.Stdout
		if exportOutput != "" {
			outputFile, createErr := os.Create(exportOutput)
			if createErr != nil {
				return fmt.Errorf("failed to create output file: %w", createErr)
			}
			defer func() { _ = outputFile.Close() }()
			destination = outputFile
		}

		if exportErr := exporter.Export(transcript, destination); exportErr != nil {
			return fmt.Errorf("failed to export transcript: %w", exportErr)
		}

		if exportOutput != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", exportOutput)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format (json, yaml, md)")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Destination file, stdout when empty")
	rootCmd.AddCommand(exportCmd)
}

// commands/tasks.go
package commands

import (
	"log/slog"
	"os"

	"github.com/gewnthar/surveyetl/report"
	"github.com/spf13/cobra"
)

var (
	metadataCSV  string
	showMetadata bool
)

func init() {
	metadataCmd.Flags().StringVar(&metadataCSV, "csv", "", "also export the metadata table to this CSV file")
	metadataCmd.Flags().BoolVar(&showMetadata, "show", false, "print the metadata table")

	rootCmd.AddCommand(downloadCmd, loadCmd, metadataCmd, chartsCmd, publishCmd)
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Downloads every survey archive published since the configured year.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.pipeline.RunTask(cmd.Context(), "download")
	},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Loads every downloaded survey archive into the output target.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.pipeline.RunTask(cmd.Context(), "load")
	},
}

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Builds the cross-year column metadata table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if metadataCSV != "" {
			a.cfg.Output.MetadataCSV = metadataCSV
		}

		meta, err := a.pipeline.BuildMetadata(cmd.Context())
		if showMetadata && len(meta) > 0 {
			report.RenderTable(os.Stdout, meta)
		}
		if err != nil {
			return err
		}
		slog.Info("metadata table rebuilt", "rows", len(meta))
		return nil
	},
}

var chartsCmd = &cobra.Command{
	Use:   "charts",
	Short: "Renders the summary charts as HTML pages.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.pipeline.RenderCharts(cmd.Context())
		for _, f := range files {
			slog.Info("chart written", "path", f)
		}
		return err
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Uploads the rendered charts to the configured S3 bucket.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.withPublisher(cmd.Context()); err != nil {
			return err
		}

		keys, err := a.pipeline.PublishCharts(cmd.Context())
		for _, k := range keys {
			slog.Info("chart published", "bucket", a.cfg.Publish.Bucket, "key", k)
		}
		return err
	},
}

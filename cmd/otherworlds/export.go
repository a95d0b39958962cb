package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cebartling/otherworlds-rpg/internal/archive"
)

var (
	exportOutPath  string
	exportS3Bucket string
	exportS3Key    string
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutPath, "out", "o", "", "write the artifact to this local path")
	exportCmd.Flags().StringVar(&exportS3Bucket, "s3-bucket", "", "upload the artifact to this S3 bucket")
	exportCmd.Flags().StringVar(&exportS3Key, "s3-key", "", "object key for the upload (defaults to runs/<stream-id>.jsonl.zst)")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <stream-id>",
	Short: "Export a stream as a zstd-compressed JSONL artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		streamID := args[0]
		if exportOutPath == "" && exportS3Bucket == "" {
			return fmt.Errorf("either --out or --s3-bucket is required")
		}

		st, err := openJournal()
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer st.Close()

		var dest archive.Destination
		switch {
		case exportS3Bucket != "":
			key := exportS3Key
			if key == "" {
				key = archive.ObjectKey(streamID)
			}
			dest, err = archive.NewS3Destination(cmd.Context(), exportS3Bucket, key, cfg.S3Region, cfg.S3Endpoint)
			if err != nil {
				return err
			}
		default:
			dest = archive.FileDestination{Path: exportOutPath}
		}

		written, err := archive.Export(cmd.Context(), st, streamID, dest)
		if err != nil {
			return fmt.Errorf("export %s: %w", streamID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d events from %s\n", written, streamID)
		return nil
	},
}

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"reelgate/internal/storage"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	videosCmd := &cobra.Command{
		Use:   "videos",
		Short: "Inspect stored videos in the active backend",
	}
	videosCmd.AddCommand(newVideosListCommand(ctx))
	videosCmd.AddCommand(newVideosShowCommand(ctx))
	videosCmd.AddCommand(newVideosPublishCommand(ctx))
	return videosCmd
}

func newVideosListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored videos, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := ctx.openBackend(cmd.Context(), ctx.cliLogger())
			if err != nil {
				return err
			}
			defer backend.Close()

			records, err := backend.ListRecords(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				if records == nil {
					records = []storage.VideoRecord{}
				}
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No stored videos")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					rec.ID,
					rec.Topic,
					string(rec.Status),
					storage.FormatTimestamp(rec.CreatedAt),
					strconv.FormatInt(rec.FileSize, 10),
					yesNo(rec.Published()),
				})
			}
			writeRows(out, []string{"ID", "Topic", "Status", "Created", "Bytes", "Published"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newVideosShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one stored video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := ctx.openBackend(cmd.Context(), ctx.cliLogger())
			if err != nil {
				return err
			}
			defer backend.Close()

			rec, err := backend.GetRecord(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, rec)
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newVideosPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <id> <publish-id>",
		Short: "Record the external publish id of a stored video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := ctx.openBackend(cmd.Context(), ctx.cliLogger())
			if err != nil {
				return err
			}
			defer backend.Close()

			rec, err := storage.MarkPublished(cmd.Context(), backend, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Video %s published as %s\n", rec.ID, rec.PublishID)
			return nil
		},
	}
}

func printRecord(out io.Writer, rec storage.VideoRecord) {
	fmt.Fprintf(out, "ID:        %s\n", rec.ID)
	fmt.Fprintf(out, "Topic:     %s\n", rec.Topic)
	fmt.Fprintf(out, "Status:    %s\n", rec.Status)
	fmt.Fprintf(out, "Created:   %s\n", storage.FormatTimestamp(rec.CreatedAt))
	fmt.Fprintf(out, "File:      %s\n", rec.Filename)
	fmt.Fprintf(out, "Key:       %s\n", rec.StorageKey)
	fmt.Fprintf(out, "Size:      %d bytes\n", rec.FileSize)
	fmt.Fprintf(out, "Duration:  %.1fs\n", rec.DurationSeconds)
	fmt.Fprintf(out, "Playable:  %s\n", yesNo(rec.Playable))
	fmt.Fprintf(out, "URL:       %s\n", rec.URL)
	if rec.Published() {
		fmt.Fprintf(out, "Published: %s\n", rec.PublishID)
	}
}

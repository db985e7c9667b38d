package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"reelgate/internal/config"
	"reelgate/internal/logging"
	"reelgate/internal/migration"
	"reelgate/internal/notifications"
	"reelgate/internal/storage/localfs"
	"reelgate/internal/storage/sqlitestore"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var (
		source      string
		dryRun      bool
		deleteLocal bool
		workers     int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy locally stored videos into the configured remote backend",
		Long: "Reads the local metadata file and embedded database from the source directory,\n" +
			"copies every video the active backend does not hold yet, and verifies each copy.\n" +
			"Re-running after a partial failure only copies what is still missing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sourceDir := strings.TrimSpace(source)
			if sourceDir == "" {
				sourceDir = cfg.Paths.VideosDir
			}
			sourceDir, err = config.ExpandPath(sourceDir)
			if err != nil {
				return fmt.Errorf("resolve source: %w", err)
			}
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Migration.Workers
			}

			logger := ctx.cliLogger()
			target, err := ctx.openBackend(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer target.Close()

			if isLocalProfile(target.Name()) && samePath(sourceDir, cfg.Paths.VideosDir) {
				return fmt.Errorf("active backend %q stores into %s, the migration source; configure a remote backend first", target.Name(), sourceDir)
			}

			tool := migration.NewTool(target, notifications.NewService(cfg), logger)
			out := cmd.OutOrStdout()

			if dryRun {
				plan, err := tool.Plan(cmd.Context(), sourceDir)
				if err != nil {
					return err
				}
				printPlan(out, plan)
				return nil
			}

			plan, report, err := tool.Run(cmd.Context(), sourceDir, migration.Options{
				DeleteLocal: deleteLocal,
				Workers:     workers,
			})
			if err != nil {
				return err
			}
			logger.Debug("migration plan executed",
				logging.String(logging.FieldBackend, plan.Target),
				logging.Int("items", len(plan.Items)),
			)
			printReport(out, report)
			if code := report.ExitCode(); code != 0 {
				return exitCodeError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Local videos directory to migrate (defaults to paths.videos_dir)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be migrated without copying")
	cmd.Flags().BoolVar(&deleteLocal, "delete-local", false, "Delete each local file after its copy is verified")
	cmd.Flags().IntVar(&workers, "workers", 1, "Concurrent copies")
	return cmd
}

func isLocalProfile(name string) bool {
	return name == localfs.ProfileName || name == sqlitestore.ProfileName
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func printPlan(out io.Writer, plan migration.Plan) {
	rows := make([][]string, 0, len(plan.Items))
	for _, item := range plan.Items {
		rows = append(rows, []string{item.Record.ID, item.Record.Topic, string(item.Action), item.Reason})
	}
	fmt.Fprintf(out, "Source: %s\nTarget: %s\n", plan.Source, plan.Target)
	if len(rows) > 0 {
		writeRows(out, []string{"ID", "Topic", "Action", "Reason"}, rows, nil)
	}
	fmt.Fprintf(out, "%d to migrate, %d already present, %d missing locally\n",
		plan.Count(migration.ActionMigrate),
		plan.Count(migration.ActionSkip),
		plan.Count(migration.ActionMissing),
	)
}

func printReport(out io.Writer, report migration.Report) {
	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		detail := res.Key
		if res.Error != "" {
			detail = res.Error
		}
		rows = append(rows, []string{res.ID, string(res.Outcome), yesNo(res.Deleted), detail})
	}
	fmt.Fprintf(out, "Target: %s\n", report.Target)
	if len(rows) > 0 {
		writeRows(out, []string{"ID", "Outcome", "Deleted", "Detail"}, rows, nil)
	}
	fmt.Fprintf(out, "Migrated %d, skipped %d, failed %d\n", report.Migrated, report.Skipped, report.Failed)
}

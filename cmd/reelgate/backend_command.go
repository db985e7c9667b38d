package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelgate/internal/storageaccess"
)

func newBackendCommand(ctx *commandContext) *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Show which storage backend the current environment selects",
		Long: "Profiles are checked in priority order. The first profile whose keys are all\n" +
			"present is selected; --probe also constructs it, falling through on failure.",
		RunE: func(cmd *cobra.Command, args []string) error {
			environ, err := ctx.environment()
			if err != nil {
				return err
			}
			res := storageaccess.Resolve(environ)
			out := cmd.OutOrStdout()

			rows := make([][]string, 0, len(res.Profiles))
			for _, status := range res.Profiles {
				missing := strings.Join(status.Missing, ", ")
				if missing == "" {
					missing = "-"
				}
				rows = append(rows, []string{status.Name, yesNo(status.Complete()), missing})
			}
			writeRows(out, []string{"Profile", "Complete", "Missing"}, rows, nil)

			if !probe {
				fmt.Fprintf(out, "Selected: %s\n", res.Selected)
				return nil
			}
			backend, err := ctx.openBackend(cmd.Context(), ctx.cliLogger())
			if err != nil {
				return err
			}
			defer backend.Close()
			fmt.Fprintf(out, "Selected: %s\n", backend.Name())
			return nil
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "Construct the backend to confirm it is reachable")
	return cmd
}

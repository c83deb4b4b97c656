package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/merge-warden/internal/workflow"
)

var outputJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows the queue statistics and service health of a running Merge-Warden instance",
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()
		client := newAPIClient(serverURL)

		var status workflow.Status
		if err := client.get(ctx, "/api/v1/workflow/status", &status); err != nil {
			return fmt.Errorf("failed to retrieve workflow status: %w", err)
		}

		if outputJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(status)
		}

		color.New(color.FgCyan, color.Bold).Println("Merge-Warden Status")
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "PENDING\tPROCESSING\tCOMPLETED\tFAILED\tTOTAL")
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n",
			status.Queue.Pending,
			status.Queue.Processing,
			status.Queue.Completed,
			status.Queue.Failed,
			status.Queue.Total,
		)
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Println()
		for name, up := range status.Services {
			if up {
				color.New(color.FgGreen).Printf("  %s: up\n", name)
			} else {
				color.New(color.FgRed).Printf("  %s: down\n", name)
			}
		}
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	statusCmd.Flags().BoolVar(&outputJSON, "json", false, "Output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

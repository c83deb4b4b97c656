package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/merge-warden/internal/core"
)

var jobOutputJSON bool

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect and manage analysis jobs",
}

var jobGetCmd = &cobra.Command{
	Use:   "get [job-id]",
	Short: "Show a single analysis job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := context.Background()
		client := newAPIClient(serverURL)

		var job core.Job
		if err := client.get(ctx, "/api/v1/jobs/"+args[0], &job); err != nil {
			return fmt.Errorf("failed to retrieve job: %w", err)
		}

		if jobOutputJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(job)
		}

		printJob(&job)
		return nil
	},
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel [job-id]",
	Short: "Cancel a pending analysis job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := context.Background()
		client := newAPIClient(serverURL)

		if err := client.do(ctx, http.MethodDelete, "/api/v1/jobs/"+args[0], nil, nil); err != nil {
			return fmt.Errorf("failed to cancel job: %w", err)
		}

		color.New(color.FgGreen).Printf("Job %s cancelled.\n", args[0])
		return nil
	},
}

func printJob(job *core.Job) {
	color.New(color.FgCyan, color.Bold).Printf("Job %s\n", job.ID)
	fmt.Printf("  Type:    %s\n", job.Type)
	fmt.Printf("  Status:  %s\n", coloredStatus(job.Status))
	if job.Payload != nil {
		fmt.Printf("  PR:      %s#%d (%s)\n", job.Payload.RepoFullName, job.Payload.PRNumber, job.Payload.Title)
	}
	fmt.Printf("  Created: %s\n", job.CreatedAt.Format(time.RFC822))
	if job.StartedAt != nil {
		fmt.Printf("  Started: %s\n", job.StartedAt.Format(time.RFC822))
	}
	if job.CompletedAt != nil {
		fmt.Printf("  Ended:   %s\n", job.CompletedAt.Format(time.RFC822))
	}
	if job.RetryCount > 0 {
		fmt.Printf("  Retries: %d/%d\n", job.RetryCount, job.MaxRetries)
	}
	if job.Error != "" {
		color.New(color.FgRed).Printf("  Error:   %s\n", job.Error)
	}
	if job.Result != nil {
		fmt.Printf("  Score:   %d/100 (%s)\n", job.Result.MergeScore, job.Result.Status)
	}
}

func coloredStatus(status core.JobStatus) string {
	switch status {
	case core.JobStatusCompleted:
		return color.GreenString(string(status))
	case core.JobStatusFailed:
		return color.RedString(string(status))
	case core.JobStatusProcessing:
		return color.YellowString(string(status))
	default:
		return string(status)
	}
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	jobGetCmd.Flags().BoolVar(&jobOutputJSON, "json", false, "Output job as JSON")
	jobCmd.AddCommand(jobGetCmd)
	jobCmd.AddCommand(jobCancelCmd)
	rootCmd.AddCommand(jobCmd)
}

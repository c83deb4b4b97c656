package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/merge-warden/internal/workflow"
)

var (
	triggerInstallation int64
	triggerOwner        string
	triggerRepo         string
	triggerPR           int
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Manually queue an AI merge-readiness analysis for a Pull Request",
	Long: `Manually queue an AI merge-readiness analysis for a Pull Request.

The server fetches the PR from GitHub, applies the same eligibility rules as
the webhook path (no drafts, linked issue required), and queues an analysis
job if one is not already in flight.

Example:
  warden-cli trigger --installation 12345 --owner acme --repo widgets --pr 42`,
	RunE: runTrigger,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	triggerCmd.Flags().Int64Var(&triggerInstallation, "installation", 0, "GitHub App installation ID")
	triggerCmd.Flags().StringVar(&triggerOwner, "owner", "", "Repository owner")
	triggerCmd.Flags().StringVar(&triggerRepo, "repo", "", "Repository name")
	triggerCmd.Flags().IntVar(&triggerPR, "pr", 0, "Pull request number")

	for _, flag := range []string{"installation", "owner", "repo", "pr"} {
		_ = triggerCmd.MarkFlagRequired(flag)
	}
	rootCmd.AddCommand(triggerCmd)
}

func runTrigger(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	client := newAPIClient(serverURL)

	req := workflow.TriggerRequest{
		InstallationID: triggerInstallation,
		RepoOwner:      triggerOwner,
		RepoName:       triggerRepo,
		PRNumber:       triggerPR,
	}

	var result workflow.Result
	if err := client.do(ctx, http.MethodPost, "/api/v1/reviews/trigger", &req, &result); err != nil {
		return fmt.Errorf("failed to trigger analysis: %w", err)
	}

	switch {
	case result.Skipped:
		color.New(color.FgYellow).Printf("Analysis skipped: %s\n", result.Reason)
	case result.AlreadyQueued:
		color.New(color.FgYellow).Printf("Analysis already in flight, job %s\n", result.JobID)
		fmt.Printf("Check progress with: warden-cli job get %s\n", result.JobID)
	default:
		color.New(color.FgGreen).Printf("Analysis queued, job %s\n", result.JobID)
		fmt.Printf("Check progress with: warden-cli job get %s\n", result.JobID)
	}
	return nil
}

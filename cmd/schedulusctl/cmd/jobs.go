package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/schedulus-api/internal/dto"
	"github.com/noah-isme/schedulus-api/internal/models"
	"github.com/noah-isme/schedulus-api/pkg/client"
)

var (
	followJob       bool
	pollInterval    time.Duration
	maxPolls        int
	solverTimeLimit int
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize the session timetable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		job, err := c.SubmitOptimization(cmd.Context(), dto.OptimizationRequest{SolverTimeLimitSeconds: solverTimeLimit})
		if err != nil {
			return err
		}
		if !followJob {
			return printJob(job)
		}
		return follow(cmd, c, job.ID)
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect optimization jobs",
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Get job status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		if followJob {
			return follow(cmd, c, args[0])
		}
		job, err := c.JobStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJob(job)
	},
}

func follow(cmd *cobra.Command, c *client.Client, id string) error {
	if !isJSONOutput() {
		fmt.Fprintf(out, "Following job %s (press Ctrl+C to stop)...\n", id)
	}
	job, err := c.WaitForJob(cmd.Context(), id, pollInterval, maxPolls)
	if job != nil {
		if printErr := printJob(job); printErr != nil {
			return printErr
		}
	}
	if err != nil {
		return err
	}
	if job.Status == models.JobStatusFailed {
		return fmt.Errorf("job %s failed", job.ID)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(optimizeCmd, jobsCmd)
	jobsCmd.AddCommand(jobsStatusCmd)

	for _, c := range []*cobra.Command{optimizeCmd, jobsStatusCmd} {
		c.Flags().BoolVar(&followJob, "follow", false, "poll until the job finishes")
		c.Flags().DurationVar(&pollInterval, "interval", time.Second, "poll interval used with --follow")
		c.Flags().IntVar(&maxPolls, "max-polls", 120, "give up after this many polls, 0 for no limit")
	}
	optimizeCmd.Flags().IntVar(&solverTimeLimit, "time-limit", 0, "solver time limit in seconds")
}

package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pearsonlabs/factorpipe/internal/scheduler"
	"github.com/pearsonlabs/factorpipe/internal/scheduler/jobs"
	"github.com/pearsonlabs/factorpipe/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the transform scheduler daemon",
	Long: `Starts the scheduler and registers the daily factor transform job.

The schedule comes from PIPELINE_SCHEDULE (cron with seconds field,
default "0 30 6 * * *"). When Redis is enabled a run lock keeps
concurrent deployments from running the same transform twice.

Example:
  go run ./cmd/factorpipe scheduler`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	redisClient, err := redis.New(s.cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	sched := scheduler.New(s.log)
	job := jobs.NewTransformJob(s.pipeline, s.cfg, redisClient, s.log)
	if err := sched.AddJob(job); err != nil {
		return fmt.Errorf("register job: %w", err)
	}

	sched.Start()

	fmt.Println("=== Factorpipe Scheduler ===")
	fmt.Printf("Job:      %s\n", job.Name())
	fmt.Printf("Schedule: %s\n", job.Schedule())
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

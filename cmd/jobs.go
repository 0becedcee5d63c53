package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/monitoring"
	"github.com/sells-group/leadgen/internal/publish"
	"github.com/sells-group/leadgen/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect the job ledger",
	Long:  "Commands for listing and viewing lead generation jobs.",
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("jobs"); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		state, _ := cmd.Flags().GetString("state")
		city, _ := cmd.Flags().GetString("city")
		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := st.ListJobs(ctx, store.JobFilter{
			State: model.JobState(state),
			City:  city,
			Limit: limit,
		})
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}

		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		formatJobsList(os.Stdout, jobs)
		return nil
	},
}

// -- jobs show --

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show full details of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("jobs"); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

// -- jobs stats --

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job and delivery statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("jobs"); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var queue monitoring.QueueLister
		if cfg.Publish.FallbackDir != "" {
			q, err := publish.NewFallbackQueue(cfg.Publish.FallbackDir)
			if err != nil {
				return err
			}
			queue = q
		}

		since, _ := cmd.Flags().GetDuration("since")
		hours := int(since.Hours())
		if hours <= 0 {
			hours = 1
		}

		snap, err := monitoring.NewCollector(st, queue).Collect(ctx, hours)
		if err != nil {
			return eris.Wrap(err, "jobs stats")
		}
		formatJobStats(os.Stdout, snap)
		return nil
	},
}

func init() {
	jobsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	jobsListCmd.Flags().String("state", "", "filter by state (discovering, crawling, ..., done)")
	jobsListCmd.Flags().String("city", "", "filter by city")
	jobsListCmd.Flags().Int("limit", 50, "max number of jobs to display")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsStatsCmd)
	rootCmd.AddCommand(jobsCmd)
}

// formatJobsList writes a tabular list of jobs to w.
func formatJobsList(out io.Writer, jobs []model.JobRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMARKET\tLOCATION\tSTATE\tPROFILES\tPUBLISHED\tFALLBACK\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t--------\t-----\t--------\t---------\t--------\t-------\t--------")

	for _, j := range jobs {
		location := j.Request.Location()
		if len(location) > 30 {
			location = location[:27] + "..."
		}
		state := string(j.State)
		if j.Error != "" {
			state += " (!)"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(j.ID),
			j.Request.Market,
			location,
			state,
			j.Profiles,
			j.Published,
			j.Fallbacks,
			j.CreatedAt.Format("2006-01-02 15:04"),
			j.UpdatedAt.Sub(j.CreatedAt).Round(time.Second).String(),
		)
	}
	_ = w.Flush()
}

// formatJobStats writes aggregate stats to w.
func formatJobStats(out io.Writer, s *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\t%dh\n", s.LookbackHours)
	_, _ = fmt.Fprintf(w, "Total jobs:\t%d\n", s.JobsTotal)
	_, _ = fmt.Fprintf(w, "Done:\t%d\n", s.JobsDone)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.JobsFailed)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.JobsRunning)
	_, _ = fmt.Fprintf(w, "Profiles:\t%d\n", s.ProfilesTotal)
	_, _ = fmt.Fprintf(w, "Published:\t%d\n", s.Published)
	_, _ = fmt.Fprintf(w, "Fallbacks:\t%d\n", s.Fallbacks)
	if s.Published+s.Fallbacks > 0 {
		_, _ = fmt.Fprintf(w, "Fallback rate:\t%.1f%%\n", s.FallbackRate*100)
	}
	_, _ = fmt.Fprintf(w, "Fallback queue:\t%d file(s)\n", s.FallbackDepth)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

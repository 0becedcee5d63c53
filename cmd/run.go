package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/discovery"
	"github.com/sells-group/leadgen/internal/model"
)

var (
	runCity     string
	runDistrict string
	runMarket   string
	runTargets  string
	runSearch   bool
	runTimeout  time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one lead generation job in the foreground",
	Long:  "Runs a job for a city and market and prints its outcome as JSON. Targets come from a YAML file, from search, or both.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req := model.LeadRequest{City: runCity, District: runDistrict, Market: runMarket}
		if err := req.Validate(); err != nil {
			return eris.Wrap(err, "invalid request")
		}

		dm := discoveryMode{Search: runSearch || runTargets == ""}
		if runTargets != "" {
			targets, err := discovery.LoadTargets(runTargets)
			if err != nil {
				return err
			}
			dm.Static = targets
		}

		env, err := initPipeline(ctx, "run", dm)
		if err != nil {
			return err
		}
		defer env.Close()

		budget := cfg.Pipeline.Timeout()
		if runTimeout > 0 {
			budget = runTimeout
		}
		job := model.NewPipelineJob(req, nil, budget)
		if err := env.Store.CreateJob(ctx, job); err != nil {
			return eris.Wrap(err, "create job")
		}

		out := env.Runner.Run(ctx, job)

		zap.L().Info("lead generation complete",
			zap.String("job_id", out.JobID),
			zap.Int("profiles", len(out.Profiles)),
			zap.Int("published", out.Published),
			zap.Int("fallbacks", len(out.FallbackFiles)),
			zap.Bool("timed_out", out.TimedOut),
		)

		// Print outcome JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	runCmd.Flags().StringVar(&runCity, "city", "", "city to search (required)")
	runCmd.Flags().StringVar(&runDistrict, "district", "", "district within the city")
	runCmd.Flags().StringVar(&runMarket, "market", "", "market: Student Recruitment or Medical Tourism (required)")
	runCmd.Flags().StringVar(&runTargets, "targets", "", "YAML file listing target websites")
	runCmd.Flags().BoolVar(&runSearch, "search", false, "also discover targets via search when --targets is set")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "job budget (default from config)")
	_ = runCmd.MarkFlagRequired("city")
	_ = runCmd.MarkFlagRequired("market")
	rootCmd.AddCommand(runCmd)
}

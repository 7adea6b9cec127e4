package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/mapf-sat/internal/core"
	"github.com/elektrokombinacija/mapf-sat/internal/metrics"
	"github.com/elektrokombinacija/mapf-sat/internal/planner"
	"github.com/elektrokombinacija/mapf-sat/internal/satsolver"
	"github.com/elektrokombinacija/mapf-sat/internal/sim"
)

type solveFlags struct {
	encodeFlags
	backend     string
	auto        bool
	maxHorizon  int
	timeout     time.Duration
	metricsFile string
	report      string
}

func newSolveCmd() *cobra.Command {
	var flags solveFlags
	cmd := &cobra.Command{
		Use:   "solve <instance>",
		Short: "Find a plan through the MaxSAT reduction",
		Long: `Solve encodes the instance, runs a MaxSAT backend and prints the
decoded plan. The exit status is 10 when a plan was found and 20 when the
instance has none within the horizon.

        $ mapfsat solve --auto --backend gini room.yaml
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, &flags, args[0])
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVarP(&flags.backend, "backend", "b", satsolver.DefaultBackend,
		"solver backend ("+strings.Join(satsolver.Names(), ", ")+")")
	cmd.Flags().BoolVar(&flags.auto, "auto", false, "search for the smallest feasible horizon")
	cmd.Flags().IntVar(&flags.maxHorizon, "max-horizon", 0, "upper limit of the horizon search, 0 for a prioritized plan's makespan")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "give up after this long, 0 for no limit")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	cmd.Flags().StringVar(&flags.report, "report", "", "write a JSON replay of the plan to this file")
	return cmd
}

func runSolve(cmd *cobra.Command, flags *solveFlags, path string) error {
	inst, err := flags.load(path)
	if err != nil {
		return err
	}

	m := metrics.New()
	p, err := planner.New(planner.Config{
		Backend:    flags.backend,
		Encoder:    flags.options(),
		Auto:       flags.auto,
		MaxHorizon: flags.maxHorizon,
		Logger:     log.StandardLogger(),
		Metrics:    m,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if flags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.timeout)
		defer cancel()
	}

	start := time.Now()
	sol, solveErr := p.Solve(ctx, inst)
	log.WithFields(log.Fields{
		"planner": p.Name(),
		"elapsed": time.Since(start),
	}).Debug("solve finished")

	if flags.metricsFile != "" {
		if err := writeMetrics(flags.metricsFile, m); err != nil {
			return err
		}
	}
	if solveErr != nil {
		return solveErr
	}

	out := cmd.OutOrStdout()
	printSolution(out, inst, sol)
	if sol.Status == core.StatusUnsatisfiable {
		return exitError(exitUnsatisfiable)
	}

	if flags.report != "" {
		if err := writeReport(ctx, flags.report, inst.WithHorizon(sol.Horizon), sol); err != nil {
			return err
		}
	}
	return exitError(exitSatisfiable)
}

func printSolution(w io.Writer, inst *core.Instance, sol *core.Solution) {
	fmt.Fprintf(w, "status: %s\n", sol.Status)
	if sol.Status == core.StatusUnsatisfiable {
		fmt.Fprintf(w, "no plan within horizon %d\n", sol.Horizon)
		return
	}
	fmt.Fprintf(w, "horizon: %d\ncost: %d\nmakespan: %d\nsum of costs: %d\n",
		sol.Horizon, sol.Cost, sol.Makespan, sol.SumOfCosts)

	ids := make([]core.AgentID, 0, len(sol.Paths))
	for id := range sol.Paths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		cells := make([]string, len(sol.Paths[id]))
		for t, c := range sol.Paths[id] {
			cells[t] = c.String()
		}
		fmt.Fprintf(w, "agent %d (arrives %d): %s\n", id, sol.Arrival[id], strings.Join(cells, " "))
	}
}

func writeMetrics(path string, m *metrics.Metrics) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.WriteText(f)
}

func writeReport(ctx context.Context, path string, inst *core.Instance, sol *core.Solution) error {
	res, err := sim.Replay(ctx, inst, sol, log.StandardLogger())
	if err != nil {
		return errors.Wrap(err, "replay plan")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return errors.Wrap(writeJSON(f, res), "write report")
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Command run_benchmarks runs the SAT planner backends and the prioritized
// baseline over a directory of instances and collects the results.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/elektrokombinacija/mapf-sat/internal/algo"
	"github.com/elektrokombinacija/mapf-sat/internal/core"
	"github.com/elektrokombinacija/mapf-sat/internal/encoding"
	"github.com/elektrokombinacija/mapf-sat/internal/planner"
	"github.com/elektrokombinacija/mapf-sat/internal/satsolver"
)

// BenchmarkResult stores results from a single solver run.
type BenchmarkResult struct {
	RunID       string  `json:"run_id"`
	Timestamp   string  `json:"timestamp"`
	CommitHash  string  `json:"commit_hash"`
	GoVersion   string  `json:"go_version"`
	OS          string  `json:"os"`
	Arch        string  `json:"arch"`
	Instance    string  `json:"instance"`
	Fingerprint string  `json:"fingerprint"`
	NumAgents   int     `json:"num_agents"`
	GridSize    string  `json:"grid_size"`
	Solver      string  `json:"solver"`
	RuntimeMs   float64 `json:"runtime_ms"`
	Status      string  `json:"status"`
	Success     bool    `json:"success"`
	Horizon     int     `json:"horizon"`
	Makespan    int     `json:"makespan"`
	SumOfCosts  int     `json:"sum_of_costs"`
	Cost        int     `json:"cost"`
	Variables   int     `json:"variables"`
	Clauses     int     `json:"clauses"`
	Error       string  `json:"error,omitempty"`
}

// SolverMetrics holds per-solver aggregated metrics.
type SolverMetrics struct {
	Name            string
	TotalRuns       int
	Successes       int
	TotalRuntimeMs  float64
	TotalMakespan   int
	TotalSumOfCosts int
}

func getGitCommit() string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(output))
}

// findInstances lists instance files in dir, sorted by name.
func findInstances(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml", "*.json"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func newResult(inst *core.Instance, solver string) *BenchmarkResult {
	r := &BenchmarkResult{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Instance:  inst.Name,
		NumAgents: len(inst.Agents),
		GridSize:  fmt.Sprintf("%dx%d", inst.Grid.Width, inst.Grid.Height),
		Solver:    solver,
	}
	if fp, err := inst.Fingerprint(); err == nil {
		r.Fingerprint = fmt.Sprintf("%016x", fp)
	}
	return r
}

func fill(r *BenchmarkResult, sol *core.Solution, err error, elapsed time.Duration) {
	r.RuntimeMs = float64(elapsed.Microseconds()) / 1000.0
	switch {
	case err != nil:
		r.Status = core.StatusUnknown.String()
		r.Error = err.Error()
	case sol == nil:
		r.Status = core.StatusUnknown.String()
	default:
		r.Status = sol.Status.String()
		r.Success = sol.Feasible
		r.Horizon = sol.Horizon
		r.Makespan = sol.Makespan
		r.SumOfCosts = sol.SumOfCosts
		r.Cost = sol.Cost
	}
}

// runSAT runs the SAT planner. With a fixed horizon the formula size is
// recorded too.
func runSAT(ctx context.Context, inst *core.Instance, backend string, auto bool) *BenchmarkResult {
	p, err := planner.New(planner.Config{
		Backend: backend,
		Encoder: encoding.DefaultOptions(),
		Auto:    auto,
		Logger:  log.StandardLogger(),
	})
	r := newResult(inst, "SAT("+backend+")")
	if err != nil {
		fill(r, nil, err, 0)
		return r
	}

	start := time.Now()
	if auto || inst.Horizon == core.AutoHorizon {
		sol, err := p.Solve(ctx, inst)
		fill(r, sol, err, time.Since(start))
		return r
	}
	sol, enc, err := p.SolveHorizon(ctx, inst, inst.Horizon)
	fill(r, sol, err, time.Since(start))
	if enc != nil {
		s := enc.Formula.Stats()
		r.Variables = s.Vars
		r.Clauses = s.Hard + s.Soft
	}
	return r
}

func runPrioritized(ctx context.Context, inst *core.Instance) *BenchmarkResult {
	r := newResult(inst, "Prioritized")
	start := time.Now()
	sol, err := algo.NewPrioritized(0).Solve(ctx, inst)
	fill(r, sol, err, time.Since(start))
	return r
}

var csvHeader = []string{
	"run_id", "timestamp", "commit_hash", "go_version", "os", "arch",
	"instance", "fingerprint", "num_agents", "grid_size", "solver",
	"runtime_ms", "status", "success", "horizon", "makespan",
	"sum_of_costs", "cost", "variables", "clauses", "error",
}

func writeCSV(w io.Writer, results []*BenchmarkResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.RunID, r.Timestamp, r.CommitHash, r.GoVersion, r.OS, r.Arch,
			r.Instance, r.Fingerprint, strconv.Itoa(r.NumAgents), r.GridSize, r.Solver,
			fmt.Sprintf("%.3f", r.RuntimeMs), r.Status, strconv.FormatBool(r.Success),
			strconv.Itoa(r.Horizon), strconv.Itoa(r.Makespan),
			strconv.Itoa(r.SumOfCosts), strconv.Itoa(r.Cost),
			strconv.Itoa(r.Variables), strconv.Itoa(r.Clauses), r.Error,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeResults(path string, results []*BenchmarkResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".json") {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(results), "write results")
	}
	return errors.Wrap(writeCSV(f, results), "write results")
}

func summarize(results []*BenchmarkResult) []*SolverMetrics {
	metrics := make(map[string]*SolverMetrics)
	for _, r := range results {
		m, ok := metrics[r.Solver]
		if !ok {
			m = &SolverMetrics{Name: r.Solver}
			metrics[r.Solver] = m
		}
		m.TotalRuns++
		if r.Success {
			m.Successes++
			m.TotalRuntimeMs += r.RuntimeMs
			m.TotalMakespan += r.Makespan
			m.TotalSumOfCosts += r.SumOfCosts
		}
	}

	out := make([]*SolverMetrics, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func printSummary(w io.Writer, results []*BenchmarkResult) {
	fmt.Fprintln(w, "\n=== BENCHMARK SUMMARY ===")
	fmt.Fprintf(w, "%-18s %6s %8s %12s %12s %10s\n",
		"Solver", "Runs", "Success", "Avg Time(ms)", "AvgMakespan", "AvgSoC")
	fmt.Fprintln(w, strings.Repeat("-", 71))

	for _, m := range summarize(results) {
		avgTime, avgMakespan, avgSoC := 0.0, 0.0, 0.0
		if m.Successes > 0 {
			n := float64(m.Successes)
			avgTime = m.TotalRuntimeMs / n
			avgMakespan = float64(m.TotalMakespan) / n
			avgSoC = float64(m.TotalSumOfCosts) / n
		}
		fmt.Fprintf(w, "%-18s %6d %8d %12.2f %12.2f %10.2f\n",
			m.Name, m.TotalRuns, m.Successes, avgTime, avgMakespan, avgSoC)
	}
}

func main() {
	inputDir := flag.StringP("input", "i", "testdata", "directory containing instance files")
	outputFile := flag.StringP("output", "o", "evidence/benchmark_results.csv", "output file, .csv or .json")
	timeout := flag.Duration("timeout", 5*time.Minute, "timeout per solver run")
	backends := flag.StringSlice("backend", satsolver.Names(), "SAT backends to run")
	auto := flag.Bool("auto", false, "search the horizon instead of using the instance's")
	baseline := flag.Bool("prioritized", true, "also run the prioritized baseline")
	agentFilter := flag.Int("agents", 0, "run only instances with this many agents (0 = all)")
	verbose := flag.BoolP("verbose", "v", false, "verbose output")
	flag.Parse()

	if !*verbose {
		log.SetLevel(log.WarnLevel)
	}
	if err := os.MkdirAll(filepath.Dir(*outputFile), 0755); err != nil {
		log.Fatalf("creating output directory: %v", err)
	}

	files, err := findInstances(*inputDir)
	if err != nil {
		log.Fatalf("finding instance files: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no instance files in %s; run gen_instances first", *inputDir)
	}

	commit := getGitCommit()
	runID := uuid.NewString()
	log.WithField("run", runID).Info("starting benchmark run")
	var results []*BenchmarkResult
	for _, file := range files {
		inst, err := core.LoadInstance(file)
		if err != nil {
			log.WithError(err).Errorf("skipping %s", file)
			continue
		}
		if *agentFilter > 0 && len(inst.Agents) != *agentFilter {
			continue
		}

		run := func(f func(ctx context.Context) *BenchmarkResult) {
			ctx, cancel := context.WithTimeout(context.Background(), *timeout)
			defer cancel()
			r := f(ctx)
			r.RunID, r.CommitHash = runID, commit
			results = append(results, r)
			fmt.Printf("%-32s %-16s %-14s %10.2fms makespan=%d soc=%d\n",
				inst.Name, r.Solver, r.Status, r.RuntimeMs, r.Makespan, r.SumOfCosts)
		}
		for _, b := range *backends {
			b := b
			run(func(ctx context.Context) *BenchmarkResult { return runSAT(ctx, inst, b, *auto) })
		}
		if *baseline {
			run(func(ctx context.Context) *BenchmarkResult { return runPrioritized(ctx, inst) })
		}
	}

	if err := writeResults(*outputFile, results); err != nil {
		log.Fatalf("writing results: %v", err)
	}
	fmt.Printf("Results written to: %s\n", *outputFile)
	printSummary(os.Stdout, results)
}

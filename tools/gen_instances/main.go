// Command gen_instances writes deterministic random grid instances for
// benchmarking the MaxSAT planner.
package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/elektrokombinacija/mapf-sat/internal/algo"
	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

// InstanceParams defines parameters for instance generation.
type InstanceParams struct {
	Seed       int64
	NumAgents  int
	GridWidth  int
	GridHeight int
	Obstacles  float64 // fraction of blocked cells
	// Slack is added to the longest shortest path to get the horizon.
	// Negative leaves the horizon to the planner.
	Slack int
}

// maxAttempts bounds the retries for placing an agent.
const maxAttempts = 1000

// generateInstance creates an instance where every agent can reach its
// goal. The same params always give the same instance.
func generateInstance(params InstanceParams) (*core.Instance, error) {
	rng := rand.New(rand.NewSource(params.Seed))
	name := fmt.Sprintf("grid_%dx%d_a%d_o%02d_s%d", params.GridWidth, params.GridHeight,
		params.NumAgents, int(math.Round(params.Obstacles*100)), params.Seed)

	inst := core.NewInstance(params.GridWidth, params.GridHeight, core.AutoHorizon)
	inst.Name = name
	g := inst.Grid
	for x := 0; x < g.Width; x++ {
		for y := 0; y < g.Height; y++ {
			if rng.Float64() < params.Obstacles {
				if err := g.Block(core.C(x, y)); err != nil {
					return nil, err
				}
			}
		}
	}

	free := g.Cells()
	if len(free) < params.NumAgents {
		return nil, errors.Errorf("%s: %d free cells for %d agents", name, len(free), params.NumAgents)
	}

	usedStarts := make(map[core.Cell]bool)
	usedGoals := make(map[core.Cell]bool)
	longest := 0.0
	for i := 0; i < params.NumAgents; i++ {
		placed := false
		for attempt := 0; attempt < maxAttempts && !placed; attempt++ {
			start := free[rng.Intn(len(free))]
			goal := free[rng.Intn(len(free))]
			if usedStarts[start] || usedGoals[goal] {
				continue
			}
			d := algo.ShortestDistance(g, start, goal, nil)
			if !algo.IsFinite(d) {
				continue
			}
			usedStarts[start] = true
			usedGoals[goal] = true
			inst.AddAgent(start, goal)
			longest = math.Max(longest, d)
			placed = true
		}
		if !placed {
			return nil, errors.Errorf("%s: cannot place agent %d", name, i)
		}
	}

	if params.Slack >= 0 {
		inst.Horizon = int(longest) + params.Slack
	}
	return inst, inst.ValidateLayout()
}

func writeInstance(dir, format string, inst *core.Instance) (string, error) {
	write := core.WriteInstance
	ext := ".yaml"
	if format == "json" {
		write = core.WriteInstanceJSON
		ext = ".json"
	}
	path := filepath.Join(dir, inst.Name+ext)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return path, write(f, inst)
}

func main() {
	seed := flag.Int64("seed", 42, "random seed for deterministic generation")
	numAgents := flag.IntP("agents", "a", 4, "number of agents")
	gridWidth := flag.Int("width", 8, "grid width")
	gridHeight := flag.Int("height", 8, "grid height")
	obstacles := flag.Float64("obstacles", 0.1, "obstacle density (0-1)")
	slack := flag.Int("slack", 2, "horizon slack over the longest shortest path, negative for automatic")
	count := flag.IntP("count", "n", 1, "instances to generate, with consecutive seeds")
	format := flag.String("format", "yaml", "output format (yaml, json)")
	outputDir := flag.StringP("output", "o", "testdata", "output directory")
	scalingMode := flag.Bool("scaling", false, "generate the scaling suite (2, 4, 8, 16, 32 agents)")
	flag.Parse()

	if *format != "yaml" && *format != "json" {
		log.Fatalf("unknown format %q", *format)
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("creating output directory: %v", err)
	}

	var params []InstanceParams
	if *scalingMode {
		for _, size := range []int{2, 4, 8, 16, 32} {
			// grid side grows with the square root of the agent count
			side := int(math.Ceil(math.Sqrt(float64(size)) * 3))
			if side < 4 {
				side = 4
			}
			params = append(params, InstanceParams{
				Seed:       *seed,
				NumAgents:  size,
				GridWidth:  side,
				GridHeight: side,
				Obstacles:  *obstacles,
				Slack:      *slack,
			})
		}
	} else {
		for i := 0; i < *count; i++ {
			params = append(params, InstanceParams{
				Seed:       *seed + int64(i),
				NumAgents:  *numAgents,
				GridWidth:  *gridWidth,
				GridHeight: *gridHeight,
				Obstacles:  *obstacles,
				Slack:      *slack,
			})
		}
	}

	failed := false
	for _, p := range params {
		inst, err := generateInstance(p)
		if err != nil {
			log.WithError(err).Error("generation failed")
			failed = true
			continue
		}
		path, err := writeInstance(*outputDir, *format, inst)
		if err != nil {
			log.WithError(err).Error("write failed")
			failed = true
			continue
		}
		log.WithFields(log.Fields{
			"agents":    len(inst.Agents),
			"grid":      fmt.Sprintf("%dx%d", p.GridWidth, p.GridHeight),
			"obstacles": len(inst.Grid.Obstacles()),
			"horizon":   inst.Horizon,
		}).Infof("generated %s", path)
	}
	if failed {
		os.Exit(1)
	}
}

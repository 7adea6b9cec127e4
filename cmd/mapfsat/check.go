package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/mapf-sat/internal/algo"
	"github.com/elektrokombinacija/mapf-sat/internal/core"
	"github.com/elektrokombinacija/mapf-sat/internal/encoding"
	"github.com/elektrokombinacija/mapf-sat/internal/satsolver"
)

func newCheckCmd() *cobra.Command {
	var (
		flags   encodeFlags
		backend string
	)
	cmd := &cobra.Command{
		Use:   "check <wcnf> [instance]",
		Short: "Solve a WCNF file directly",
		Long: `Check solves a WCNF formula with a backend and prints its status and
cost. Given the instance the formula was encoded from, it also decodes and
verifies the plan.

        $ mapfsat check room.wcnf room.yaml --horizon 12
`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			f, err := encoding.ReadWCNF(file)
			file.Close()
			if err != nil {
				return errors.Wrapf(err, "read %s", args[0])
			}

			b, err := satsolver.New(backend)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			res, err := b.Solve(ctx, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "s %s\n", res.Status)
			log.WithFields(log.Fields{
				"backend": b.Name(),
				"elapsed": res.Elapsed,
			}).Debug("solved formula")
			if res.Status == satsolver.Unsatisfiable {
				return exitError(exitUnsatisfiable)
			}
			fmt.Fprintf(out, "o %d\n", res.Cost)

			if len(args) == 2 {
				inst, err := flags.load(args[1])
				if err != nil {
					return err
				}
				sol, err := decodeWith(inst, flags.options(), f, res)
				if err != nil {
					return err
				}
				printSolution(out, inst, sol)
			}
			return exitError(exitSatisfiable)
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVarP(&backend, "backend", "b", satsolver.DefaultBackend, "solver backend")
	return cmd
}

// decodeWith re-encodes inst to recover the variable layout of f and turns
// the model into a verified plan.
func decodeWith(inst *core.Instance, opts encoding.Options, f *encoding.Formula, res *satsolver.Result) (*core.Solution, error) {
	if inst.Horizon == core.AutoHorizon {
		return nil, errors.New("instance has no horizon, pass --horizon")
	}
	enc, err := encoding.NewEncoder(opts).Encode(inst)
	if err != nil {
		return nil, err
	}
	if enc.Formula.CoreVars > f.NumVars {
		return nil, errors.Errorf("formula has %d variables, instance needs %d", f.NumVars, enc.Formula.CoreVars)
	}
	sol, err := enc.Decode(res.Model, res.Cost)
	if err != nil {
		return nil, errors.Wrap(err, "formula does not match instance")
	}
	if err := algo.VerifySolution(inst, sol); err != nil {
		return nil, errors.Wrap(err, "formula does not match instance")
	}
	sol.Status = core.StatusFeasible
	if res.Status == satsolver.Optimal {
		sol.Status = core.StatusOptimal
	}
	return sol, nil
}

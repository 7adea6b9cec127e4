// Command mapfsat reduces MAPF instances to weighted MaxSAT and solves them.
package main

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/elektrokombinacija/mapf-sat/internal/card"
	"github.com/elektrokombinacija/mapf-sat/internal/core"
	"github.com/elektrokombinacija/mapf-sat/internal/encoding"
)

// Exit codes of the solve and check commands, as SAT solvers report them.
const (
	exitSatisfiable   = 10
	exitUnsatisfiable = 20
)

// exitError carries a process exit code through cobra.
type exitError int

func (e exitError) Error() string { return "exit status " + strconv.Itoa(int(e)) }

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		var code exitError
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		log.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mapfsat",
		Short: "MAPF to weighted MaxSAT",
		Long: `mapfsat encodes multi-agent path finding instances on grids as
weighted partial MaxSAT formulas, solves them and decodes the plans.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newEncodeCmd(), newSolveCmd(), newCheckCmd())
	return rootCmd
}

// encodeFlags are shared by every command that builds a formula.
type encodeFlags struct {
	horizon     int
	parallelism int
	exactlyOne  card.Encoding
	atMostOne   card.Encoding
}

func (f *encodeFlags) register(fs *pflag.FlagSet) {
	defaults := encoding.DefaultOptions()
	f.exactlyOne = defaults.ExactlyOne
	f.atMostOne = defaults.AtMostOne
	fs.IntVar(&f.horizon, "horizon", core.AutoHorizon, "override the instance horizon (-1 keeps it)")
	fs.IntVarP(&f.parallelism, "parallelism", "j", 0, "encoder workers, 0 for GOMAXPROCS")
	fs.Var(&f.exactlyOne, "exactly-one", "exactly-one encoding (pairwise, ladder)")
	fs.Var(&f.atMostOne, "at-most-one", "at-most-one encoding (pairwise, ladder)")
}

func (f *encodeFlags) options() encoding.Options {
	opts := encoding.DefaultOptions()
	opts.Parallelism = f.parallelism
	opts.ExactlyOne = f.exactlyOne
	opts.AtMostOne = f.atMostOne
	opts.Logger = log.StandardLogger()
	return opts
}

// load reads an instance and applies the --horizon override.
func (f *encodeFlags) load(path string) (*core.Instance, error) {
	inst, err := core.LoadInstance(path)
	if err != nil {
		return nil, err
	}
	if f.horizon >= 0 {
		inst = inst.WithHorizon(f.horizon)
	}
	return inst, nil
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/mapf-sat/internal/core"
	"github.com/elektrokombinacija/mapf-sat/internal/encoding"
)

func newEncodeCmd() *cobra.Command {
	var (
		flags  encodeFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "encode <instance>",
		Short: "Write the WCNF formula of an instance",
		Long: `Encode reads a YAML or JSON instance and writes its weighted partial
MaxSAT formula in WCNF format.

        $ mapfsat encode --horizon 12 -o room.wcnf room.yaml
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := flags.load(args[0])
			if err != nil {
				return err
			}
			if inst.Horizon == core.AutoHorizon {
				return errors.Errorf("%s has no horizon, pass --horizon", args[0])
			}
			enc, err := encoding.NewEncoder(flags.options()).Encode(inst)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				file, err := os.Create(output)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			if err := encoding.WriteWCNF(w, enc.Formula, header(enc)...); err != nil {
				return errors.Wrap(err, "write formula")
			}

			s := enc.Formula.Stats()
			log.WithFields(log.Fields{
				"vars":     s.Vars,
				"aux":      s.AuxVars,
				"hard":     s.Hard,
				"soft":     s.Soft,
				"literals": s.Literals,
				"elapsed":  enc.Duration,
			}).Info("encoded")
			return nil
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, stdout when empty")
	return cmd
}

// header lists the comment lines written above a formula.
func header(enc *encoding.Encoded) []string {
	inst := enc.Instance
	lines := []string{
		fmt.Sprintf("instance %s", inst.Name),
		fmt.Sprintf("grid %dx%d agents %d horizon %d", inst.Grid.Width, inst.Grid.Height, len(inst.Agents), inst.Horizon),
	}
	if fp, err := inst.Fingerprint(); err == nil {
		lines = append(lines, fmt.Sprintf("fingerprint %016x", fp))
	}
	for _, id := range enc.Formula.Infeasible {
		lines = append(lines, fmt.Sprintf("agent %d cannot reach its goal in time", id))
	}
	return lines
}

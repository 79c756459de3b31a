package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qitools/pkg/algorithms"
	"qitools/pkg/pipeline"
	"qitools/pkg/volume"
)

func newASLCmd(a *app) *cobra.Command {
	var (
		opts       algorithms.CASLOptions
		tissuePath string
		pdPath     string
	)
	cmd := &cobra.Command{
		Use:   "asl ASL_FILE",
		Short: "Calculates CBF from ASL data",
		Long: "Calculates cerebral blood flow from a pCASL series of interleaved control\n" +
			"and label volumes. Reads a CASL parameter block with TR, label_time and\n" +
			"post_label_delay.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hdr, err := volume.ReadHeader(args[0])
			if err != nil {
				return err
			}
			doc, err := a.sequence()
			if err != nil {
				return err
			}
			seq, err := doc.CASLSequence()
			if err != nil {
				return err
			}
			opts.InputSize = hdr.Components
			algo, err := algorithms.NewCASL(seq, opts)
			if err != nil {
				return err
			}
			return a.run(cmd, &pipeline.Params{
				Tool:       "CASL",
				Algorithm:  algo,
				InputFiles: []string{args[0]},
				ConstFiles: []string{tissuePath, pdPath},
			})
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.Average, "average", false, "Average the time-series")
	f.BoolVar(&opts.SliceTime, "slicetime", false, "Apply slice-time correction (one post-label delay per slice)")
	f.Float64VarP(&opts.BloodT1, "blood", "b", algorithms.DefaultBloodT1, "Blood T1 in seconds")
	f.StringVarP(&tissuePath, "tissue", "t", "", "Path to tissue T1 map (seconds)")
	f.StringVarP(&pdPath, "pd", "p", "", "Path to PD image")
	f.Float64Var(&opts.Alpha, "alpha", algorithms.DefaultAlpha, "Labelling efficiency")
	f.Float64VarP(&opts.Lambda, "lambda", "l", algorithms.DefaultLambda, "Blood-brain partition coefficient (mL/g)")
	return cmd
}

func newDREAMCmd(a *app) *cobra.Command {
	var (
		order string
		alpha float64
	)
	cmd := &cobra.Command{
		Use:   "dream DREAM_FILE",
		Short: "Calculates a B1 (flip-angle) map from DREAM data",
		Long:  "Calculates a B1 map from a DREAM file with two volumes, FID and STE.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fidFirst := true
			switch order {
			case "f":
			case "s":
				fidFirst = false
			default:
				return fmt.Errorf("unknown volume order %q (must be f or s)", order)
			}
			if alpha <= 0 {
				return fmt.Errorf("nominal flip-angle must be positive, got %g", alpha)
			}
			return a.run(cmd, &pipeline.Params{
				Tool:       "DREAM",
				Algorithm:  algorithms.NewDREAM(alpha),
				InputFiles: []string{args[0]},
				ExpandInputs: func(loaded []*volume.Volume) ([]*volume.Volume, error) {
					return splitDREAM(loaded[0], fidFirst)
				},
			})
		},
	}
	cmd.Flags().StringVarP(&order, "order", "O", "f", "Volume order - f/s - fid/ste first")
	cmd.Flags().Float64VarP(&alpha, "alpha", "a", algorithms.DefaultDREAMAngle, "Nominal flip-angle")
	return cmd
}

// splitDREAM separates the FID and STE volumes of a DREAM file
func splitDREAM(v *volume.Volume, fidFirst bool) ([]*volume.Volume, error) {
	if v.Components != 2 {
		return nil, fmt.Errorf("DREAM file must have 2 volumes, got %d", v.Components)
	}
	first, err := v.Component(0)
	if err != nil {
		return nil, err
	}
	second, err := v.Component(1)
	if err != nil {
		return nil, err
	}
	if fidFirst {
		return []*volume.Volume{first, second}, nil
	}
	return []*volume.Volume{second, first}, nil
}

func newDESPOT1Cmd(a *app) *cobra.Command {
	var (
		method     string
		iterations int
		b1Path     string
	)
	cmd := &cobra.Command{
		Use:   "despot1 SPGR_FILE",
		Short: "Calculates T1 and PD maps from variable flip-angle SPGR data",
		Long:  "Calculates T1 and PD maps with DESPOT1. Reads an SPGR parameter block with TR and FA.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := algorithms.ParseDESPOT1Method(method)
			if err != nil {
				return err
			}
			doc, err := a.sequence()
			if err != nil {
				return err
			}
			seq, err := doc.SPGRSequence()
			if err != nil {
				return err
			}
			algo, err := algorithms.NewDESPOT1(seq, m, iterations)
			if err != nil {
				return err
			}
			return a.run(cmd, &pipeline.Params{
				Tool:       "D1",
				Algorithm:  algo,
				InputFiles: []string{args[0]},
				ConstFiles: []string{b1Path},
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&method, "algo", "a", "l", "Fitting method: l (LLS) or w (WLLS)")
	f.IntVarP(&iterations, "its", "i", 15, "Maximum WLLS iterations")
	f.StringVarP(&b1Path, "B1", "b", "", "B1 map (ratio)")
	return cmd
}

func newLorentzianCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lorentzian ZSPEC_FILE",
		Short: "Fits a Lorentzian line to a Z-spectrum",
		Long:  "Fits a Lorentzian line to a Z-spectrum. Reads the offsets from z_frqs.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.sequence()
			if err != nil {
				return err
			}
			z, err := doc.ZSpectrum()
			if err != nil {
				return err
			}
			algo, err := algorithms.NewLorentzian(z.Frequencies)
			if err != nil {
				return err
			}
			return a.run(cmd, &pipeline.Params{
				Tool:       "LTZ",
				Algorithm:  algo,
				InputFiles: []string{args[0]},
			})
		},
	}
}

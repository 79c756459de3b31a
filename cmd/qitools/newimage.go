package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qitools/pkg/algorithms"
	"qitools/pkg/apply"
	"qitools/pkg/pipeline"
	"qitools/pkg/volume"
)

type newImageOptions struct {
	size    []int
	spacing []float64
	origin  []float64
	fill    float64
	grad    string
	steps   string
	wrap    float64
}

func newNewImageCmd(a *app) *cobra.Command {
	opts := &newImageOptions{}
	cmd := &cobra.Command{
		Use:   "newimage OUTPUT",
		Short: "Creates images filled with simple patterns",
		Long: "Creates a volume filled with simple patterns of data, e.g. solid values,\n" +
			"gradients, or blocks. The default is a 3D volume filled with zeros.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := makeImage(a, opts, cmd.Flags().Changed("fill"))
			if err != nil {
				return err
			}
			a.log.Infof("Writing file to: %s", args[0])
			if err := volume.Write(args[0], img, pipeline.WriteOptions(a.cfg, "newimage")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[0])
			return nil
		},
	}
	f := cmd.Flags()
	f.IntSliceVar(&opts.size, "size", []int{1, 1, 1}, "Image size")
	f.Float64SliceVarP(&opts.spacing, "spacing", "p", nil, "Voxel spacing")
	f.Float64SliceVar(&opts.origin, "origin", nil, "Image origin")
	f.Float64VarP(&opts.fill, "fill", "f", 0, "Fill with value")
	f.StringVarP(&opts.grad, "grad", "g", "", "Fill with gradient (dim, low, high)")
	f.StringVarP(&opts.steps, "step", "t", "", "Fill with discrete steps (dim, low, high, steps)")
	f.Float64VarP(&opts.wrap, "wrap", "w", 0, "Wrap image values")
	return cmd
}

// makeImage fills a blank volume through the engine
func makeImage(a *app, opts *newImageOptions, fill bool) (*volume.Volume, error) {
	if len(opts.size) == 0 {
		return nil, fmt.Errorf("image size must not be empty")
	}
	for _, s := range opts.size {
		if s < 1 {
			return nil, fmt.Errorf("invalid image size %v", opts.size)
		}
	}
	blank := volume.New(opts.size, 1)
	if opts.spacing != nil {
		if len(opts.spacing) != len(opts.size) {
			return nil, fmt.Errorf("spacing %v does not match %d dimensions", opts.spacing, len(opts.size))
		}
		copy(blank.Spacing, opts.spacing)
	}
	if opts.origin != nil {
		if len(opts.origin) != len(opts.size) {
			return nil, fmt.Errorf("origin %v does not match %d dimensions", opts.origin, len(opts.size))
		}
		copy(blank.Origin, opts.origin)
	}
	a.log.Debugf("Size: %v Spacing: %v Origin: %v", blank.Size, blank.Spacing, blank.Origin)

	var (
		pattern *algorithms.Pattern
		err     error
	)
	switch {
	case fill:
		pattern = algorithms.NewFillPattern(opts.fill)
	case opts.grad != "":
		pattern, err = algorithms.ParsePattern(algorithms.PatternGradient, opts.grad, opts.size)
	case opts.steps != "":
		pattern, err = algorithms.ParsePattern(algorithms.PatternSteps, opts.steps, opts.size)
	default:
		pattern = algorithms.NewFillPattern(0)
	}
	if err != nil {
		return nil, err
	}
	pattern.Wrap = opts.wrap

	e := apply.NewEngine()
	e.SetLogger(a.log)
	e.SetPoolsize(a.cfg.Processing.Threads)
	e.SetSplitsPerThread(a.cfg.Processing.SplitsPerThread)
	if err := e.SetAlgorithm(pattern); err != nil {
		return nil, err
	}
	if err := e.SetInput(0, blank); err != nil {
		return nil, err
	}
	a.log.Debug("Filling...")
	if err := e.Run(); err != nil {
		return nil, err
	}
	return e.Output(0)
}

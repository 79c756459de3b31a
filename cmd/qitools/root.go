package main

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"qitools/internal/logging"
	"qitools/internal/models"
	"qitools/pkg/config"
	"qitools/pkg/mapstats"
	"qitools/pkg/pipeline"
	"qitools/pkg/sequence"
)

const defaultConfigFile = "qitools.yaml"

// app holds the state shared by every subcommand of one invocation
type app struct {
	cfgPath   string
	mask      string
	subregion string
	jsonPath  string

	cfg *config.Config
	log *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "qitools",
		Short: "Quantitative MRI parameter mapping",
		Long: "qitools fits quantitative MRI models voxel by voxel, in parallel, and\n" +
			"writes one map per model parameter.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgPath, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Verbose)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", defaultConfigFile, "Configuration file path")
	pf.IntP("threads", "T", runtime.NumCPU(), "Use N threads (0=hardware limit)")
	pf.Int("splits", 0, "Regions queued per thread (0=as many as there are threads)")
	pf.BoolP("verbose", "v", false, "Print more information")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.StringP("out", "o", "", "Add a prefix to output filenames")
	pf.String("dir", ".", "Directory for output files")
	pf.String("compression", "default", "zstd level (fastest, default, better, best) or none")
	pf.StringVarP(&a.mask, "mask", "m", "", "Only process voxels within the mask")
	pf.StringVarP(&a.subregion, "subregion", "s", "", "Process subregion starting at voxel I,J,K with size SI,SJ,SK")
	pf.Bool("resids", false, "Write the residual at every data point")
	pf.Bool("slices", false, "Export JPEG slices of every parameter map")
	pf.String("slices-dir", "slices", "Directory for exported slices")
	pf.String("window", "", "Display window LOW,HIGH of exported slices (default 5th to 95th percentile)")
	pf.Bool("stats", false, "Print summary statistics of every map")
	pf.StringVar(&a.jsonPath, "json", "", "Read sequence parameters from a file instead of stdin")

	root.AddCommand(
		newASLCmd(a),
		newDREAMCmd(a),
		newDESPOT1Cmd(a),
		newLorentzianCmd(a),
		newNewImageCmd(a),
		newInfoCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) region() (*models.Region, error) {
	if a.subregion == "" {
		return nil, nil
	}
	r, err := models.ParseRegion(a.subregion)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (a *app) sequence() (*sequence.Document, error) {
	if a.jsonPath == "" {
		a.log.Info("Reading sequence parameters from stdin")
	}
	return sequence.Load(a.jsonPath)
}

// run executes a tool pipeline and reports its metrics
func (a *app) run(cmd *cobra.Command, params *pipeline.Params) error {
	region, err := a.region()
	if err != nil {
		return err
	}
	params.Subregion = region
	params.MaskFile = a.mask
	params.Config = a.cfg
	params.Logger = a.log

	proc, err := pipeline.NewProcessor(params)
	if err != nil {
		return err
	}
	if err := proc.Process(cmd.Context()); err != nil {
		return err
	}

	m := proc.Metrics()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s processed %d voxels in %.2f seconds", params.Tool, m.Voxels, m.Elapsed.Seconds())
	if m.Failures > 0 {
		fmt.Fprintf(out, " (%d failed)", m.Failures)
	}
	fmt.Fprintln(out)
	for _, f := range m.Files {
		fmt.Fprintf(out, "Wrote %s\n", f)
	}
	if len(m.Stats) > 0 {
		fmt.Fprintln(out)
		return mapstats.WriteTable(out, m.Stats)
	}
	return nil
}

// Package pipeline runs one algorithm over files on disk: it loads the input
// volumes, applies the algorithm with the parallel engine and writes the
// resulting maps.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"qitools/internal/models"
	"qitools/pkg/algorithms"
	"qitools/pkg/apply"
	"qitools/pkg/config"
	"qitools/pkg/mapstats"
	"qitools/pkg/visualization"
	"qitools/pkg/volume"
)

// Params describes one processing run.
type Params struct {
	// Tool names the run and prefixes every output file, e.g. "DESPOT1"
	Tool string

	// Algorithm is applied at every voxel
	Algorithm apply.Algorithm

	// InputFiles are the input volumes, in order
	InputFiles []string

	// ExpandInputs optionally maps the loaded files onto the algorithm's
	// inputs, e.g. splitting one two-component file into two inputs
	ExpandInputs func(loaded []*volume.Volume) ([]*volume.Volume, error)

	// ConstFiles are constant maps. Missing or empty entries use the
	// algorithm defaults.
	ConstFiles []string

	// MaskFile restricts processing to its non-zero voxels
	MaskFile string

	// Subregion restricts processing to part of the input
	Subregion *models.Region

	// Config carries threads, output and logging settings
	Config *config.Config

	// Logger defaults to the logrus standard logger
	Logger logrus.FieldLogger
}

// Metrics summarises a finished run
type Metrics struct {
	Voxels   int64
	Failures int64
	Elapsed  time.Duration

	// Files lists every volume written, in output order
	Files []string

	// Stats holds one summary per parameter map component when enabled
	Stats []mapstats.Summary
}

// Processor executes a run described by Params
type Processor struct {
	params *Params
	cfg    *config.Config
	log    logrus.FieldLogger

	inputs []*volume.Volume
	consts []*volume.Volume
	mask   *volume.Volume

	// window overrides the slice display window when set
	window    bool
	low, high float64

	engine  *apply.Engine
	metrics Metrics
}

// NewProcessor creates a processor. A nil config uses the defaults.
func NewProcessor(params *Params) (*Processor, error) {
	if params.Algorithm == nil {
		return nil, apply.ErrNoAlgorithm
	}
	if params.Tool == "" {
		return nil, fmt.Errorf("tool name must not be empty")
	}
	if len(params.InputFiles) == 0 {
		return nil, fmt.Errorf("%s needs at least one input file", params.Tool)
	}
	if len(params.ConstFiles) > params.Algorithm.NumConsts() {
		return nil, fmt.Errorf("%s takes %d constant maps, got %d",
			params.Tool, params.Algorithm.NumConsts(), len(params.ConstFiles))
	}

	cfg := params.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := params.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	p := &Processor{
		params: params,
		cfg:    cfg,
		log:    logger.WithField("tool", params.Tool),
	}
	if cfg.Output.Window != "" {
		low, high, err := visualization.ParseWindow(cfg.Output.Window)
		if err != nil {
			return nil, err
		}
		p.window, p.low, p.high = true, low, high
	}
	return p, nil
}

// Process runs the complete pipeline
func (p *Processor) Process(ctx context.Context) error {
	// Step 1: Load input, constant and mask volumes
	p.log.Info("Step 1: Loading input volumes...")
	if err := p.load(ctx); err != nil {
		return fmt.Errorf("failed to load inputs: %w", err)
	}

	// Step 2: Bind volumes to the engine
	p.log.Info("Step 2: Binding volumes...")
	if err := p.bind(); err != nil {
		return fmt.Errorf("failed to bind inputs: %w", err)
	}

	// Step 3: Apply the algorithm
	p.log.Info("Step 3: Applying algorithm...")
	if err := p.engine.Run(); err != nil {
		return fmt.Errorf("failed to apply algorithm: %w", err)
	}
	p.metrics.Voxels = p.engine.Processed()
	p.metrics.Failures = p.engine.Failures()
	p.metrics.Elapsed = p.engine.TotalTime()
	p.log.WithFields(logrus.Fields{
		"voxels":   p.metrics.Voxels,
		"failures": p.metrics.Failures,
		"elapsed":  p.metrics.Elapsed,
	}).Info("Algorithm finished")

	// Step 4: Write output maps
	p.log.Info("Step 4: Writing output maps...")
	if err := p.write(ctx); err != nil {
		return fmt.Errorf("failed to write outputs: %w", err)
	}

	// Step 5: Export slices
	if p.cfg.Output.SaveSlices {
		p.log.Info("Step 5: Exporting slices...")
		if err := p.exportSlices(); err != nil {
			return fmt.Errorf("failed to export slices: %w", err)
		}
	}

	// Step 6: Map statistics
	if p.cfg.Output.Stats {
		p.log.Info("Step 6: Computing map statistics...")
		if err := p.computeStats(); err != nil {
			return fmt.Errorf("failed to compute statistics: %w", err)
		}
	}

	return nil
}

// Metrics returns the statistics of the last run
func (p *Processor) Metrics() Metrics {
	return p.metrics
}

// Engine returns the engine used by the last run
func (p *Processor) Engine() *apply.Engine {
	return p.engine
}

// load reads every file concurrently
func (p *Processor) load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if p.cfg.Processing.Threads > 0 {
		g.SetLimit(p.cfg.Processing.Threads)
	}

	loaded := make([]*volume.Volume, len(p.params.InputFiles))
	p.consts = make([]*volume.Volume, p.params.Algorithm.NumConsts())

	read := func(path string, dst **volume.Volume) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := volume.Read(path)
			if err != nil {
				return err
			}
			p.log.Debugf("Loaded %s: size %v, %d components", path, v.Size, v.Components)
			*dst = v
			return nil
		})
	}

	for i, path := range p.params.InputFiles {
		read(path, &loaded[i])
	}
	for i, path := range p.params.ConstFiles {
		if path != "" {
			read(path, &p.consts[i])
		}
	}
	if p.params.MaskFile != "" {
		read(p.params.MaskFile, &p.mask)
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if p.params.ExpandInputs != nil {
		inputs, err := p.params.ExpandInputs(loaded)
		if err != nil {
			return err
		}
		loaded = inputs
	}
	p.inputs = loaded
	return nil
}

func (p *Processor) bind() error {
	algo := p.params.Algorithm
	if len(p.inputs) != algo.NumInputs() {
		return fmt.Errorf("%w: %s takes %d inputs, got %d",
			apply.ErrMissingInput, p.params.Tool, algo.NumInputs(), len(p.inputs))
	}

	e := apply.NewEngine()
	e.SetLogger(p.log)
	if err := e.SetAlgorithm(algo); err != nil {
		return err
	}
	for i, v := range p.inputs {
		if err := e.SetInput(i, v); err != nil {
			return err
		}
	}
	for i, v := range p.consts {
		if v == nil {
			continue
		}
		if err := e.SetConst(i, v); err != nil {
			return err
		}
	}
	if p.mask != nil {
		if err := e.SetMask(p.mask); err != nil {
			return err
		}
	}
	if p.params.Subregion != nil {
		e.SetSubregion(*p.params.Subregion)
	}
	e.SetPoolsize(p.cfg.Processing.Threads)
	e.SetSplitsPerThread(p.cfg.Processing.SplitsPerThread)
	e.SetOutputAllResiduals(p.cfg.Processing.OutputAllResiduals)
	e.SetVerbose(p.cfg.Logging.Verbose)
	if p.cfg.Logging.Verbose {
		e.SetProgress(func(completed, total int) {
			p.log.Infof("Progress: %d/%d splits (%.0f%%)", completed, total,
				100*float64(completed)/float64(total))
		})
	}
	p.engine = e
	return nil
}

// OutputPath returns the file an output map is written to
func (p *Processor) OutputPath(name string) string {
	file := p.cfg.Output.Prefix + p.params.Tool + "_" + name + volume.Extension
	return filepath.Join(p.cfg.Output.Directory, file)
}

type namedVolume struct {
	name string
	vol  *volume.Volume
}

func (p *Processor) outputMaps() []namedVolume {
	names := algorithms.OutputNames(p.params.Algorithm)
	out := p.engine.Outputs()

	maps := make([]namedVolume, 0, len(out.Params)+3)
	for i, v := range out.Params {
		maps = append(maps, namedVolume{names[i], v})
	}
	maps = append(maps, namedVolume{"residual", out.Residual})
	if out.AllResiduals != nil {
		maps = append(maps, namedVolume{"all_resids", out.AllResiduals})
	}
	maps = append(maps, namedVolume{"iterations", out.Iterations})
	return maps
}

// WriteOptions maps the output settings of cfg onto volume write options
func WriteOptions(cfg *config.Config, description string) volume.WriteOptions {
	opts := volume.WriteOptions{
		Compression: volume.CompressionZstd,
		Level:       cfg.Output.Compression,
		Description: description,
	}
	if strings.EqualFold(cfg.Output.Compression, volume.CompressionNone) {
		opts.Compression = volume.CompressionNone
		opts.Level = ""
	}
	return opts
}

// write stores every output map concurrently
func (p *Processor) write(ctx context.Context) error {
	maps := p.outputMaps()

	g, ctx := errgroup.WithContext(ctx)
	if p.cfg.Processing.Threads > 0 {
		g.SetLimit(p.cfg.Processing.Threads)
	}
	files := make([]string, len(maps))
	for i, m := range maps {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := p.OutputPath(m.name)
			if err := volume.Write(path, m.vol, WriteOptions(p.cfg, p.params.Tool+" "+m.name)); err != nil {
				return err
			}
			p.log.Debugf("Wrote %s", path)
			files[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	p.metrics.Files = files
	return nil
}

// exportSlices saves axial JPEG slices of every parameter map. With a
// subregion only the processed region is exported.
func (p *Processor) exportSlices() error {
	names := algorithms.OutputNames(p.params.Algorithm)
	var wg sync.WaitGroup
	errCh := make(chan error, len(names))

	for i, v := range p.engine.Outputs().Params {
		if v.Dim() < 2 || v.Dim() > 3 {
			p.log.Warnf("Skipping slices of %s: %dD map", names[i], v.Dim())
			continue
		}
		for c := 0; c < v.Components; c++ {
			prefix := p.cfg.Output.Prefix + p.params.Tool + "_" + names[i]
			if v.Components > 1 {
				prefix = fmt.Sprintf("%s_%d", prefix, c)
			}
			wg.Add(1)
			go func(v *volume.Volume, c int, prefix string) {
				defer wg.Done()
				if err := p.exportMap(v, c, prefix); err != nil {
					select {
					case errCh <- fmt.Errorf("%s: %w", prefix, err):
					default:
					}
				}
			}(v, c, prefix)
		}
	}

	wg.Wait()
	close(errCh)
	return <-errCh
}

func (p *Processor) exportMap(v *volume.Volume, c int, prefix string) error {
	viewer, err := visualization.NewViewer(v, c)
	if err != nil {
		return err
	}
	if sub := p.params.Subregion; sub != nil {
		crop, err := viewer.ExtractRegion(*sub)
		if err != nil {
			return err
		}
		if viewer, err = visualization.NewViewer(crop, 0); err != nil {
			return err
		}
	}
	if p.window {
		if err := viewer.SetWindow(p.low, p.high); err != nil {
			return err
		}
	}
	return viewer.SaveSliceSequence("z", p.cfg.Output.SlicesDir, prefix)
}

func (p *Processor) computeStats() error {
	names := algorithms.OutputNames(p.params.Algorithm)
	p.metrics.Stats = nil
	for i, v := range p.engine.Outputs().Params {
		summaries, err := mapstats.ComputeAll(names[i], v, p.statsMask(v))
		if err != nil {
			return err
		}
		p.metrics.Stats = append(p.metrics.Stats, summaries...)
	}
	return nil
}

// statsMask selects the processed voxels of v: the mask when it covers the
// whole map, restricted to the subregion when one is set. nil selects all.
func (p *Processor) statsMask(v *volume.Volume) *volume.Volume {
	mask := p.mask
	if mask != nil && mask.SameGeometry(v) != nil {
		mask = nil
	}
	sub := p.params.Subregion
	if sub == nil {
		return mask
	}

	out := volume.NewLike(v, 1)
	it := volume.NewIterator(v.Size, *sub)
	for it.Next() {
		off := it.Offset()
		if mask == nil || mask.Pixel(off)[0] != 0 {
			out.Pixel(off)[0] = 1
		}
	}
	return out
}

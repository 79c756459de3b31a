package apply

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"qitools/internal/models"
	"qitools/pkg/splitter"
	"qitools/pkg/threadpool"
	"qitools/pkg/volume"
)

// ProgressFunc is called after each split finishes with the number of
// completed splits and the total. Calls are serialized.
type ProgressFunc func(completed, total int)

// Outputs groups the volumes produced by a run
type Outputs struct {
	// Params holds one map per algorithm output
	Params []*volume.Volume

	// Residual has OutputSize components per voxel
	Residual *volume.Volume

	// AllResiduals has DataSize components per voxel, nil unless enabled
	AllResiduals *volume.Volume

	// Iterations has a single component per voxel
	Iterations *volume.Volume
}

// Engine applies an Algorithm to every voxel of its input volumes.
//
// Work is divided into slabs along the slowest axis and each slab is run as
// one task on a thread pool. Slabs never overlap, so the output volumes are
// written without locking.
type Engine struct {
	algo      Algorithm
	inputs    []*volume.Volume
	consts    []*volume.Volume
	mask      *volume.Volume
	subregion *models.Region

	poolsize        int
	splitsPerThread int
	allResiduals    bool
	verbose         bool

	logger   logrus.FieldLogger
	progress ProgressFunc

	outputs   Outputs
	elapsed   time.Duration
	failures  int64
	processed int64
}

// NewEngine returns an engine using one worker and one split per worker
func NewEngine() *Engine {
	return &Engine{
		poolsize:        1,
		splitsPerThread: 1,
		logger:          logrus.StandardLogger(),
	}
}

// SetAlgorithm fixes the algorithm and clears any bound volumes
func (e *Engine) SetAlgorithm(algo Algorithm) error {
	if algo == nil {
		return ErrNoAlgorithm
	}
	if algo.NumInputs() < 1 || algo.OutputSize() < 1 {
		return fmt.Errorf("%w: %d inputs, output size %d", ErrAlgorithmOutputs, algo.NumInputs(), algo.OutputSize())
	}
	if len(algo.DefaultConsts()) != algo.NumConsts() {
		return fmt.Errorf("%w: %d default constants for %d constants",
			ErrAlgorithmOutputs, len(algo.DefaultConsts()), algo.NumConsts())
	}
	if len(algo.Zero()) != algo.OutputSize() {
		return fmt.Errorf("%w: zero has %d values, output size is %d",
			ErrAlgorithmOutputs, len(algo.Zero()), algo.OutputSize())
	}
	e.algo = algo
	e.inputs = make([]*volume.Volume, algo.NumInputs())
	e.consts = make([]*volume.Volume, algo.NumConsts())
	e.outputs = Outputs{}
	return nil
}

// Algorithm returns the current algorithm
func (e *Engine) Algorithm() Algorithm {
	return e.algo
}

// SetInput binds input volume i
func (e *Engine) SetInput(i int, v *volume.Volume) error {
	if e.algo == nil {
		return ErrNoAlgorithm
	}
	if i < 0 || i >= e.algo.NumInputs() {
		return fmt.Errorf("%w: input %d (algorithm has %d inputs)", ErrIndexOutOfRange, i, e.algo.NumInputs())
	}
	e.inputs[i] = v
	return nil
}

// SetConst binds scalar constant volume i. Unbound constants take the
// algorithm's default value at every voxel.
func (e *Engine) SetConst(i int, v *volume.Volume) error {
	if e.algo == nil {
		return ErrNoAlgorithm
	}
	if i < 0 || i >= e.algo.NumConsts() {
		return fmt.Errorf("%w: const %d (algorithm has %d constants)", ErrIndexOutOfRange, i, e.algo.NumConsts())
	}
	if v != nil && v.Components != 1 {
		return fmt.Errorf("%w: const %d has %d components, expected 1", ErrInputSize, i, v.Components)
	}
	e.consts[i] = v
	return nil
}

// SetMask restricts processing to voxels where the mask is non-zero.
// The mask must be scalar; nil clears it.
func (e *Engine) SetMask(v *volume.Volume) error {
	if v != nil && v.Components != 1 {
		return fmt.Errorf("%w: mask has %d components, expected 1", ErrInputSize, v.Components)
	}
	e.mask = v
	return nil
}

// SetSubregion restricts processing to a region of the input.
// Containment is checked when the engine runs.
func (e *Engine) SetSubregion(r models.Region) {
	sub := r.Clone()
	e.subregion = &sub
}

// SetPoolsize sets the number of workers. 0 uses every available CPU.
func (e *Engine) SetPoolsize(n int) {
	if n < 0 {
		n = 0
	}
	e.poolsize = n
}

// SetSplitsPerThread sets how many splits are requested per worker.
// 0 requests as many splits per worker as there are workers.
func (e *Engine) SetSplitsPerThread(n int) {
	if n < 0 {
		n = 0
	}
	e.splitsPerThread = n
}

// SetOutputAllResiduals enables the per-data-point residual map
func (e *Engine) SetOutputAllResiduals(all bool) {
	e.allResiduals = all
}

// SetVerbose enables progress messages at info level
func (e *Engine) SetVerbose(v bool) {
	e.verbose = v
}

// SetLogger replaces the logger used for diagnostics
func (e *Engine) SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	e.logger = l
}

// SetProgress registers a callback invoked as splits complete
func (e *Engine) SetProgress(fn ProgressFunc) {
	e.progress = fn
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.verbose {
		e.logger.Infof(format, args...)
	} else {
		e.logger.Debugf(format, args...)
	}
}

// validate checks every binding and returns the region to process
func (e *Engine) validate() (models.Region, error) {
	if e.algo == nil {
		return models.Region{}, ErrNoAlgorithm
	}

	size := 0
	for i, in := range e.inputs {
		if in == nil {
			return models.Region{}, fmt.Errorf("%w: input %d", ErrMissingInput, i)
		}
		size += in.Components
	}
	if size != e.algo.DataSize() {
		return models.Region{}, fmt.Errorf("%w: sequence size %d, input size %d", ErrInputSize, e.algo.DataSize(), size)
	}
	if size == 0 {
		return models.Region{}, fmt.Errorf("%w: total input size cannot be 0", ErrInputSize)
	}

	ref := e.inputs[0]
	for i, in := range e.inputs[1:] {
		if err := ref.SameGeometry(in); err != nil {
			return models.Region{}, fmt.Errorf("input %d: %w", i+1, err)
		}
	}
	for i, c := range e.consts {
		if c == nil {
			continue
		}
		if err := ref.SameGeometry(c); err != nil {
			return models.Region{}, fmt.Errorf("const %d: %w", i, err)
		}
	}
	if e.mask != nil {
		if err := ref.SameGeometry(e.mask); err != nil {
			return models.Region{}, fmt.Errorf("mask: %w", err)
		}
	}

	region := ref.LargestRegion()
	if e.subregion != nil {
		if !region.IsInside(*e.subregion) {
			return models.Region{}, fmt.Errorf("%w: %v not inside %v", ErrSubregion, e.subregion, region)
		}
		region = e.subregion.Clone()
	}
	return region, nil
}

// allocate creates the output volumes with the geometry of input 0
func (e *Engine) allocate() {
	ref := e.inputs[0]
	e.logf("Allocating output memory")
	out := Outputs{
		Params: make([]*volume.Volume, e.algo.NumOutputs()),
	}
	for i := range out.Params {
		out.Params[i] = volume.NewLike(ref, e.algo.OutputSize())
	}
	if e.allResiduals {
		out.AllResiduals = volume.NewLike(ref, e.algo.DataSize())
	}
	out.Residual = volume.NewLike(ref, e.algo.OutputSize())
	out.Iterations = volume.NewLike(ref, 1)
	e.outputs = out
}

// Run validates the bindings, allocates the outputs and processes every
// voxel of the region. Configuration problems are returned before any work
// is dispatched. Per-voxel failures are logged and do not stop the run.
func (e *Engine) Run() error {
	region, err := e.validate()
	if err != nil {
		return err
	}
	e.allocate()
	atomic.StoreInt64(&e.failures, 0)
	atomic.StoreInt64(&e.processed, 0)

	poolsize := e.poolsize
	if poolsize == 0 {
		poolsize = runtime.NumCPU()
	}
	perThread := e.splitsPerThread
	if perThread == 0 {
		perThread = poolsize
	}

	split := splitter.New()
	requested := poolsize * perThread
	splits := split.NumberOfSplits(region, requested)
	e.logf("Number of splits: %d", splits)

	var (
		progressMu sync.Mutex
		completed  int
	)

	start := time.Now()
	pool := threadpool.New(poolsize, e.logger)
	for i := 0; i < splits; i++ {
		sub := split.Split(i, requested, region)
		id := i
		pool.Enqueue(func() {
			e.process(sub, id)
			if e.progress != nil {
				progressMu.Lock()
				completed++
				e.progress(completed, splits)
				progressMu.Unlock()
			}
		})
		e.logf("Starting split %d", i)
	}
	err = pool.Close()
	e.elapsed = time.Since(start)
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}
	e.logf("Finished all splits")
	return nil
}

// process runs the voxel loop over one split. Every volume shares the
// lattice, so one iterator offset addresses all of them.
func (e *Engine) process(region models.Region, split int) {
	algo := e.algo
	zero := algo.Zero()
	defaults := algo.DefaultConsts()
	res := newResult(algo, e.allResiduals)

	inputs := make([][]float64, len(e.inputs))
	for i, in := range e.inputs {
		inputs[i] = make([]float64, in.Components)
	}
	consts := make([]float64, len(defaults))

	out := e.outputs
	var failed, processed int64

	it := volume.NewIterator(e.inputs[0].Size, region)
	for it.Next() {
		off := it.Offset()

		if e.mask != nil && e.mask.Pixel(off)[0] == 0 {
			for _, p := range out.Params {
				copy(p.Pixel(off), zero)
			}
			if out.AllResiduals != nil {
				px := out.AllResiduals.Pixel(off)
				for j := range px {
					px[j] = 0
				}
			}
			copy(out.Residual.Pixel(off), zero)
			out.Iterations.Pixel(off)[0] = 0
			continue
		}

		for i, in := range e.inputs {
			copy(inputs[i], in.Pixel(off))
		}
		copy(consts, defaults)
		for i, c := range e.consts {
			if c != nil {
				consts[i] = c.Pixel(off)[0]
			}
		}
		res.reset(zero)

		if err := algo.Apply(inputs, consts, it.Index(), res); err != nil {
			failed++
			e.logger.WithFields(logrus.Fields{
				"voxel": append([]int(nil), it.Index()...),
				"split": split,
			}).Warnf("algorithm failed: %v", err)
		}
		processed++

		for i, p := range out.Params {
			copy(p.Pixel(off), res.Outputs[i])
		}
		copy(out.Residual.Pixel(off), res.Residual)
		if out.AllResiduals != nil {
			copy(out.AllResiduals.Pixel(off), res.Resids)
		}
		out.Iterations.Pixel(off)[0] = float64(res.Iterations)
	}

	atomic.AddInt64(&e.failures, failed)
	atomic.AddInt64(&e.processed, processed)
}

// Output returns parameter map i
func (e *Engine) Output(i int) (*volume.Volume, error) {
	if e.algo == nil {
		return nil, ErrNoAlgorithm
	}
	if i < 0 || i >= e.algo.NumOutputs() {
		return nil, fmt.Errorf("%w: output %d (algorithm has %d outputs)", ErrIndexOutOfRange, i, e.algo.NumOutputs())
	}
	if e.outputs.Params == nil {
		return nil, fmt.Errorf("output %d requested before Run", i)
	}
	return e.outputs.Params[i], nil
}

// Outputs returns every volume produced by the last run
func (e *Engine) Outputs() Outputs {
	return e.outputs
}

// ResidualOutput returns the residual map
func (e *Engine) ResidualOutput() *volume.Volume {
	return e.outputs.Residual
}

// AllResidualsOutput returns the per-data-point residual map, or nil when
// it was not requested
func (e *Engine) AllResidualsOutput() *volume.Volume {
	return e.outputs.AllResiduals
}

// IterationsOutput returns the iteration count map
func (e *Engine) IterationsOutput() *volume.Volume {
	return e.outputs.Iterations
}

// TotalTime returns the wall-clock time spent processing splits
func (e *Engine) TotalTime() time.Duration {
	return e.elapsed
}

// Failures returns the number of voxels whose fit reported an error
func (e *Engine) Failures() int64 {
	return atomic.LoadInt64(&e.failures)
}

// Processed returns the number of voxels passed to the algorithm
func (e *Engine) Processed() int64 {
	return atomic.LoadInt64(&e.processed)
}

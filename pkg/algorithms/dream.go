package algorithms

import (
	"fmt"
	"math"

	"qitools/pkg/apply"
)

// DefaultDREAMAngle is the nominal DREAM flip angle in degrees
const DefaultDREAMAngle = 55.0

// DREAM computes the actual flip angle and relative B1 from the FID and
// stimulated echo images of a DREAM acquisition. Input 0 is the FID and
// input 1 the STE.
type DREAM struct {
	nominal float64
}

// NewDREAM returns a DREAM fit for a nominal flip angle in degrees
func NewDREAM(nominal float64) *DREAM {
	if nominal <= 0 {
		nominal = DefaultDREAMAngle
	}
	return &DREAM{nominal: nominal}
}

func (d *DREAM) NumInputs() int           { return 2 }
func (d *DREAM) NumConsts() int           { return 0 }
func (d *DREAM) NumOutputs() int          { return 2 }
func (d *DREAM) DataSize() int            { return 2 }
func (d *DREAM) OutputSize() int          { return 1 }
func (d *DREAM) DefaultConsts() []float64 { return []float64{} }
func (d *DREAM) Zero() []float64          { return []float64{0} }
func (d *DREAM) Names() []string          { return []string{"angle", "B1"} }

// Apply computes alpha = atan(sqrt(2 STE / FID))
func (d *DREAM) Apply(inputs [][]float64, consts []float64, index []int, res *apply.Result) error {
	fid, ste := inputs[0][0], inputs[1][0]
	if fid <= 0 || ste < 0 {
		return fmt.Errorf("invalid signal FID=%g STE=%g", fid, ste)
	}
	alpha := math.Atan(math.Sqrt(2*ste/fid)) * 180 / math.Pi
	res.Outputs[0][0] = alpha
	res.Outputs[1][0] = alpha / d.nominal
	return nil
}

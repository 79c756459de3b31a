package apply

import (
	"errors"

	"qitools/pkg/volume"
)

// Configuration errors returned by the engine before any voxel is processed
var (
	ErrNoAlgorithm      = errors.New("algorithm has not been set")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrInputSize        = errors.New("input size does not match algorithm data size")
	ErrSubregion        = errors.New("subregion is not entirely inside the image")
	ErrMissingInput     = errors.New("input volume has not been set")
	ErrGeometry         = volume.ErrGeometry
	ErrAlgorithmOutputs = errors.New("algorithm shape is invalid")
)

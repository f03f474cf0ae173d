package formats

import "fmt"

// Motion archive member names.
const (
	npzPoses     = "poses"
	npzTrans     = "trans"
	npzFrameRate = "mocap_framerate"
)

// Motion is a decoded motion-capture sequence.
type Motion struct {
	Poses     [][]float64 // per frame, 3 axis-angle values per joint
	Trans     [][]float64 // per frame, root translation
	FrameRate float64
}

// NumFrames returns the number of frames.
func (m *Motion) NumFrames() int { return len(m.Poses) }

// ReadMotionNPZ decodes a motion archive with poses (N, 3J), trans (N, 3) and
// an optional mocap_framerate scalar. A missing frame rate reads as 0.
func ReadMotionNPZ(path string) (*Motion, error) {
	a, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	poses, err := a.read(npzPoses)
	if err != nil {
		return nil, err
	}
	if len(poses.shape) != 2 || poses.shape[1]%3 != 0 {
		return nil, fmt.Errorf("%w: %s is %v, want (N, 3J)", ErrArrayShape, npzPoses, poses.shape)
	}
	trans, err := a.read(npzTrans)
	if err != nil {
		return nil, err
	}
	if len(trans.shape) != 2 || trans.shape[1] != 3 || trans.shape[0] != poses.shape[0] {
		return nil, fmt.Errorf("%w: %s is %v, want (%d, 3)", ErrArrayShape, npzTrans, trans.shape, poses.shape[0])
	}

	m := &Motion{
		Poses: rows(poses),
		Trans: rows(trans),
	}
	if a.has(npzFrameRate) {
		rate, err := a.read(npzFrameRate)
		if err != nil {
			return nil, err
		}
		if len(rate.data) != 1 {
			return nil, fmt.Errorf("%w: %s is %v, want a scalar", ErrArrayShape, npzFrameRate, rate.shape)
		}
		m.FrameRate = rate.data[0]
	}
	return m, nil
}

// rows splits a 2-D array into independent row slices.
func rows(arr *ndarray) [][]float64 {
	n, width := arr.shape[0], arr.shape[1]
	out := make([][]float64, n)
	for i := range out {
		out[i] = arr.data[i*width : (i+1)*width : (i+1)*width]
	}
	return out
}

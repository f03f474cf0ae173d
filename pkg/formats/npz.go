package formats

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sbinet/npyio/npz"
)

// NumPy archive errors.
var (
	ErrMissingArray     = errors.New("missing array in archive")
	ErrUnsupportedDType = errors.New("unsupported array dtype")
	ErrArrayShape       = errors.New("unexpected array shape")
)

// ndarray is a decoded NumPy array widened to float64, C order.
type ndarray struct {
	shape []int
	data  []float64
}

func (a *ndarray) size() int {
	n := 1
	for _, d := range a.shape {
		n *= d
	}
	return n
}

// archive wraps an open .npz file and resolves member names with or without
// the ".npy" suffix.
type archive struct {
	path string
	r    *npz.Reader
	keys map[string]string
}

func openArchive(path string) (*archive, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}
	a := &archive{path: path, r: r, keys: make(map[string]string)}
	for _, k := range r.Keys() {
		a.keys[strings.TrimSuffix(k, ".npy")] = k
	}
	return a, nil
}

func (a *archive) Close() error { return a.r.Close() }

func (a *archive) has(name string) bool {
	_, ok := a.keys[name]
	return ok
}

// read decodes the named array. Integer and float dtypes are accepted.
func (a *archive) read(name string) (*ndarray, error) {
	key, ok := a.keys[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrMissingArray, name, a.path)
	}
	hdr := a.r.Header(key)
	if hdr == nil {
		return nil, fmt.Errorf("%w: %q in %s", ErrMissingArray, name, a.path)
	}
	if hdr.Descr.Fortran {
		return nil, fmt.Errorf("%w: %q is Fortran-ordered", ErrUnsupportedDType, name)
	}

	arr := &ndarray{shape: append([]int(nil), hdr.Descr.Shape...)}
	if len(arr.shape) == 0 {
		v, err := a.readScalar(key, hdr.Descr.Type)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", name, err)
		}
		arr.data = []float64{v}
		return arr, nil
	}

	var err error
	switch dtype(hdr.Descr.Type) {
	case "f8":
		err = a.r.Read(key, &arr.data)
	case "f4":
		var raw []float32
		err = a.r.Read(key, &raw)
		arr.data = widen(raw)
	case "i8":
		var raw []int64
		err = a.r.Read(key, &raw)
		arr.data = widen(raw)
	case "i4":
		var raw []int32
		err = a.r.Read(key, &raw)
		arr.data = widen(raw)
	case "u8":
		var raw []uint64
		err = a.r.Read(key, &raw)
		arr.data = widen(raw)
	case "u4":
		var raw []uint32
		err = a.r.Read(key, &raw)
		arr.data = widen(raw)
	default:
		return nil, fmt.Errorf("%w: %q has dtype %s", ErrUnsupportedDType, name, hdr.Descr.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", name, err)
	}
	if len(arr.data) != arr.size() {
		return nil, fmt.Errorf("%w: %q has %d values for shape %v", ErrArrayShape, name, len(arr.data), arr.shape)
	}
	return arr, nil
}

func (a *archive) readScalar(key, descr string) (float64, error) {
	switch dtype(descr) {
	case "f8":
		var v float64
		err := a.r.Read(key, &v)
		return v, err
	case "f4":
		var v float32
		err := a.r.Read(key, &v)
		return float64(v), err
	case "i8":
		var v int64
		err := a.r.Read(key, &v)
		return float64(v), err
	case "i4":
		var v int32
		err := a.r.Read(key, &v)
		return float64(v), err
	}
	return 0, fmt.Errorf("%w: scalar dtype %s", ErrUnsupportedDType, descr)
}

// dtype strips the byte-order mark from a NumPy type descriptor.
func dtype(descr string) string {
	return strings.TrimLeft(descr, "<>|=")
}

func widen[T float32 | int64 | int32 | uint64 | uint32](raw []T) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}
	return out
}

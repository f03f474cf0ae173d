package formats

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/Faultbox/smplcache/pkg/math"
	"github.com/Faultbox/smplcache/pkg/smpl"
)

// Model archive member names.
const (
	npzTemplate   = "v_template"
	npzFaces      = "f"
	npzShapeDirs  = "shapedirs"
	npzPoseDirs   = "posedirs"
	npzRegressor  = "J_regressor"
	npzWeights    = "weights"
	npzKinematics = "kintree_table"
)

// ModelOptions adjusts how a model archive is decoded.
type ModelOptions struct {
	// NumShapes keeps only the leading shape components; 0 keeps all.
	NumShapes int
}

// ReadModelNPZ decodes a body model archive into model parameters.
func ReadModelNPZ(path string, opts ModelOptions) (*smpl.Params, error) {
	a, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	arrays := make(map[string]*ndarray)
	for _, name := range []string{npzTemplate, npzFaces, npzShapeDirs, npzPoseDirs, npzRegressor, npzWeights, npzKinematics} {
		arr, err := a.read(name)
		if err != nil {
			return nil, err
		}
		arrays[name] = arr
	}

	tmpl := arrays[npzTemplate]
	if len(tmpl.shape) != 2 || tmpl.shape[0] == 0 || tmpl.shape[1] != 3 {
		return nil, fmt.Errorf("%w: %s is %v, want (V, 3)", ErrArrayShape, npzTemplate, tmpl.shape)
	}
	nv := tmpl.shape[0]
	p := &smpl.Params{Template: make([]math.Vec3, nv)}
	for v := range p.Template {
		p.Template[v] = math.V3(tmpl.data[3*v:])
	}

	faces := arrays[npzFaces]
	if len(faces.shape) != 2 || faces.shape[1] != 3 {
		return nil, fmt.Errorf("%w: %s is %v, want (F, 3)", ErrArrayShape, npzFaces, faces.shape)
	}
	p.Faces = make([][3]int, faces.shape[0])
	for f := range p.Faces {
		p.Faces[f] = [3]int{int(faces.data[3*f]), int(faces.data[3*f+1]), int(faces.data[3*f+2])}
	}

	kin := arrays[npzKinematics]
	if len(kin.shape) != 2 || kin.shape[0] != 2 || kin.shape[1] == 0 {
		return nil, fmt.Errorf("%w: %s is %v, want (2, J)", ErrArrayShape, npzKinematics, kin.shape)
	}
	nj := kin.shape[1]
	p.Parents = make([]int, nj)
	p.Parents[0] = -1
	for j := 1; j < nj; j++ {
		p.Parents[j] = int(kin.data[j])
	}

	if p.ShapeBasis, err = blendBasis(npzShapeDirs, arrays[npzShapeDirs], nv); err != nil {
		return nil, err
	}
	if s, _ := p.ShapeBasis.Dims(); opts.NumShapes > 0 && opts.NumShapes < s {
		p.ShapeBasis = mat.DenseCopyOf(p.ShapeBasis.Slice(0, opts.NumShapes, 0, 3*nv))
	}
	if p.PoseBasis, err = blendBasis(npzPoseDirs, arrays[npzPoseDirs], nv); err != nil {
		return nil, err
	}

	reg := arrays[npzRegressor]
	if len(reg.shape) != 2 {
		return nil, fmt.Errorf("%w: %s is %v, want (J, V)", ErrArrayShape, npzRegressor, reg.shape)
	}
	var dense mat.Matrix
	switch {
	case reg.shape[0] == nj && reg.shape[1] == nv:
		dense = mat.NewDense(nj, nv, reg.data)
	case reg.shape[0] == nv && reg.shape[1] == nj:
		dense = mat.NewDense(nv, nj, reg.data).T()
	default:
		return nil, fmt.Errorf("%w: %s is %v, want (%d, %d)", ErrArrayShape, npzRegressor, reg.shape, nj, nv)
	}
	p.Regressor = smpl.JointRegressorFromDense(dense)

	w := arrays[npzWeights]
	if len(w.shape) != 2 || w.shape[0] == 0 || w.shape[1] == 0 {
		return nil, fmt.Errorf("%w: %s is %v, want (V, J)", ErrArrayShape, npzWeights, w.shape)
	}
	p.Weights = mat.NewDense(w.shape[0], w.shape[1], w.data)

	return p, nil
}

// blendBasis turns a (V, 3, K) or (3V, K) direction array into a K×3V basis.
func blendBasis(name string, arr *ndarray, nv int) (*mat.Dense, error) {
	var k int
	switch {
	case len(arr.shape) == 3 && arr.shape[0] == nv && arr.shape[1] == 3:
		k = arr.shape[2]
	case len(arr.shape) == 2 && arr.shape[0] == 3*nv:
		k = arr.shape[1]
	default:
		return nil, fmt.Errorf("%w: %s is %v, want (%d, 3, K)", ErrArrayShape, name, arr.shape, nv)
	}
	if k == 0 {
		return nil, fmt.Errorf("%w: %s has no components", ErrArrayShape, name)
	}
	return mat.DenseCopyOf(mat.NewDense(3*nv, k, arr.data).T()), nil
}

package shapespace

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"cellshape3d/pkg/dataset"
)

// Model is the fitted shape-space view the reconstruction pipeline
// needs from its upstream collaborator: an inverse transform from
// principal-component coordinates back to the full feature vector,
// the ordered feature names used to fit the model, and the number of
// retained components.
type Model interface {
	// InverseTransform maps one PC-coordinate vector of length
	// NumComponents back to a full feature vector
	InverseTransform(coords []float64) []float64

	// FeatureNames returns the ordered names of the fitted features
	FeatureNames() []string

	// NumComponents returns the count of retained components
	NumComponents() int
}

// PCAModel is a concrete Model backed by the component matrix and
// feature means of a principal-component fit.
type PCAModel struct {
	components *mat.Dense // k x d
	mean       []float64  // d
	features   []string
}

// NewPCAModel builds a PCAModel from a k x d component matrix (one
// component per row), the d feature means, and the d ordered feature
// names.
func NewPCAModel(components [][]float64, mean []float64, features []string) (*PCAModel, error) {
	k := len(components)
	if k == 0 {
		return nil, fmt.Errorf("%w: model has no components", ErrInvalidParameter)
	}
	d := len(components[0])
	if d != len(mean) || d != len(features) {
		return nil, fmt.Errorf("%w: component width %d does not match %d means and %d features",
			ErrInvalidParameter, d, len(mean), len(features))
	}

	flat := make([]float64, 0, k*d)
	for _, row := range components {
		if len(row) != d {
			return nil, fmt.Errorf("%w: ragged component matrix", ErrInvalidParameter)
		}
		flat = append(flat, row...)
	}

	return &PCAModel{
		components: mat.NewDense(k, d, flat),
		mean:       append([]float64(nil), mean...),
		features:   append([]string(nil), features...),
	}, nil
}

// InverseTransform maps PC coordinates back to the feature space:
// x = mean + coords^T W. The transform is linear, so identical
// coordinates always yield bit-identical features.
func (p *PCAModel) InverseTransform(coords []float64) []float64 {
	k, d := p.components.Dims()
	out := append([]float64(nil), p.mean...)
	if len(coords) != k {
		return out
	}
	c := mat.NewVecDense(k, append([]float64(nil), coords...))
	var x mat.VecDense
	x.MulVec(p.components.T(), c)
	for i := 0; i < d; i++ {
		out[i] += x.AtVec(i)
	}
	return out
}

// FeatureNames returns the ordered feature names of the fit.
func (p *PCAModel) FeatureNames() []string {
	return append([]string(nil), p.features...)
}

// NumComponents returns the number of retained components.
func (p *PCAModel) NumComponents() int {
	k, _ := p.components.Dims()
	return k
}

// modelFile is the serialized form of a fitted shape-space model as
// exported by the upstream dimensionality-reduction step.
type modelFile struct {
	Components [][]float64 `json:"components"`
	Mean       []float64   `json:"mean"`
	Features   []string    `json:"features"`
}

// LoadPCAModel reads a fitted model from its JSON export.
func LoadPCAModel(path string) (*PCAModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse model file: %w", err)
	}
	return NewPCAModel(mf.Components, mf.Mean, mf.Features)
}

// InverseTransformMode converts one or more coordinates along a single
// principal-component axis back into named feature rows, with all
// other axes held at zero. Row identifiers are the 1-based coordinate
// indices, matching the bin numbering of the digitizer.
func InverseTransformMode(model Model, coords []float64, pc int) (*dataset.Table, error) {
	if pc < 0 || pc >= model.NumComponents() {
		return nil, fmt.Errorf("%w: component %d out of range [0, %d)",
			ErrInvalidParameter, pc, model.NumComponents())
	}

	features := model.FeatureNames()
	table := dataset.NewTable(features, nil)

	for i, coord := range coords {
		pcCoords := make([]float64, model.NumComponents())
		pcCoords[pc] = coord
		row := model.InverseTransform(pcCoords)
		if err := table.AppendRow(fmt.Sprintf("%d", i+1), row, nil); err != nil {
			return nil, err
		}
	}

	return table, nil
}

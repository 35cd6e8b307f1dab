package mlp

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/okian/patella/internal/domain/model"
	"gonum.org/v1/gonum/mat"
)

// Layer kinds understood by the loader.
const (
	KindLinear    = "linear"
	KindBatchNorm = "batchnorm"
	KindReLU      = "relu"
)

const defaultBatchNormEps = 1e-5

// LayerSpec is one entry of the weights file. Linear weights use the
// (out, in) row-major layout of the training framework.
type LayerSpec struct {
	Kind        string      `json:"type"`
	Weight      [][]float64 `json:"weight,omitempty"`
	Bias        []float64   `json:"bias,omitempty"`
	Gamma       []float64   `json:"gamma,omitempty"`
	Beta        []float64   `json:"beta,omitempty"`
	RunningMean []float64   `json:"running_mean,omitempty"`
	RunningVar  []float64   `json:"running_var,omitempty"`
	Eps         float64     `json:"eps,omitempty"`
}

// Weights is the serialized network.
type Weights struct {
	Layers []LayerSpec `json:"layers"`
}

// LoadFile reads and compiles a weights file.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weights: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes weights from r and compiles them.
func Load(r io.Reader) (*Model, error) {
	var w Weights
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("decode weights: %v: %w", err, ErrInvalidWeights)
	}
	return Compile(w)
}

// Compile checks that the layers chain from model.FeatureLength inputs to
// model.NumClasses outputs and builds the dense operators.
func Compile(w Weights) (*Model, error) {
	if len(w.Layers) == 0 {
		return nil, fmt.Errorf("no layers: %w", ErrInvalidWeights)
	}
	width := model.FeatureLength
	layers := make([]layer, 0, len(w.Layers))
	for i, spec := range w.Layers {
		l, out, err := compileLayer(spec, width)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %v: %w", i, spec.Kind, err, ErrInvalidWeights)
		}
		layers = append(layers, l)
		width = out
	}
	if width != model.NumClasses {
		return nil, fmt.Errorf("network emits %d values, want %d: %w", width, model.NumClasses, ErrInvalidWeights)
	}
	return &Model{layers: layers}, nil
}

func compileLayer(spec LayerSpec, in int) (layer, int, error) {
	switch spec.Kind {
	case KindLinear:
		out := len(spec.Weight)
		if out == 0 {
			return nil, 0, fmt.Errorf("empty weight matrix")
		}
		flat := make([]float64, 0, out*in)
		for r, row := range spec.Weight {
			if len(row) != in {
				return nil, 0, fmt.Errorf("weight row %d has %d columns, want %d", r, len(row), in)
			}
			flat = append(flat, row...)
		}
		if len(spec.Bias) != out {
			return nil, 0, fmt.Errorf("bias has %d values, want %d", len(spec.Bias), out)
		}
		return &linear{
			weight: mat.NewDense(out, in, flat),
			bias:   append([]float64(nil), spec.Bias...),
		}, out, nil

	case KindBatchNorm:
		for name, v := range map[string][]float64{
			"gamma":        spec.Gamma,
			"beta":         spec.Beta,
			"running_mean": spec.RunningMean,
			"running_var":  spec.RunningVar,
		} {
			if len(v) != in {
				return nil, 0, fmt.Errorf("%s has %d values, want %d", name, len(v), in)
			}
		}
		eps := spec.Eps
		if eps <= 0 {
			eps = defaultBatchNormEps
		}
		return newBatchNorm(spec.Gamma, spec.Beta, spec.RunningMean, spec.RunningVar, eps), in, nil

	case KindReLU:
		return relu{}, in, nil

	default:
		return nil, 0, fmt.Errorf("unknown layer type %q", spec.Kind)
	}
}

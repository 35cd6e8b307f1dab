// Package mlp runs a small feed-forward severity classifier with gonum.
//
// The network is loaded from a JSON weights file exported from training:
// Linear(27,512), BatchNorm, ReLU, Linear(512,256), ReLU, Linear(256,3) in
// the shipped model, although any chain from 27 inputs to 3 outputs loads.
// Dropout layers are not exported since they are the identity at inference.
package mlp

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/patella/internal/domain/model"
	"gonum.org/v1/gonum/mat"
)

type layer interface {
	forward(x *mat.Dense) *mat.Dense
}

// Model is a compiled network. It is immutable and safe for concurrent use.
type Model struct {
	layers []layer
}

// Classify runs the whole batch through the network as one matrix and
// returns a softmax distribution per row.
func (m *Model) Classify(ctx context.Context, batch [][]float64) ([][]float64, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("mlp: %w", model.ErrEmptyInput)
	}
	flat := make([]float64, 0, len(batch)*model.FeatureLength)
	for i, row := range batch {
		if len(row) != model.FeatureLength {
			return nil, fmt.Errorf("mlp row %d has %d values: %w", i, len(row), model.ErrValidation)
		}
		flat = append(flat, row...)
	}

	x := mat.NewDense(len(batch), model.FeatureLength, flat)
	for _, l := range m.layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		x = l.forward(x)
	}

	rows, _ := x.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = softmax(mat.Row(nil, i, x))
	}
	return out, nil
}

type linear struct {
	weight *mat.Dense // out x in
	bias   []float64
}

func (l *linear) forward(x *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	out, _ := l.weight.Dims()
	y := mat.NewDense(rows, out, nil)
	y.Mul(x, l.weight.T())
	y.Apply(func(_, j int, v float64) float64 { return v + l.bias[j] }, y)
	return y
}

// batchNorm uses the running statistics, folded into a scale and a shift.
type batchNorm struct {
	scale []float64
	shift []float64
}

func newBatchNorm(gamma, beta, mean, variance []float64, eps float64) *batchNorm {
	bn := &batchNorm{scale: make([]float64, len(gamma)), shift: make([]float64, len(gamma))}
	for i := range gamma {
		bn.scale[i] = gamma[i] / math.Sqrt(variance[i]+eps)
		bn.shift[i] = beta[i] - mean[i]*bn.scale[i]
	}
	return bn
}

func (b *batchNorm) forward(x *mat.Dense) *mat.Dense {
	x.Apply(func(_, j int, v float64) float64 { return v*b.scale[j] + b.shift[j] }, x)
	return x
}

type relu struct{}

func (relu) forward(x *mat.Dense) *mat.Dense {
	x.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, x)
	return x
}

func softmax(logits []float64) []float64 {
	maxLogit := math.Inf(-1)
	for _, v := range logits {
		maxLogit = math.Max(maxLogit, v)
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

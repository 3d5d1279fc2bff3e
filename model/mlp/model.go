// Package mlp は blas32 上の多層パーセプトロンによる方策モデルを提供する。
package mlp

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/sw965/pgcrow/blas32/tensor/2d"
	"github.com/sw965/pgcrow/blas32/vector"
	"github.com/sw965/pgcrow/model"
	"gonum.org/v1/gonum/blas/blas32"
)

var (
	ErrInputShape = errors.New("mlp: 入力の形状が一致しません")
	ErrNoLayers   = errors.New("mlp: 層がありません")
)

type LayerKind int

const (
	AffineLayer LayerKind = iota
	LeakyReLULayer
	SigmoidLayer
	SoftmaxLayer
)

func (k LayerKind) String() string {
	switch k {
	case AffineLayer:
		return "affine"
	case LeakyReLULayer:
		return "leaky_relu"
	case SigmoidLayer:
		return "sigmoid"
	case SoftmaxLayer:
		return "softmax"
	default:
		return fmt.Sprintf("LayerKind(%d)", int(k))
	}
}

// LayerSpec は保存と復元の為に層の構成を記録する。
type LayerSpec struct {
	Kind  LayerKind
	In    int
	Out   int
	Alpha float32
}

type Model struct {
	Specs      []LayerSpec
	Parameters Parameters
	forwards   Forwards
}

func emptyParameter() Parameter {
	return Parameter{
		Weight: blas32.General{Data: []float32{}},
		Bias:   blas32.Vector{Data: []float32{}},
	}
}

func newForward(spec LayerSpec) (Forward, error) {
	switch spec.Kind {
	case AffineLayer:
		return AffineForward, nil
	case LeakyReLULayer:
		return NewLeakyReLUForward(spec.Alpha), nil
	case SigmoidLayer:
		return SigmoidForward, nil
	case SoftmaxLayer:
		return SoftmaxForward, nil
	default:
		return nil, fmt.Errorf("mlp: 未知の層 %v", spec.Kind)
	}
}

func (m *Model) append(spec LayerSpec, param Parameter) {
	f, err := newForward(spec)
	if err != nil {
		panic(err)
	}
	m.Specs = append(m.Specs, spec)
	m.Parameters = append(m.Parameters, param)
	m.forwards = append(m.forwards, f)
}

func (m *Model) AppendAffine(xn, yn int, rng *rand.Rand) {
	param := Parameter{
		Weight: tensor2d.NewHe(xn, yn, rng),
		Bias:   vector.NewZeros(yn),
	}
	m.append(LayerSpec{Kind: AffineLayer, In: xn, Out: yn}, param)
}

func (m *Model) AppendLeakyReLU(alpha float32) {
	m.append(LayerSpec{Kind: LeakyReLULayer, Alpha: alpha}, emptyParameter())
}

func (m *Model) AppendSigmoid() {
	m.append(LayerSpec{Kind: SigmoidLayer}, emptyParameter())
}

func (m *Model) AppendSoftmax() {
	m.append(LayerSpec{Kind: SoftmaxLayer}, emptyParameter())
}

// rebuild は Specs から順伝播関数を作り直す。
func (m *Model) rebuild() error {
	if len(m.Specs) != len(m.Parameters) {
		return fmt.Errorf("mlp: 層の数 %d とパラメータの数 %d が一致しません", len(m.Specs), len(m.Parameters))
	}
	forwards := make(Forwards, len(m.Specs))
	for i, spec := range m.Specs {
		f, err := newForward(spec)
		if err != nil {
			return err
		}
		forwards[i] = f
	}
	m.forwards = forwards
	return nil
}

func (m *Model) InputSize() int {
	for _, spec := range m.Specs {
		if spec.Kind == AffineLayer {
			return spec.In
		}
	}
	return 0
}

// OutputSize は出力ベクトルの長さ、つまり離散行動の数を返す。
func (m *Model) OutputSize() int {
	for i := len(m.Specs) - 1; i >= 0; i-- {
		if m.Specs[i].Kind == AffineLayer {
			return m.Specs[i].Out
		}
	}
	return 0
}

func (m Model) Clone() Model {
	return Model{
		Specs:      append([]LayerSpec(nil), m.Specs...),
		Parameters: m.Parameters.Clone(),
		forwards:   m.forwards,
	}
}

func (m *Model) forward(x blas32.Vector) (blas32.Vector, Backwards, error) {
	if len(m.forwards) == 0 {
		return blas32.Vector{}, nil, ErrNoLayers
	}
	if x.N != m.InputSize() {
		return blas32.Vector{}, nil, fmt.Errorf("%w: len(x) = %d, 入力層 = %d", ErrInputShape, x.N, m.InputSize())
	}
	return m.forwards.Propagate(x, m.Parameters)
}

func (m *Model) Predict(x blas32.Vector) (blas32.Vector, error) {
	y, _, err := m.forward(x)
	return y, err
}

func (m *Model) BackPropagate(x, t blas32.Vector, loss model.Loss) (float32, GradBuffers, error) {
	y, backwards, err := m.forward(x)
	if err != nil {
		return 0.0, nil, err
	}
	l, err := loss.Func(y, t)
	if err != nil {
		return 0.0, nil, err
	}
	firstChain, err := loss.Derivative(y, t)
	if err != nil {
		return 0.0, nil, err
	}
	_, grads, err := backwards.Propagate(firstChain)
	return l, grads, err
}

// ComputeGrads はデータセット全体の平均勾配と平均損失を返す。
func (m *Model) ComputeGrads(ds model.Dataset, loss model.Loss) (GradBuffers, float32, error) {
	if err := ds.Validate(); err != nil {
		return nil, 0.0, err
	}

	total := m.Parameters.NewGradsZerosLike()
	sum := float32(0.0)
	for i := range ds.Inputs {
		l, grads, err := m.BackPropagate(ds.Inputs[i], ds.Targets[i], loss)
		if err != nil {
			return nil, 0.0, err
		}
		total.Axpy(1.0, grads)
		sum += l
	}
	n := float32(ds.Len())
	total.Scal(1.0 / n)
	return total, sum / n, nil
}

func (m *Model) MeanLoss(ds model.Dataset, loss model.Loss) (float32, error) {
	if err := ds.Validate(); err != nil {
		return 0.0, err
	}
	sum := float32(0.0)
	for i := range ds.Inputs {
		y, err := m.Predict(ds.Inputs[i])
		if err != nil {
			return 0.0, err
		}
		l, err := loss.Func(y, ds.Targets[i])
		if err != nil {
			return 0.0, err
		}
		sum += l
	}
	return sum / float32(ds.Len()), nil
}

func (m *Model) Accuracy(ds model.Dataset) (float32, error) {
	if err := ds.Validate(); err != nil {
		return 0.0, err
	}
	correct := 0
	for i := range ds.Inputs {
		y, err := m.Predict(ds.Inputs[i])
		if err != nil {
			return 0.0, err
		}
		if vector.MaxIndex(y) == vector.MaxIndex(ds.Targets[i]) {
			correct += 1
		}
	}
	return float32(correct) / float32(ds.Len()), nil
}

func (m *Model) step(batch model.Dataset, c *model.TrainConfig) error {
	grads, _, err := m.ComputeGrads(batch, c.Loss)
	if err != nil {
		return err
	}
	return c.Optimizer.Update(m.Parameters.Vectors(), grads.Vectors(), c.LearningRate)
}

// Train はデータセットの並び順のまま最大 c.Epochs エポック学習する。
// 各エポックの後に平均損失を測り、c.MinLoss 以下になった時点で打ち切る。
func (m *Model) Train(ds model.Dataset, c model.TrainConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := ds.Validate(); err != nil {
		return err
	}

	n := ds.Len()
	batchSize := 1
	if c.Mode == model.MiniBatch {
		batchSize = c.BatchSize
	}

	for epoch := 0; epoch < c.Epochs; epoch++ {
		for start := 0; start < n; start += batchSize {
			end := min(start+batchSize, n)
			if err := m.step(ds.Batch(start, end), &c); err != nil {
				return err
			}
		}

		loss, err := m.MeanLoss(ds, c.Loss)
		if err != nil {
			return err
		}
		if loss <= c.MinLoss {
			break
		}
	}
	return nil
}

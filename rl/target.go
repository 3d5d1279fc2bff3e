package rl

import (
	"fmt"
	"math/rand"

	"github.com/sw965/pgcrow/blas32/vector"
	"github.com/sw965/pgcrow/mathx/randx"
	"github.com/sw965/pgcrow/model"
	"gonum.org/v1/gonum/blas/blas32"
)

// DefaultSmoothing は IndexSmoothingPolicy で目標から差し引く既定の確率。
const DefaultSmoothing float32 = 0.01

// TargetPolicy は (行動, 符号報酬) から教師ベクトルを作る方式。
// 実装は ProbabilityVectorPolicy と IndexSmoothingPolicy のみ。
type TargetPolicy interface {
	Name() string
	target(a Action, sign float64, rng *rand.Rand) (blas32.Vector, error)
	defaultSampling() Sampling
}

// ProbabilityVectorPolicy は符号が正なら選好の argmax を、そうでなければ (1 - 選好) の argmax を 1 とする one-hot を目標にする。
type ProbabilityVectorPolicy struct{}

func (ProbabilityVectorPolicy) Name() string {
	return "probability"
}

func (ProbabilityVectorPolicy) defaultSampling() Sampling {
	return RejectionSampling
}

func (ProbabilityVectorPolicy) target(a Action, sign float64, _ *rand.Rand) (blas32.Vector, error) {
	probs := a.probabilities
	var idx int
	if sign > 0 {
		idx = vector.MaxIndex(probs)
	} else {
		idx = vector.MaxIndex(vector.Complement(probs))
	}
	return vector.NewOneHot(probs.N, idx, 1.0), nil
}

// IndexSmoothingPolicy は符号が正なら選んだ行動に、そうでなければそれ以外から一様に選んだ行動に 1 - Smoothing を置く。
// Smoothing が0の場合は DefaultSmoothing を使う。
type IndexSmoothingPolicy struct {
	ActionCount int
	Smoothing   float32
}

func NewIndexSmoothingPolicy(actionCount int) IndexSmoothingPolicy {
	return IndexSmoothingPolicy{
		ActionCount: actionCount,
		Smoothing:   DefaultSmoothing,
	}
}

func (IndexSmoothingPolicy) Name() string {
	return "smoothing"
}

func (IndexSmoothingPolicy) defaultSampling() Sampling {
	return CumulativeSampling
}

func (p IndexSmoothingPolicy) validate() error {
	if p.ActionCount < 1 {
		return fmt.Errorf("%w: ActionCount = %d", ErrActionCount, p.ActionCount)
	}
	if p.Smoothing < 0.0 || p.Smoothing >= 1.0 {
		return fmt.Errorf("%w: Smoothing = %v", ErrInvalidConfig, p.Smoothing)
	}
	return nil
}

func (p IndexSmoothingPolicy) smoothing() float32 {
	if p.Smoothing == 0.0 {
		return DefaultSmoothing
	}
	return p.Smoothing
}

func (p IndexSmoothingPolicy) target(a Action, sign float64, rng *rand.Rand) (blas32.Vector, error) {
	n := p.ActionCount
	if a.index >= n {
		return blas32.Vector{}, fmt.Errorf("%w: 行動 %d, 行動数 %d", ErrOutputShape, a.index, n)
	}
	v := 1.0 - p.smoothing()
	if sign > 0 {
		return vector.NewOneHot(n, a.index, v), nil
	}
	if n < 2 {
		return blas32.Vector{}, fmt.Errorf("%w: 行動 %d 以外を選べません (行動数 %d)", ErrActionCount, a.index, n)
	}
	u, err := randx.IntExcept(n, a.index, rng)
	if err != nil {
		return blas32.Vector{}, err
	}
	return vector.NewOneHot(n, u, v), nil
}

func ParseTargetPolicy(name string, actionCount int) (TargetPolicy, error) {
	switch name {
	case "probability", "":
		return ProbabilityVectorPolicy{}, nil
	case "smoothing":
		return NewIndexSmoothingPolicy(actionCount), nil
	default:
		return nil, fmt.Errorf("%w: 未知の目標生成方式 %q", ErrInvalidConfig, name)
	}
}

// Synthesize はエピソードの全ステップについて、状態を入力、policy の目標を出力とする教師データを作る。
// 並び順はエピソード順、ステップ順。
func Synthesize(episodes []*Episode, signs []float64, policy TargetPolicy, rng *rand.Rand) (model.Dataset, error) {
	if len(episodes) != len(signs) {
		return model.Dataset{}, fmt.Errorf("%w: エピソード数 %d, 報酬数 %d", ErrLengthMismatch, len(episodes), len(signs))
	}

	n := 0
	for _, e := range episodes {
		n += e.Len()
	}
	ds := model.Dataset{
		Inputs:  make([]blas32.Vector, 0, n),
		Targets: make([]blas32.Vector, 0, n),
	}

	for i, e := range episodes {
		for _, step := range e.steps {
			t, err := policy.target(step.Action, signs[i], rng)
			if err != nil {
				return model.Dataset{}, err
			}
			ds.Inputs = append(ds.Inputs, step.State.Input())
			ds.Targets = append(ds.Targets, t)
		}
	}
	return ds, nil
}

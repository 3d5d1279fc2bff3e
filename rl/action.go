package rl

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sw965/pgcrow/blas32/vector"
	"github.com/sw965/pgcrow/mathx/randx"
	"gonum.org/v1/gonum/blas/blas32"
)

type SelectMode int

const (
	Stochastic SelectMode = iota
	Greedy
)

func (m SelectMode) String() string {
	switch m {
	case Stochastic:
		return "stochastic"
	case Greedy:
		return "greedy"
	default:
		return fmt.Sprintf("SelectMode(%d)", int(m))
	}
}

// Sampling は確率的な行動選択の方式。
type Sampling int

const (
	// DefaultSampling は目標生成方策に応じて決める。
	DefaultSampling Sampling = iota
	// CumulativeSampling は選好を正規化した累積和から選ぶ。
	CumulativeSampling
	// RejectionSampling は一様に選んだ行動を選好の値の確率で受理するまで繰り返す。
	RejectionSampling
)

func (s Sampling) String() string {
	switch s {
	case DefaultSampling:
		return "default"
	case CumulativeSampling:
		return "cumulative"
	case RejectionSampling:
		return "rejection"
	default:
		return fmt.Sprintf("Sampling(%d)", int(s))
	}
}

func ParseSampling(s string) (Sampling, error) {
	switch s {
	case "", "default":
		return DefaultSampling, nil
	case "cumulative":
		return CumulativeSampling, nil
	case "rejection":
		return RejectionSampling, nil
	default:
		return 0, fmt.Errorf("%w: 未知のサンプリング方式 %q", ErrInvalidConfig, s)
	}
}

// Action は一回の行動選択の結果。選好ベクトル、選ばれたインデックス、選択方式を保持する。
type Action struct {
	probabilities blas32.Vector
	index         int
	mode          SelectMode
}

func NewAction(probabilities blas32.Vector, index int, mode SelectMode) (Action, error) {
	if index < 0 || index >= probabilities.N {
		return Action{}, fmt.Errorf("%w: index = %d, len = %d", ErrActionIndex, index, probabilities.N)
	}
	return Action{
		probabilities: vector.Clone(probabilities),
		index:         index,
		mode:          mode,
	}, nil
}

func (a Action) Probabilities() blas32.Vector {
	return vector.Clone(a.probabilities)
}

func (a Action) Index() int {
	return a.index
}

func (a Action) Mode() SelectMode {
	return a.mode
}

func (a Action) Sampled() bool {
	return a.mode == Stochastic
}

func (a Action) Len() int {
	return a.probabilities.N
}

type Sampler struct {
	Sampling Sampling
}

func validatePreferences(prefs []float64, mode SelectMode) error {
	if len(prefs) == 0 {
		return ErrEmptyPreferences
	}
	positive := false
	for i, p := range prefs {
		if p < 0.0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: prefs[%d] = %v", ErrInvalidPreferences, i, p)
		}
		if p > 0.0 {
			positive = true
		}
	}
	if mode == Stochastic && !positive {
		return fmt.Errorf("%w: 正の要素がありません", ErrInvalidPreferences)
	}
	return nil
}

// Select は選好ベクトルから行動を1つ選ぶ。Greedy では先頭優先の argmax を返す。
// 乱数は rng からのみ消費する。
func (s Sampler) Select(prefs blas32.Vector, mode SelectMode, rng *rand.Rand) (Action, error) {
	ps := vector.ToFloat64(prefs)
	if err := validatePreferences(ps, mode); err != nil {
		return Action{}, err
	}

	var idx int
	switch mode {
	case Greedy:
		idx = vector.MaxIndex(prefs)
	case Stochastic:
		switch s.Sampling {
		case RejectionSampling:
			idx = randx.IntByAcceptance(ps, rng)
		case DefaultSampling, CumulativeSampling:
			var err error
			idx, err = randx.IntByWeight(ps, rng)
			if err != nil {
				return Action{}, fmt.Errorf("rl: 行動のサンプリングに失敗: %w", err)
			}
		default:
			return Action{}, fmt.Errorf("%w: %v", ErrInvalidConfig, s.Sampling)
		}
	default:
		return Action{}, fmt.Errorf("%w: %v", ErrInvalidConfig, mode)
	}
	return NewAction(prefs, idx, mode)
}

// Package optimizer は平坦化したパラメータベクトルの列を更新する最適化手法を提供する。
package optimizer

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/sw965/pgcrow/blas32/vectors"
	"gonum.org/v1/gonum/blas/blas32"
)

var ErrShapeMismatch = errors.New("optimizer: パラメータと勾配の形状が一致しません")

// Optimizer はパラメータとその勾配を平坦なベクトルの列として受け取り、パラメータをその場で更新する。
// params[i] と grads[i] は同じ長さでなければならない。
type Optimizer interface {
	Update(params, grads []blas32.Vector, lr float32) error
}

func checkShapes(params, grads, state []blas32.Vector) error {
	if len(params) != len(grads) {
		return fmt.Errorf("%w: len(params) = %d, len(grads) = %d", ErrShapeMismatch, len(params), len(grads))
	}
	if state != nil && len(state) != len(params) {
		return fmt.Errorf("%w: 内部状態の数 %d, パラメータの数 %d", ErrShapeMismatch, len(state), len(params))
	}
	for i := range params {
		if params[i].N != grads[i].N {
			return fmt.Errorf("%w: params[%d].N = %d, grads[%d].N = %d", ErrShapeMismatch, i, params[i].N, i, grads[i].N)
		}
		if state != nil && state[i].N != params[i].N {
			return fmt.Errorf("%w: 内部状態[%d] の長さが %d", ErrShapeMismatch, i, state[i].N)
		}
	}
	return nil
}

type SGD struct{}

func (SGD) Update(params, grads []blas32.Vector, lr float32) error {
	if err := checkShapes(params, grads, nil); err != nil {
		return err
	}
	return vectors.Axpy(-lr, grads, params)
}

type Momentum struct {
	Momentum float32
	velocity []blas32.Vector
}

func NewMomentum(momentum float32) *Momentum {
	return &Momentum{Momentum: momentum}
}

func (opt *Momentum) Update(params, grads []blas32.Vector, lr float32) error {
	if opt.velocity == nil {
		opt.velocity = vectors.NewZerosLike(params)
	}
	if err := checkShapes(params, grads, opt.velocity); err != nil {
		return err
	}
	for i := range params {
		v := opt.velocity[i].Data
		g := grads[i].Data
		w := params[i].Data
		for j := range v {
			v[j] = (opt.Momentum * v[j]) - (lr * g[j])
			w[j] += v[j]
		}
	}
	return nil
}

type Adam struct {
	Beta1   float32
	Beta2   float32
	Epsilon float32

	iter int
	m    []blas32.Vector
	v    []blas32.Vector
}

func NewAdam() *Adam {
	return &Adam{
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-7,
	}
}

func (a *Adam) Update(params, grads []blas32.Vector, lr float32) error {
	if a.m == nil {
		a.m = vectors.NewZerosLike(params)
		a.v = vectors.NewZerosLike(params)
	}
	if err := checkShapes(params, grads, a.m); err != nil {
		return err
	}

	a.iter++
	beta1, beta2 := a.Beta1, a.Beta2
	iter := float32(a.iter)
	lrt := lr * math32.Sqrt(1-math32.Pow(beta2, iter)) / (1 - math32.Pow(beta1, iter))

	for i := range grads {
		m := a.m[i].Data
		v := a.v[i].Data
		w := params[i].Data
		for j, g := range grads[i].Data {
			m[j] += (1 - beta1) * (g - m[j])
			v[j] += (1 - beta2) * (g*g - v[j])
			w[j] -= lrt * m[j] / (math32.Sqrt(v[j]) + a.Epsilon)
		}
	}
	return nil
}

func (a *Adam) Iter() int {
	return a.iter
}

func ByName(name string) (Optimizer, error) {
	switch name {
	case "adam", "":
		return NewAdam(), nil
	case "sgd":
		return SGD{}, nil
	case "momentum":
		return NewMomentum(0.9), nil
	default:
		return nil, fmt.Errorf("optimizer: 未知の最適化手法 %q", name)
	}
}

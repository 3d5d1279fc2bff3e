package mlp

import (
	"fmt"
	"slices"

	"github.com/chewxy/math32"
	"github.com/sw965/pgcrow/blas32/tensor/2d"
	"github.com/sw965/pgcrow/blas32/vector"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

type GradBuffer struct {
	Weight blas32.General
	Bias   blas32.Vector
}

func (g *GradBuffer) Axpy(alpha float32, x *GradBuffer) {
	if x.Weight.Rows != 0 {
		tensor2d.Axpy(alpha, x.Weight, g.Weight)
	}

	if x.Bias.N != 0 {
		blas32.Axpy(alpha, x.Bias, g.Bias)
	}
}

func (g *GradBuffer) Scal(alpha float32) {
	if g.Weight.Rows != 0 {
		tensor2d.Scal(alpha, g.Weight)
	}

	if g.Bias.N != 0 {
		blas32.Scal(alpha, g.Bias)
	}
}

type GradBuffers []GradBuffer

func (gs GradBuffers) Axpy(alpha float32, xs GradBuffers) {
	for i := range gs {
		gs[i].Axpy(alpha, &xs[i])
	}
}

func (gs GradBuffers) Scal(alpha float32) {
	for i := range gs {
		gs[i].Scal(alpha)
	}
}

// Vectors は空でない勾配を Parameters.Vectors と同じ順序で平坦なベクトルとして返す。
func (gs GradBuffers) Vectors() []blas32.Vector {
	vs := make([]blas32.Vector, 0, len(gs)*2)
	for _, g := range gs {
		if g.Weight.Rows != 0 {
			vs = append(vs, tensor2d.ToVector(g.Weight))
		}
		if g.Bias.N != 0 {
			vs = append(vs, g.Bias)
		}
	}
	return vs
}

type Parameter struct {
	Weight blas32.General
	Bias   blas32.Vector
}

func (p *Parameter) NewGradZerosLike() GradBuffer {
	return GradBuffer{
		Weight: tensor2d.NewZerosLike(p.Weight),
		Bias:   vector.NewZerosLike(p.Bias),
	}
}

func (p *Parameter) Clone() Parameter {
	return Parameter{
		Weight: tensor2d.Clone(p.Weight),
		Bias:   vector.Clone(p.Bias),
	}
}

type Parameters []Parameter

func (ps Parameters) NewGradsZerosLike() GradBuffers {
	grads := make(GradBuffers, len(ps))
	for i := range ps {
		grads[i] = ps[i].NewGradZerosLike()
	}
	return grads
}

func (ps Parameters) Clone() Parameters {
	clone := make(Parameters, len(ps))
	for i := range ps {
		clone[i] = ps[i].Clone()
	}
	return clone
}

// Vectors は空でないパラメータを、元の領域を共有する平坦なベクトルとして返す。
func (ps Parameters) Vectors() []blas32.Vector {
	vs := make([]blas32.Vector, 0, len(ps)*2)
	for _, p := range ps {
		if p.Weight.Rows != 0 {
			vs = append(vs, tensor2d.ToVector(p.Weight))
		}
		if p.Bias.N != 0 {
			vs = append(vs, p.Bias)
		}
	}
	return vs
}

type Forward func(blas32.Vector, *Parameter) (blas32.Vector, Backward, error)
type Forwards []Forward

func (fs Forwards) Propagate(x blas32.Vector, params Parameters) (blas32.Vector, Backwards, error) {
	var err error
	var backward Backward
	backwards := make(Backwards, len(fs))
	for i, f := range fs {
		x, backward, err = f(x, &params[i])
		if err != nil {
			return blas32.Vector{}, nil, err
		}
		backwards[i] = backward
	}
	y := x
	slices.Reverse(backwards)
	return y, backwards, nil
}

type Backward func(blas32.Vector) (blas32.Vector, GradBuffer, error)
type Backwards []Backward

func (bs Backwards) Propagate(chain blas32.Vector) (blas32.Vector, GradBuffers, error) {
	grads := make(GradBuffers, len(bs))
	var grad GradBuffer
	var err error
	for i, b := range bs {
		chain, grad, err = b(chain)
		if err != nil {
			return blas32.Vector{}, nil, err
		}
		grads[i] = grad
	}
	dx := chain
	slices.Reverse(grads)
	return dx, grads, nil
}

func AffineForward(x blas32.Vector, param *Parameter) (blas32.Vector, Backward, error) {
	if x.N != param.Weight.Rows {
		return blas32.Vector{}, nil, fmt.Errorf("%w: 入力の長さ %d, 重みの行数 %d", ErrInputShape, x.N, param.Weight.Rows)
	}
	y := vector.Affine(x, param.Weight, param.Bias)

	var backward Backward
	backward = func(chain blas32.Vector) (blas32.Vector, GradBuffer, error) {
		wRows := param.Weight.Rows
		wCols := param.Weight.Cols

		dx := vector.NewZeros(wRows)
		blas32.Gemv(blas.NoTrans, 1.0, param.Weight, chain, 0.0, dx)

		dw := tensor2d.NewZeros(wRows, wCols)
		blas32.Ger(1.0, x, chain, dw)

		db := vector.Clone(chain)

		grad := GradBuffer{
			Weight: dw,
			Bias:   db,
		}
		return dx, grad, nil
	}
	return y, backward, nil
}

func NewLeakyReLUForward(alpha float32) Forward {
	return func(x blas32.Vector, _ *Parameter) (blas32.Vector, Backward, error) {
		xData := x.Data
		y := vector.NewZeros(x.N)
		for i := range y.Data {
			e := xData[i]
			if e > 0 {
				y.Data[i] = e
			} else {
				y.Data[i] = alpha * e
			}
		}

		var backward Backward
		backward = func(chain blas32.Vector) (blas32.Vector, GradBuffer, error) {
			dx := vector.NewZeros(chain.N)
			for i, e := range xData[:x.N] {
				if e > 0 {
					dx.Data[i] = chain.Data[i]
				} else {
					dx.Data[i] = alpha * chain.Data[i]
				}
			}
			return dx, GradBuffer{}, nil
		}
		return y, backward, nil
	}
}

func SigmoidForward(x blas32.Vector, _ *Parameter) (blas32.Vector, Backward, error) {
	y := vector.NewZeros(x.N)
	for i := range y.Data {
		y.Data[i] = 1.0 / (1.0 + math32.Exp(-x.Data[i]))
	}

	var backward Backward
	backward = func(chain blas32.Vector) (blas32.Vector, GradBuffer, error) {
		dx := vector.NewZeros(chain.N)
		for i, ye := range y.Data {
			dx.Data[i] = chain.Data[i] * ye * (1.0 - ye)
		}
		return dx, GradBuffer{}, nil
	}
	return y, backward, nil
}

func SoftmaxForward(x blas32.Vector, _ *Parameter) (blas32.Vector, Backward, error) {
	xData := x.Data[:x.N]
	// オーバーフロー対策
	maxX := xData[vector.MaxIndex(x)]
	y := vector.NewZeros(x.N)
	sumExpX := float32(0.0)
	for i, e := range xData {
		y.Data[i] = math32.Exp(e - maxX)
		sumExpX += y.Data[i]
	}
	blas32.Scal(1.0/sumExpX, y)

	var backward Backward
	backward = func(chain blas32.Vector) (blas32.Vector, GradBuffer, error) {
		// dx_i = y_i * (chain_i - Σ_j chain_j * y_j)
		dot := blas32.Dot(chain, y)
		dx := vector.NewZeros(chain.N)
		for i, ye := range y.Data {
			dx.Data[i] = ye * (chain.Data[i] - dot)
		}
		return dx, GradBuffer{}, nil
	}
	return y, backward, nil
}

package rl

import (
	"github.com/sw965/pgcrow/blas32/vector"
	"gonum.org/v1/gonum/blas/blas32"
)

// State はある時刻の環境の観測。生成後は変更されない。
type State struct {
	input blas32.Vector
}

func NewState(x blas32.Vector) State {
	return State{input: vector.Clone(x)}
}

func NewStateFromSlice(xs []float32) State {
	return NewState(vector.New(xs))
}

func (s State) Input() blas32.Vector {
	return vector.Clone(s.input)
}

func (s State) Len() int {
	return s.input.N
}

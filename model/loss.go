package model

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/sw965/pgcrow/blas32/vector"
	"gonum.org/v1/gonum/blas/blas32"
)

type Loss struct {
	Name       string
	Func       func(y, t blas32.Vector) (float32, error)
	Derivative func(y, t blas32.Vector) (blas32.Vector, error)
}

const crossEntropyEpsilon float32 = 0.0001

func checkLength(y, t blas32.Vector) error {
	if y.N != t.N {
		return fmt.Errorf("%w: len(y) = %d, len(t) = %d", ErrLengthMismatch, y.N, t.N)
	}
	return nil
}

func meanSquaredError(y, t blas32.Vector) (float32, error) {
	if err := checkLength(y, t); err != nil {
		return 0.0, err
	}
	if y.N == 0 {
		return 0.0, nil
	}
	sqSum := float32(0.0)
	for i := 0; i < y.N; i++ {
		diff := y.Data[i] - t.Data[i]
		sqSum += diff * diff
	}
	return sqSum / float32(y.N), nil
}

func NewMeanSquaredError() Loss {
	d := func(y, t blas32.Vector) (blas32.Vector, error) {
		if err := checkLength(y, t); err != nil {
			return blas32.Vector{}, err
		}
		grad := vector.NewZerosLike(y)
		scale := 2.0 / float32(y.N)
		for i := range grad.Data {
			grad.Data[i] = scale * (y.Data[i] - t.Data[i])
		}
		return grad, nil
	}
	return Loss{Name: "mse", Func: meanSquaredError, Derivative: d}
}

func NewRootMeanSquaredError() Loss {
	f := func(y, t blas32.Vector) (float32, error) {
		mse, err := meanSquaredError(y, t)
		return math32.Sqrt(mse), err
	}

	d := func(y, t blas32.Vector) (blas32.Vector, error) {
		mse, err := meanSquaredError(y, t)
		if err != nil {
			return blas32.Vector{}, err
		}
		grad := vector.NewZerosLike(y)
		rmse := math32.Sqrt(mse)
		// 誤差0の点では微分不可能なので勾配0とする
		if rmse == 0.0 {
			return grad, nil
		}
		scale := 1.0 / (float32(y.N) * rmse)
		for i := range grad.Data {
			grad.Data[i] = scale * (y.Data[i] - t.Data[i])
		}
		return grad, nil
	}
	return Loss{Name: "rmse", Func: f, Derivative: d}
}

func NewCrossEntropy() Loss {
	f := func(y, t blas32.Vector) (float32, error) {
		if err := checkLength(y, t); err != nil {
			return 0.0, err
		}
		loss := float32(0.0)
		for i := 0; i < y.N; i++ {
			ye := math32.Max(y.Data[i], crossEntropyEpsilon)
			loss += -t.Data[i] * math32.Log(ye)
		}
		return loss, nil
	}

	d := func(y, t blas32.Vector) (blas32.Vector, error) {
		if err := checkLength(y, t); err != nil {
			return blas32.Vector{}, err
		}
		grad := vector.NewZerosLike(y)
		for i := range grad.Data {
			ye := y.Data[i]
			if ye < crossEntropyEpsilon {
				continue
			}
			grad.Data[i] = -t.Data[i] / ye
		}
		return grad, nil
	}
	return Loss{Name: "cross_entropy", Func: f, Derivative: d}
}

func LossByName(name string) (Loss, error) {
	switch name {
	case "mse":
		return NewMeanSquaredError(), nil
	case "rmse", "":
		return NewRootMeanSquaredError(), nil
	case "cross_entropy":
		return NewCrossEntropy(), nil
	default:
		return Loss{}, fmt.Errorf("%w: 未知の損失関数 %q", ErrInvalidConfig, name)
	}
}

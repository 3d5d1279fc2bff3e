package rl

import (
	"github.com/sw965/pgcrow/model"
	"gonum.org/v1/gonum/blas/blas32"
)

// PolicyModel は状態から離散行動の選好ベクトルを返し、教師データで自身を更新する。
// Predict はパラメータを変更せず、長さ OutputSize() のベクトルを返す。
type PolicyModel interface {
	Predict(x blas32.Vector) (blas32.Vector, error)
	OutputSize() int
	Train(ds model.Dataset, c model.TrainConfig) error
}

type Persister interface {
	Save(path string) error
	Load(path string) error
}

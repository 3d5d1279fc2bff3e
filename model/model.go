// Package model は方策モデルと訓練ループの間で共有する、モデル実装に依存しない訓練の取り決めを定義する。
package model

import (
	"errors"
	"fmt"

	"github.com/sw965/pgcrow/optimizer"
	"gonum.org/v1/gonum/blas/blas32"
)

var (
	ErrLengthMismatch = errors.New("model: 長さが一致しません")
	ErrEmptyDataset   = errors.New("model: データセットが空です")
	ErrInvalidConfig  = errors.New("model: 訓練設定が不正です")
)

type Dataset struct {
	Inputs  []blas32.Vector
	Targets []blas32.Vector
}

func (d Dataset) Len() int {
	return len(d.Inputs)
}

func (d Dataset) Validate() error {
	if len(d.Inputs) != len(d.Targets) {
		return fmt.Errorf("%w: len(Inputs) = %d, len(Targets) = %d", ErrLengthMismatch, len(d.Inputs), len(d.Targets))
	}
	if len(d.Inputs) == 0 {
		return ErrEmptyDataset
	}
	return nil
}

// Batch は [start, end) の部分データセットを返す。要素は共有する。
func (d Dataset) Batch(start, end int) Dataset {
	return Dataset{
		Inputs:  d.Inputs[start:end],
		Targets: d.Targets[start:end],
	}
}

type TrainMode int

const (
	Online TrainMode = iota
	MiniBatch
)

func (m TrainMode) String() string {
	switch m {
	case Online:
		return "online"
	case MiniBatch:
		return "minibatch"
	default:
		return fmt.Sprintf("TrainMode(%d)", int(m))
	}
}

func ParseTrainMode(s string) (TrainMode, error) {
	switch s {
	case "online", "":
		return Online, nil
	case "minibatch":
		return MiniBatch, nil
	default:
		return 0, fmt.Errorf("%w: 未知の訓練モード %q", ErrInvalidConfig, s)
	}
}

type Optimizer = optimizer.Optimizer

type TrainConfig struct {
	Epochs       int
	LearningRate float32
	Mode         TrainMode
	BatchSize    int
	MinLoss      float32
	Optimizer    Optimizer
	Loss         Loss
}

func NewDefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:       1,
		LearningRate: 1e-3,
		Mode:         Online,
		BatchSize:    1,
		MinLoss:      0.0,
		Optimizer:    optimizer.NewAdam(),
		Loss:         NewRootMeanSquaredError(),
	}
}

func (c *TrainConfig) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("%w: エポック数が0以下 (%d)", ErrInvalidConfig, c.Epochs)
	}
	if c.LearningRate <= 0.0 {
		return fmt.Errorf("%w: 学習率が0以下 (%v)", ErrInvalidConfig, c.LearningRate)
	}
	if c.Mode == MiniBatch && c.BatchSize <= 0 {
		return fmt.Errorf("%w: バッチサイズが0以下 (%d)", ErrInvalidConfig, c.BatchSize)
	}
	if c.Optimizer == nil {
		return fmt.Errorf("%w: Optimizer が未設定", ErrInvalidConfig)
	}
	if c.Loss.Func == nil || c.Loss.Derivative == nil {
		return fmt.Errorf("%w: Loss が未設定", ErrInvalidConfig)
	}
	return nil
}

package rl

import (
	"fmt"
	"math/rand"

	"github.com/sw965/pgcrow/mathx/randx"
	"github.com/sw965/pgcrow/model"
)

// Shuffle は入力と教師を同じ置換で並び替える。
func Shuffle(ds model.Dataset, rng *rand.Rand) error {
	if err := randx.ShufflePairs(ds.Inputs, ds.Targets, rng); err != nil {
		return fmt.Errorf("%w: %v", ErrLengthMismatch, err)
	}
	return nil
}

// TrainModel はデータセットを並び替えてから m.Train を一度だけ呼ぶ。
// m.Train のエラーはそのまま返す。
func TrainModel(m PolicyModel, ds model.Dataset, c model.TrainConfig, rng *rand.Rand) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := Shuffle(ds, rng); err != nil {
		return err
	}
	return m.Train(ds, c)
}

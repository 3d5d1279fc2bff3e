package rl

import (
	"math"

	"github.com/sw965/pgcrow/mathx"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// 平均の丸め誤差の上限 (スコア1件あたりの ULP 数)
const rewardULPs = 4

// SignRewards は各スコアから平均を引いた値の符号 (-1, 0, 1) と平均を返す。
// 空のスコアには空の符号と平均0を返す。
// 平均との差が最大絶対値の数 ULP 以内なら、丸め誤差とみなして0とする。
func SignRewards(scores []float64) ([]float64, float64) {
	if len(scores) == 0 {
		return []float64{}, 0.0
	}
	mean := stat.Mean(scores, nil)
	scale := math.Max(math.Abs(floats.Max(scores)), math.Abs(floats.Min(scores)))
	tol := float64(rewardULPs*len(scores)) * 0x1p-52 * scale

	diffs := make([]float64, len(scores))
	for i, score := range scores {
		diff := score - mean
		if math.Abs(diff) <= tol {
			diff = 0.0
		}
		diffs[i] = diff
	}
	return mathx.Signs(diffs), mean
}

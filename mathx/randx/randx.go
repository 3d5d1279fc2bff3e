package randx

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/seehuhn/mt19937"
	"gonum.org/v1/gonum/floats"
)

var (
	ErrNoBucket       = errors.New("randx: 累積和の中に該当するインデックスが見つかりません")
	ErrInvalidWeights = errors.New("randx: 重みが不正です")
	ErrLengthMismatch = errors.New("randx: 長さが一致しません")
)

// NewMt19937 はメルセンヌ・ツイスタを乱数源とする *rand.Rand を返す。
// 同じ seed からは同じ系列が得られる。
func NewMt19937(seed int64) *rand.Rand {
	src := mt19937.New()
	src.Seed(seed)
	return rand.New(src)
}

// IntByWeight は ws を合計 1 に正規化した累積和から、p <= cumsum[i] を満たす最小の i を返す。
// 重み 0 の要素は選ばれない。
func IntByWeight(ws []float64, rng *rand.Rand) (int, error) {
	n := len(ws)
	if n == 0 {
		return 0, fmt.Errorf("%w: 空の重み", ErrInvalidWeights)
	}

	last := -1
	for i, w := range ws {
		if w < 0.0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return 0, fmt.Errorf("%w: ws[%d] = %v", ErrInvalidWeights, i, w)
		}
		if w > 0.0 {
			last = i
		}
	}
	if last == -1 {
		return 0, fmt.Errorf("%w: 全ての重みが0", ErrInvalidWeights)
	}

	sum := floats.Sum(ws)
	cumsum := floats.CumSum(make([]float64, n), ws)
	floats.Scale(1.0/sum, cumsum)
	// 丸め誤差で末尾が 1 に届かない事があるので、最後の正の重み以降を 1 に揃える
	for i := last; i < n; i++ {
		cumsum[i] = 1.0
	}

	p := rng.Float64()
	for i, c := range cumsum {
		if ws[i] > 0.0 && p <= c {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: p = %v, cumsum = %v", ErrNoBucket, p, cumsum)
}

// IntByAcceptance は一様に選んだインデックス i を確率 ps[i] で受理するまで繰り返す。
// ps は正規化されている必要はないが、正の要素が1つ以上なければ停止しない。
func IntByAcceptance(ps []float64, rng *rand.Rand) int {
	n := len(ps)
	for {
		i := rng.Intn(n)
		if rng.Float64() > 1.0-ps[i] {
			return i
		}
	}
}

// IntExcept は [0, n) から except 以外の整数を一様に選ぶ。
func IntExcept(n, except int, rng *rand.Rand) (int, error) {
	if n < 2 {
		return 0, fmt.Errorf("randx: n = %d では %d 以外の値を選べません", n, except)
	}
	for {
		if i := rng.Intn(n); i != except {
			return i, nil
		}
	}
}

// ShufflePairs は xs と ys を同じ置換で並び替える (Fisher–Yates)。
func ShufflePairs[X, Y any](xs []X, ys []Y, rng *rand.Rand) error {
	n := len(xs)
	if n != len(ys) {
		return fmt.Errorf("%w: len(xs) = %d, len(ys) = %d", ErrLengthMismatch, n, len(ys))
	}
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		xs[i], xs[j] = xs[j], xs[i]
		ys[i], ys[j] = ys[j], ys[i]
	}
	return nil
}

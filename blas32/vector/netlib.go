//go:build netlib

package vector

import (
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/netlib/blas/netlib"
)

// netlib タグ付きでビルドした場合は cgo 経由の BLAS 実装を使う。
func init() {
	blas32.Use(netlib.Implementation{})
}

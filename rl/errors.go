package rl

import (
	"errors"

	"github.com/sw965/pgcrow/model"
)

var (
	ErrNoEpisode          = errors.New("rl: 開始されたエピソードがありません")
	ErrEpisodeIndex       = errors.New("rl: エピソードのインデックスが範囲外です")
	ErrSealedEpisode      = errors.New("rl: 終了したエピソードのスコアは変更できません")
	ErrOutputShape        = errors.New("rl: 方策モデルの出力が離散行動の数と一致しません")
	ErrEmptyPreferences   = errors.New("rl: 選好ベクトルが空です")
	ErrInvalidPreferences = errors.New("rl: 選好ベクトルが不正です")
	ErrActionIndex        = errors.New("rl: 行動インデックスが範囲外です")
	ErrActionCount        = errors.New("rl: 行動の数が足りません")
	ErrInvalidConfig      = errors.New("rl: 設定が不正です")
	ErrNotPersistable     = errors.New("rl: 方策モデルが保存と読み込みに対応していません")

	ErrEmptyDataset   = model.ErrEmptyDataset
	ErrLengthMismatch = model.ErrLengthMismatch
)

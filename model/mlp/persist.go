package mlp

import (
	"encoding/gob"
	"fmt"
	"os"
)

func (m *Model) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("mlp: モデルの保存に失敗 %s: %w", path, err)
	}
	return f.Close()
}

// Load は path に保存されたモデルで m を置き換える。
func (m *Model) Load(path string) error {
	loaded, err := LoadModel(path)
	if err != nil {
		return err
	}
	*m = loaded
	return nil
}

func LoadModel(path string) (Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return Model{}, err
	}
	defer f.Close()

	var m Model
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return Model{}, fmt.Errorf("mlp: モデルの読み込みに失敗 %s: %w", path, err)
	}
	if err := m.rebuild(); err != nil {
		return Model{}, err
	}
	return m, nil
}

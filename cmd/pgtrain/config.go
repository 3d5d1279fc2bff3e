package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sw965/pgcrow/env/corridor"
	"github.com/sw965/pgcrow/model"
	"github.com/sw965/pgcrow/optimizer"
	"github.com/sw965/pgcrow/rl"
)

type TrainConfig struct {
	Epochs       int     `json:"epochs"`
	LearningRate float32 `json:"learning_rate"`
	Mode         string  `json:"mode"`
	BatchSize    int     `json:"batch_size"`
	MinLoss      float32 `json:"min_loss"`
	Optimizer    string  `json:"optimizer"`
	Loss         string  `json:"loss"`
}

type Config struct {
	Seed        int64           `json:"seed"`
	Iterations  int             `json:"iterations"`
	Episodes    int             `json:"episodes"`
	Window      int             `json:"window"`
	Policy      string          `json:"policy"`
	Sampling    string          `json:"sampling"`
	Smoothing   float32         `json:"smoothing"`
	SealHistory bool            `json:"seal_history"`
	Hidden      int             `json:"hidden"`
	Corridor    corridor.Config `json:"corridor"`
	Train       TrainConfig     `json:"train"`
	DB          string          `json:"db"`
	Out         string          `json:"out"`
}

func defaultConfig() Config {
	return Config{
		Seed:       0,
		Iterations: 50,
		Episodes:   16,
		Window:     16,
		Policy:     "smoothing",
		Sampling:   "default",
		Smoothing:  rl.DefaultSmoothing,
		Hidden:     16,
		Corridor:   corridor.NewDefaultConfig(),
		Train: TrainConfig{
			Epochs:       1,
			LearningRate: 0.01,
			Mode:         "online",
			BatchSize:    1,
			MinLoss:      0.0,
			Optimizer:    "adam",
			Loss:         "cross_entropy",
		},
	}
}

// loadConfig は既定値の上に path の JSON を重ねる。
func loadConfig(path string) (Config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("iterations が1未満: %d", c.Iterations)
	}
	if c.Episodes < 1 {
		return fmt.Errorf("episodes が1未満: %d", c.Episodes)
	}
	if c.Hidden < 1 {
		return fmt.Errorf("hidden が1未満: %d", c.Hidden)
	}
	return c.Corridor.Validate()
}

func (c TrainConfig) build() (model.TrainConfig, error) {
	mode, err := model.ParseTrainMode(c.Mode)
	if err != nil {
		return model.TrainConfig{}, err
	}
	opt, err := optimizer.ByName(c.Optimizer)
	if err != nil {
		return model.TrainConfig{}, err
	}
	loss, err := model.LossByName(c.Loss)
	if err != nil {
		return model.TrainConfig{}, err
	}
	tc := model.TrainConfig{
		Epochs:       c.Epochs,
		LearningRate: c.LearningRate,
		Mode:         mode,
		BatchSize:    c.BatchSize,
		MinLoss:      c.MinLoss,
		Optimizer:    opt,
		Loss:         loss,
	}
	return tc, tc.Validate()
}

func (c Config) agentConfig() (rl.Config, error) {
	policy, err := rl.ParseTargetPolicy(c.Policy, c.Corridor.ActionCount())
	if err != nil {
		return rl.Config{}, err
	}
	if p, ok := policy.(rl.IndexSmoothingPolicy); ok {
		p.Smoothing = c.Smoothing
		policy = p
	}
	sampling, err := rl.ParseSampling(c.Sampling)
	if err != nil {
		return rl.Config{}, err
	}
	return rl.Config{
		Policy:      policy,
		Sampling:    sampling,
		SealHistory: c.SealHistory,
	}, nil
}

package corridor

import (
	"errors"
	"fmt"

	"github.com/sw965/pgcrow/blas32/vector"
	"github.com/sw965/pgcrow/mathx"
	"gonum.org/v1/gonum/blas/blas32"
)

var (
	ErrInvalidConfig = errors.New("corridor: 設定が不正です")
	ErrInvalidAction = errors.New("corridor: 不正な行動です")
	ErrEnded         = errors.New("corridor: エピソードは終了しています")
)

type Action int

const (
	Left Action = iota
	Right
	Stay
)

func (a Action) String() string {
	switch a {
	case Left:
		return "left"
	case Right:
		return "right"
	case Stay:
		return "stay"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Config describes the corridor.
//
// Configは通路の長さ、報酬、打ち切りまでのステップ数を表します。
type Config struct {
	Cells       int
	MaxSteps    int
	GoalReward  float64
	StepPenalty float64
	AllowStay   bool
}

func NewDefaultConfig() Config {
	return Config{
		Cells:       6,
		MaxSteps:    20,
		GoalReward:  1.0,
		StepPenalty: 0.01,
		AllowStay:   false,
	}
}

func (c Config) Validate() error {
	if c.Cells < 2 {
		return fmt.Errorf("%w: Cells = %d", ErrInvalidConfig, c.Cells)
	}
	if c.MaxSteps < 1 {
		return fmt.Errorf("%w: MaxSteps = %d", ErrInvalidConfig, c.MaxSteps)
	}
	if c.StepPenalty < 0.0 {
		return fmt.Errorf("%w: StepPenalty = %v", ErrInvalidConfig, c.StepPenalty)
	}
	return nil
}

// ActionCount returns the number of discrete actions.
//
// ActionCountは離散行動の数を返します。方策モデルの出力サイズと一致させてください。
func (c Config) ActionCount() int {
	if c.AllowStay {
		return 3
	}
	return 2
}

// Env is a one-dimensional corridor. The agent starts at cell 0 and the episode ends at the last cell or after MaxSteps.
//
// Envは一次元の通路です。エージェントはセル0から始まり、最後のセルに着くかMaxStepsに達するとエピソードが終わります。
type Env struct {
	config   Config
	position int
	steps    int
	score    float64
	reached  bool
}

func New(c Config) (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Env{config: c}, nil
}

func (e *Env) Config() Config {
	return e.config
}

func (e *Env) Reset() {
	e.position = 0
	e.steps = 0
	e.score = 0.0
	e.reached = false
}

func (e *Env) Position() int {
	return e.position
}

func (e *Env) Steps() int {
	return e.steps
}

// Score は累積報酬。
func (e *Env) Score() float64 {
	return e.score
}

func (e *Env) Reached() bool {
	return e.reached
}

func (e *Env) IsEnd() bool {
	return e.reached || e.steps >= e.config.MaxSteps
}

// Observation は現在位置の one-hot ベクトル。
func (e *Env) Observation() blas32.Vector {
	return vector.NewOneHot(e.config.Cells, e.position, 1.0)
}

// Step は行動を1つ適用し、そのステップの報酬と終了したかどうかを返す。
func (e *Env) Step(idx int) (float64, bool, error) {
	if e.IsEnd() {
		return 0.0, true, ErrEnded
	}
	if idx < 0 || idx >= e.config.ActionCount() {
		return 0.0, false, fmt.Errorf("%w: %d (行動数 %d)", ErrInvalidAction, idx, e.config.ActionCount())
	}

	switch Action(idx) {
	case Left:
		e.position = mathx.Clamp(e.position-1, 0, e.config.Cells-1)
	case Right:
		e.position = mathx.Clamp(e.position+1, 0, e.config.Cells-1)
	}
	e.steps += 1

	reward := -e.config.StepPenalty
	if e.position == e.config.Cells-1 {
		e.reached = true
		reward += e.config.GoalReward
	}
	e.score += reward
	return reward, e.IsEnd(), nil
}

package rl

import (
	"fmt"
	"math/rand"

	"github.com/sw965/pgcrow/model"
)

type Config struct {
	// nil の場合は ProbabilityVectorPolicy。
	Policy TargetPolicy
	// DefaultSampling の場合は Policy に合わせて決める。
	Sampling Sampling
	// true なら現在のエピソード以外のスコア変更を拒否する。
	SealHistory bool
	// Train が教師データを作り終えた後、モデルの訓練前に呼ばれる。
	TrainHook func(TrainReport)
}

type TrainReport struct {
	WindowStart  int
	WindowEnd    int
	Episodes     int
	Examples     int
	AverageScore float64
	Signs        []float64
}

// Agent はエピソードの記録、行動選択、訓練をまとめる。
// 並行に呼び出してはならない。
type Agent struct {
	model        PolicyModel
	rng          *rand.Rand
	ledger       Ledger
	policy       TargetPolicy
	sampler      Sampler
	sealHistory  bool
	trainHook    func(TrainReport)
	averageScore float64
}

func NewAgent(m PolicyModel, rng *rand.Rand, c Config) (*Agent, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: 方策モデルが nil", ErrInvalidConfig)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: 乱数生成器が nil", ErrInvalidConfig)
	}

	n := m.OutputSize()
	if n < 1 {
		return nil, fmt.Errorf("%w: 出力サイズ %d", ErrOutputShape, n)
	}

	policy := c.Policy
	if policy == nil {
		policy = ProbabilityVectorPolicy{}
	}
	if p, ok := policy.(IndexSmoothingPolicy); ok {
		if p.ActionCount == 0 {
			p.ActionCount = n
		}
		if p.ActionCount != n {
			return nil, fmt.Errorf("%w: 行動数 %d, 出力サイズ %d", ErrOutputShape, p.ActionCount, n)
		}
		if err := p.validate(); err != nil {
			return nil, err
		}
		policy = p
	}

	sampling := c.Sampling
	if sampling == DefaultSampling {
		sampling = policy.defaultSampling()
	}
	if sampling != CumulativeSampling && sampling != RejectionSampling {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, sampling)
	}

	return &Agent{
		model:       m,
		rng:         rng,
		policy:      policy,
		sampler:     Sampler{Sampling: sampling},
		sealHistory: c.SealHistory,
		trainHook:   c.TrainHook,
	}, nil
}

func (a *Agent) Policy() TargetPolicy {
	return a.policy
}

func (a *Agent) Sampling() Sampling {
	return a.sampler.Sampling
}

func (a *Agent) BeginEpisode() {
	a.ledger.Begin()
}

func (a *Agent) Record(s State, action Action) error {
	return a.ledger.Record(s, action)
}

func (a *Agent) SetOutcome(score float64) error {
	if a.ledger.Len() == 0 {
		return ErrNoEpisode
	}
	return a.ledger.SetScore(a.ledger.Len()-1, score)
}

func (a *Agent) SetOutcomeAt(i int, score float64) error {
	if a.sealHistory && i != a.ledger.Len()-1 {
		if _, err := a.ledger.At(i); err != nil {
			return err
		}
		return fmt.Errorf("%w: %d (エピソード数 %d)", ErrSealedEpisode, i, a.ledger.Len())
	}
	return a.ledger.SetScore(i, score)
}

func (a *Agent) Outcome() (float64, error) {
	e, err := a.ledger.Current()
	if err != nil {
		return 0.0, err
	}
	return e.Score(), nil
}

func (a *Agent) OutcomeAt(i int) (float64, error) {
	e, err := a.ledger.At(i)
	if err != nil {
		return 0.0, err
	}
	return e.Score(), nil
}

// Action は状態を方策モデルに入力し、その出力から行動を選ぶ。エピソードには記録しない。
func (a *Agent) Action(s State, mode SelectMode) (Action, error) {
	prefs, err := a.model.Predict(s.input)
	if err != nil {
		return Action{}, err
	}
	if n := a.model.OutputSize(); prefs.N != n {
		return Action{}, fmt.Errorf("%w: 出力の長さ %d, 出力サイズ %d", ErrOutputShape, prefs.N, n)
	}
	return a.sampler.Select(prefs, mode, a.rng)
}

// Act は Action で選んだ行動を現在のエピソードに記録して返す。
func (a *Agent) Act(s State, mode SelectMode) (Action, error) {
	if a.ledger.Len() == 0 {
		return Action{}, ErrNoEpisode
	}
	action, err := a.Action(s, mode)
	if err != nil {
		return Action{}, err
	}
	if err := a.ledger.Record(s, action); err != nil {
		return Action{}, err
	}
	return action, nil
}

// Rewards は全エピソードの符号報酬を返し、平均スコアを更新する。
func (a *Agent) Rewards() []float64 {
	signs, _ := a.RewardsBetween(0, a.ledger.Len())
	return signs
}

func (a *Agent) RewardsBetween(start, end int) ([]float64, error) {
	scores, err := a.ledger.Scores(start, end)
	if err != nil {
		return nil, err
	}
	signs, mean := SignRewards(scores)
	a.averageScore = mean
	return signs, nil
}

// AverageScore は最後に計算した符号報酬の窓の平均スコア。
func (a *Agent) AverageScore() float64 {
	return a.averageScore
}

// Train は直近 window エピソードから教師データを作り、方策モデルを一度訓練する。
// window が0以下かエピソード数より大きい場合は全エピソードを使う。
// 教師データが空の場合はモデルを呼ばずに Examples が0の結果を返す。
func (a *Agent) Train(window int, c model.TrainConfig) (TrainReport, error) {
	start, end := a.ledger.Window(window)
	report := TrainReport{WindowStart: start, WindowEnd: end, Episodes: end - start}

	signs, err := a.RewardsBetween(start, end)
	if err != nil {
		return report, err
	}
	report.Signs = signs
	report.AverageScore = a.averageScore

	episodes, err := a.ledger.Slice(start, end)
	if err != nil {
		return report, err
	}
	ds, err := Synthesize(episodes, signs, a.policy, a.rng)
	if err != nil {
		return report, err
	}
	report.Examples = ds.Len()

	if a.trainHook != nil {
		a.trainHook(report)
	}
	if ds.Len() == 0 {
		return report, nil
	}
	if err := TrainModel(a.model, ds, c, a.rng); err != nil {
		return report, err
	}
	return report, nil
}

func (a *Agent) Reset() {
	a.ledger.Reset()
	a.averageScore = 0.0
}

func (a *Agent) Episodes() []*Episode {
	episodes, _ := a.ledger.Slice(0, a.ledger.Len())
	return episodes
}

func (a *Agent) Episode(i int) (*Episode, error) {
	return a.ledger.At(i)
}

func (a *Agent) Len() int {
	return a.ledger.Len()
}

func (a *Agent) Model() PolicyModel {
	return a.model
}

func (a *Agent) persister() (Persister, error) {
	p, ok := a.model.(Persister)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotPersistable, a.model)
	}
	return p, nil
}

func (a *Agent) SaveModel(path string) error {
	p, err := a.persister()
	if err != nil {
		return err
	}
	return p.Save(path)
}

func (a *Agent) LoadModel(path string) error {
	p, err := a.persister()
	if err != nil {
		return err
	}
	if err := p.Load(path); err != nil {
		return err
	}
	n := a.model.OutputSize()
	if n < 1 {
		return fmt.Errorf("%w: 読み込んだモデルの出力サイズ %d", ErrOutputShape, n)
	}
	if p, ok := a.policy.(IndexSmoothingPolicy); ok && p.ActionCount != n {
		return fmt.Errorf("%w: 行動数 %d, 読み込んだモデルの出力サイズ %d", ErrOutputShape, p.ActionCount, n)
	}
	return nil
}

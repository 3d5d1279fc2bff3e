package rl_test

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/sw965/pgcrow/blas32/vector"
	"github.com/sw965/pgcrow/mathx/randx"
	"github.com/sw965/pgcrow/model"
	"github.com/sw965/pgcrow/model/mlp"
	"github.com/sw965/pgcrow/optimizer"
	"github.com/sw965/pgcrow/rl"
	"gonum.org/v1/gonum/blas/blas32"
)

type fakeModel struct {
	out        []float32
	outputSize int
	predictErr error
	trainErr   error
	trained    []model.Dataset
}

func (m *fakeModel) Predict(x blas32.Vector) (blas32.Vector, error) {
	if m.predictErr != nil {
		return blas32.Vector{}, m.predictErr
	}
	return vector.New(slices.Clone(m.out)), nil
}

func (m *fakeModel) OutputSize() int {
	return m.outputSize
}

func (m *fakeModel) Train(ds model.Dataset, c model.TrainConfig) error {
	m.trained = append(m.trained, ds)
	return m.trainErr
}

func newFakeAgent(t *testing.T, c rl.Config) (*rl.Agent, *fakeModel) {
	t.Helper()
	m := &fakeModel{out: []float32{0.2, 0.8}, outputSize: 2}
	agent, err := rl.NewAgent(m, randx.NewMt19937(0), c)
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	return agent, m
}

// 各エピソードで steps 回行動し、scores[i] をスコアとする。
func playEpisodes(t *testing.T, agent *rl.Agent, steps int, scores ...float64) {
	t.Helper()
	for _, score := range scores {
		agent.BeginEpisode()
		for i := 0; i < steps; i++ {
			if _, err := agent.Act(rl.NewStateFromSlice([]float32{float32(i)}), rl.Stochastic); err != nil {
				t.Fatalf("Act: %v", err)
			}
		}
		if err := agent.SetOutcome(score); err != nil {
			t.Fatalf("SetOutcome: %v", err)
		}
	}
}

func TestNewAgent(t *testing.T) {
	rng := randx.NewMt19937(0)

	if _, err := rl.NewAgent(nil, rng, rl.Config{}); !errors.Is(err, rl.ErrInvalidConfig) {
		t.Errorf("nil モデルで ErrInvalidConfig を期待したが %v", err)
	}
	if _, err := rl.NewAgent(&fakeModel{outputSize: 2}, nil, rl.Config{}); !errors.Is(err, rl.ErrInvalidConfig) {
		t.Errorf("nil 乱数で ErrInvalidConfig を期待したが %v", err)
	}
	if _, err := rl.NewAgent(&fakeModel{outputSize: 0}, rng, rl.Config{}); !errors.Is(err, rl.ErrOutputShape) {
		t.Errorf("出力サイズ0で ErrOutputShape を期待したが %v", err)
	}
	c := rl.Config{Policy: rl.NewIndexSmoothingPolicy(3)}
	if _, err := rl.NewAgent(&fakeModel{outputSize: 2}, rng, c); !errors.Is(err, rl.ErrOutputShape) {
		t.Errorf("行動数の不一致で ErrOutputShape を期待したが %v", err)
	}
	c = rl.Config{Policy: rl.IndexSmoothingPolicy{ActionCount: 2, Smoothing: 1.0}}
	if _, err := rl.NewAgent(&fakeModel{outputSize: 2}, rng, c); !errors.Is(err, rl.ErrInvalidConfig) {
		t.Errorf("Smoothing = 1 で ErrInvalidConfig を期待したが %v", err)
	}

	agent, err := rl.NewAgent(&fakeModel{outputSize: 4}, rng, rl.Config{Policy: rl.IndexSmoothingPolicy{}})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	if p := agent.Policy().(rl.IndexSmoothingPolicy); p.ActionCount != 4 {
		t.Errorf("行動数が出力サイズで補われていない: %d", p.ActionCount)
	}
	if agent.Sampling() != rl.CumulativeSampling {
		t.Errorf("テスト失敗: %v", agent.Sampling())
	}

	agent, err = rl.NewAgent(&fakeModel{outputSize: 4}, rng, rl.Config{})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	if agent.Policy().Name() != "probability" || agent.Sampling() != rl.RejectionSampling {
		t.Errorf("テスト失敗: %s, %v", agent.Policy().Name(), agent.Sampling())
	}
}

func TestAgentNoEpisode(t *testing.T) {
	agent, _ := newFakeAgent(t, rl.Config{})
	s := rl.NewStateFromSlice([]float32{0.0})

	if _, err := agent.Act(s, rl.Greedy); !errors.Is(err, rl.ErrNoEpisode) {
		t.Errorf("ErrNoEpisode を期待したが %v", err)
	}
	a, err := agent.Action(s, rl.Greedy)
	if err != nil {
		t.Fatalf("Action: %v", err)
	}
	if err := agent.Record(s, a); !errors.Is(err, rl.ErrNoEpisode) {
		t.Errorf("ErrNoEpisode を期待したが %v", err)
	}
	if err := agent.SetOutcome(1.0); !errors.Is(err, rl.ErrNoEpisode) {
		t.Errorf("ErrNoEpisode を期待したが %v", err)
	}
	if _, err := agent.Outcome(); !errors.Is(err, rl.ErrNoEpisode) {
		t.Errorf("ErrNoEpisode を期待したが %v", err)
	}
}

func TestAgentAction(t *testing.T) {
	agent, m := newFakeAgent(t, rl.Config{})
	s := rl.NewStateFromSlice([]float32{0.0})

	a, err := agent.Action(s, rl.Greedy)
	if err != nil {
		t.Fatalf("Action: %v", err)
	}
	if a.Index() != 1 || a.Sampled() {
		t.Errorf("テスト失敗: %d", a.Index())
	}

	m.out = []float32{0.2, 0.3, 0.5}
	if _, err := agent.Action(s, rl.Greedy); !errors.Is(err, rl.ErrOutputShape) {
		t.Errorf("ErrOutputShape を期待したが %v", err)
	}

	fault := errors.New("順伝播の失敗")
	m.predictErr = fault
	if _, err := agent.Action(s, rl.Greedy); err != fault {
		t.Errorf("モデルのエラーがそのまま返されていない: %v", err)
	}
}

func TestAgentOutcome(t *testing.T) {
	agent, _ := newFakeAgent(t, rl.Config{})
	playEpisodes(t, agent, 1, 1.0, 2.0)

	if score, err := agent.Outcome(); err != nil || score != 2.0 {
		t.Errorf("Outcome = %v, %v", score, err)
	}
	if err := agent.SetOutcomeAt(0, 5.0); err != nil {
		t.Fatalf("既定では過去のスコアを変更できるはず: %v", err)
	}
	if score, err := agent.OutcomeAt(0); err != nil || score != 5.0 {
		t.Errorf("OutcomeAt = %v, %v", score, err)
	}
	if _, err := agent.OutcomeAt(2); !errors.Is(err, rl.ErrEpisodeIndex) {
		t.Errorf("ErrEpisodeIndex を期待したが %v", err)
	}
}

func TestAgentSealHistory(t *testing.T) {
	agent, _ := newFakeAgent(t, rl.Config{SealHistory: true})
	playEpisodes(t, agent, 1, 1.0, 2.0)

	if err := agent.SetOutcomeAt(0, 5.0); !errors.Is(err, rl.ErrSealedEpisode) {
		t.Errorf("ErrSealedEpisode を期待したが %v", err)
	}
	if score, _ := agent.OutcomeAt(0); score != 1.0 {
		t.Errorf("終了したエピソードのスコアが変更された: %v", score)
	}
	if err := agent.SetOutcomeAt(1, 3.0); err != nil {
		t.Errorf("現在のエピソードは変更できるはず: %v", err)
	}
	if err := agent.SetOutcomeAt(7, 3.0); !errors.Is(err, rl.ErrEpisodeIndex) {
		t.Errorf("ErrEpisodeIndex を期待したが %v", err)
	}
}

func TestAgentRewards(t *testing.T) {
	agent, _ := newFakeAgent(t, rl.Config{})
	playEpisodes(t, agent, 1, 1.0, 2.0, 3.0)

	signs := agent.Rewards()
	if !slices.Equal(signs, []float64{-1.0, 0.0, 1.0}) {
		t.Errorf("Rewards = %v", signs)
	}
	if agent.AverageScore() != 2.0 {
		t.Errorf("AverageScore = %v", agent.AverageScore())
	}

	signs, err := agent.RewardsBetween(1, 3)
	if err != nil {
		t.Fatalf("RewardsBetween: %v", err)
	}
	if !slices.Equal(signs, []float64{-1.0, 1.0}) || agent.AverageScore() != 2.5 {
		t.Errorf("RewardsBetween = %v, average = %v", signs, agent.AverageScore())
	}
	if _, err := agent.RewardsBetween(2, 4); !errors.Is(err, rl.ErrEpisodeIndex) {
		t.Errorf("ErrEpisodeIndex を期待したが %v", err)
	}
}

func TestAgentTrainWindow(t *testing.T) {
	var reports []rl.TrainReport
	agent, m := newFakeAgent(t, rl.Config{TrainHook: func(r rl.TrainReport) {
		reports = append(reports, r)
	}})
	playEpisodes(t, agent, 2, 0.0, 1.0, 2.0)

	report, err := agent.Train(50, model.NewDefaultTrainConfig())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if report.WindowStart != 0 || report.WindowEnd != 3 || report.Episodes != 3 || report.Examples != 6 {
		t.Errorf("窓が全エピソードに切り詰められていない: %+v", report)
	}
	if len(m.trained) != 1 || m.trained[0].Len() != 6 {
		t.Fatalf("モデルの訓練が6件で一度だけ呼ばれていない")
	}
	if len(reports) != 1 || reports[0].Examples != 6 {
		t.Errorf("TrainHook が呼ばれていない: %v", reports)
	}

	report, err = agent.Train(2, model.NewDefaultTrainConfig())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if report.WindowStart != 1 || report.Examples != 4 || report.AverageScore != 1.5 {
		t.Errorf("テスト失敗: %+v", report)
	}
	if !slices.Equal(report.Signs, []float64{-1.0, 1.0}) {
		t.Errorf("Signs = %v", report.Signs)
	}
}

func TestAgentTrainDegenerate(t *testing.T) {
	agent, m := newFakeAgent(t, rl.Config{})

	report, err := agent.Train(10, model.NewDefaultTrainConfig())
	if err != nil || report.Examples != 0 {
		t.Errorf("空の台帳で失敗した: %+v, %v", report, err)
	}

	playEpisodes(t, agent, 0, 1.0, 1.0)
	report, err = agent.Train(0, model.NewDefaultTrainConfig())
	if err != nil || report.Examples != 0 || report.Episodes != 2 {
		t.Errorf("ステップの無いエピソードで失敗した: %+v, %v", report, err)
	}
	if len(m.trained) != 0 {
		t.Errorf("教師データが空なのにモデルが訓練された")
	}

	agent.Reset()
	playEpisodes(t, agent, 3, 4.0, 4.0, 4.0)
	report, err = agent.Train(0, model.NewDefaultTrainConfig())
	if err != nil {
		t.Fatalf("全て同じスコアで失敗した: %v", err)
	}
	if !slices.Equal(report.Signs, []float64{0.0, 0.0, 0.0}) || report.Examples != 9 {
		t.Errorf("テスト失敗: %+v", report)
	}
}

func TestAgentTrainError(t *testing.T) {
	agent, m := newFakeAgent(t, rl.Config{})
	playEpisodes(t, agent, 1, 0.0, 1.0)

	fault := errors.New("訓練の失敗")
	m.trainErr = fault
	if _, err := agent.Train(0, model.NewDefaultTrainConfig()); err != fault {
		t.Errorf("モデルのエラーがそのまま返されていない: %v", err)
	}

	c := model.NewDefaultTrainConfig()
	c.Epochs = 0
	if _, err := agent.Train(0, c); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("ErrInvalidConfig を期待したが %v", err)
	}
}

func TestAgentReset(t *testing.T) {
	agent, _ := newFakeAgent(t, rl.Config{})
	playEpisodes(t, agent, 2, 1.0, 3.0)
	agent.Rewards()

	episodes := agent.Episodes()
	if len(episodes) != 2 || agent.Len() != 2 {
		t.Fatalf("テスト失敗: %d", len(episodes))
	}
	agent.Reset()
	if agent.Len() != 0 || agent.AverageScore() != 0.0 {
		t.Errorf("Reset 後に状態が残っている")
	}
	if episodes[1].Len() != 2 {
		t.Errorf("Reset 前に取得したエピソードが変更された")
	}
	if _, err := agent.Episode(0); !errors.Is(err, rl.ErrEpisodeIndex) {
		t.Errorf("ErrEpisodeIndex を期待したが %v", err)
	}
}

func TestAgentNotPersistable(t *testing.T) {
	agent, _ := newFakeAgent(t, rl.Config{})
	path := filepath.Join(t.TempDir(), "model.gob")
	if err := agent.SaveModel(path); !errors.Is(err, rl.ErrNotPersistable) {
		t.Errorf("ErrNotPersistable を期待したが %v", err)
	}
	if err := agent.LoadModel(path); !errors.Is(err, rl.ErrNotPersistable) {
		t.Errorf("ErrNotPersistable を期待したが %v", err)
	}
}

func newBanditModel(seed int64) *mlp.Model {
	rng := randx.NewMt19937(seed)
	m := &mlp.Model{}
	m.AppendAffine(1, 8, rng)
	m.AppendLeakyReLU(0.1)
	m.AppendAffine(8, 2, rng)
	m.AppendSoftmax()
	return m
}

// 行動1だけが報酬を得る1ステップのバンディットで、方策が行動1に寄ることを確かめる。
func TestAgentLearnsBandit(t *testing.T) {
	m := newBanditModel(1)
	agent, err := rl.NewAgent(m, randx.NewMt19937(2), rl.Config{Policy: rl.IndexSmoothingPolicy{}})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	s := rl.NewStateFromSlice([]float32{1.0})

	c := model.NewDefaultTrainConfig()
	c.LearningRate = 0.01
	c.Loss = model.NewCrossEntropy()
	c.Optimizer = optimizer.NewAdam()

	for iter := 0; iter < 30; iter++ {
		for e := 0; e < 20; e++ {
			agent.BeginEpisode()
			a, err := agent.Act(s, rl.Stochastic)
			if err != nil {
				t.Fatalf("Act: %v", err)
			}
			score := 0.0
			if a.Index() == 1 {
				score = 1.0
			}
			if err := agent.SetOutcome(score); err != nil {
				t.Fatalf("SetOutcome: %v", err)
			}
		}
		if _, err := agent.Train(20, c); err != nil {
			t.Fatalf("Train: %v", err)
		}
	}

	a, err := agent.Action(s, rl.Greedy)
	if err != nil {
		t.Fatalf("Action: %v", err)
	}
	if a.Index() != 1 || a.Probabilities().Data[1] < 0.6 {
		t.Errorf("行動1を学習していない: %v", a.Probabilities().Data)
	}

	path := filepath.Join(t.TempDir(), "bandit.gob")
	if err := agent.SaveModel(path); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	loaded := newBanditModel(99)
	other, err := rl.NewAgent(loaded, randx.NewMt19937(0), rl.Config{})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	if err := other.LoadModel(path); err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	b, err := other.Action(s, rl.Greedy)
	if err != nil {
		t.Fatalf("Action: %v", err)
	}
	if !vector.Equal(a.Probabilities(), b.Probabilities()) {
		t.Errorf("読み込んだモデルの出力が一致しない: %v != %v", a.Probabilities().Data, b.Probabilities().Data)
	}
}

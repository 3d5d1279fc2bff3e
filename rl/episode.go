package rl

import (
	"fmt"
	"slices"
)

type Step struct {
	State  State
	Action Action
}

// Episode は (状態, 行動) の列と1つのスコアを持つ。スコアは設定されるまで0。
type Episode struct {
	steps []Step
	score float64
}

func (e *Episode) Len() int {
	return len(e.steps)
}

func (e *Episode) Steps() []Step {
	return slices.Clone(e.steps)
}

func (e *Episode) Step(i int) Step {
	return e.steps[i]
}

func (e *Episode) Score() float64 {
	return e.score
}

func (e *Episode) append(s State, a Action) {
	e.steps = append(e.steps, Step{State: s, Action: a})
}

// Ledger はエピソードを時系列順に保持する。追記できるのは最後のエピソードだけ。
type Ledger struct {
	episodes []*Episode
}

func (l *Ledger) Begin() *Episode {
	e := &Episode{}
	l.episodes = append(l.episodes, e)
	return e
}

func (l *Ledger) Len() int {
	return len(l.episodes)
}

func (l *Ledger) Current() (*Episode, error) {
	n := len(l.episodes)
	if n == 0 {
		return nil, ErrNoEpisode
	}
	return l.episodes[n-1], nil
}

func (l *Ledger) At(i int) (*Episode, error) {
	if i < 0 || i >= len(l.episodes) {
		return nil, fmt.Errorf("%w: %d (エピソード数 %d)", ErrEpisodeIndex, i, len(l.episodes))
	}
	return l.episodes[i], nil
}

func (l *Ledger) Record(s State, a Action) error {
	e, err := l.Current()
	if err != nil {
		return err
	}
	e.append(s, a)
	return nil
}

func (l *Ledger) SetScore(i int, score float64) error {
	e, err := l.At(i)
	if err != nil {
		return err
	}
	e.score = score
	return nil
}

// Window は直近 n エピソードの範囲 [start, end) を返す。
// n が0以下かエピソード数より大きい場合は全体を返す。
func (l *Ledger) Window(n int) (int, int) {
	end := len(l.episodes)
	if n <= 0 || n > end {
		return 0, end
	}
	return end - n, end
}

func (l *Ledger) checkRange(start, end int) error {
	if start < 0 || end > len(l.episodes) || start > end {
		return fmt.Errorf("%w: [%d, %d) (エピソード数 %d)", ErrEpisodeIndex, start, end, len(l.episodes))
	}
	return nil
}

func (l *Ledger) Slice(start, end int) ([]*Episode, error) {
	if err := l.checkRange(start, end); err != nil {
		return nil, err
	}
	return slices.Clone(l.episodes[start:end]), nil
}

func (l *Ledger) Scores(start, end int) ([]float64, error) {
	if err := l.checkRange(start, end); err != nil {
		return nil, err
	}
	scores := make([]float64, 0, end-start)
	for _, e := range l.episodes[start:end] {
		scores = append(scores, e.score)
	}
	return scores, nil
}

func (l *Ledger) Reset() {
	l.episodes = nil
}

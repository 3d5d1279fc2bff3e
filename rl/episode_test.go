package rl_test

import (
	"errors"
	"testing"

	"github.com/sw965/pgcrow/rl"
)

func TestLedgerRecord(t *testing.T) {
	l := rl.Ledger{}
	a := mustAction(t, []float32{0.5, 0.5}, 1)
	s := rl.NewStateFromSlice([]float32{1.0})

	if err := l.Record(s, a); !errors.Is(err, rl.ErrNoEpisode) {
		t.Fatalf("ErrNoEpisode を期待したが %v", err)
	}

	first := l.Begin()
	if err := l.Record(s, a); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.SetScore(0, 3.0); err != nil {
		t.Fatalf("SetScore: %v", err)
	}

	l.Begin()
	for i := 0; i < 4; i++ {
		if err := l.Record(s, a); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := l.SetScore(1, -1.0); err != nil {
		t.Fatalf("SetScore: %v", err)
	}

	if first.Len() != 1 || first.Score() != 3.0 {
		t.Errorf("前のエピソードが変更された: len = %d, score = %v", first.Len(), first.Score())
	}
	cur, err := l.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.Len() != 4 || cur.Score() != -1.0 {
		t.Errorf("テスト失敗: len = %d, score = %v", cur.Len(), cur.Score())
	}
	if cur.Step(0).Action.Index() != 1 {
		t.Errorf("テスト失敗: %d", cur.Step(0).Action.Index())
	}
}

func TestEpisodeStepsCopy(t *testing.T) {
	l := rl.Ledger{}
	e := l.Begin()
	if err := l.Record(rl.NewStateFromSlice([]float32{1.0}), mustAction(t, []float32{1.0}, 0)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	steps := e.Steps()
	steps[0] = rl.Step{}
	if e.Step(0).State.Len() != 1 {
		t.Errorf("Steps の戻り値からエピソードが変更された")
	}
}

func TestStateImmutable(t *testing.T) {
	xs := []float32{1.0, 2.0}
	s := rl.NewStateFromSlice(xs)
	xs[0] = 5.0
	in := s.Input()
	in.Data[1] = 5.0
	got := s.Input()
	if got.Data[0] != 1.0 || got.Data[1] != 2.0 {
		t.Errorf("State が外部から変更された: %v", got.Data)
	}
}

func TestLedgerWindow(t *testing.T) {
	l := rl.Ledger{}
	for i := 0; i < 3; i++ {
		l.Begin()
	}

	tests := []struct {
		n     int
		start int
		end   int
	}{
		{50, 0, 3},
		{3, 0, 3},
		{2, 1, 3},
		{0, 0, 3},
		{-1, 0, 3},
	}
	for _, test := range tests {
		start, end := l.Window(test.n)
		if start != test.start || end != test.end {
			t.Errorf("Window(%d) = [%d, %d), want [%d, %d)", test.n, start, end, test.start, test.end)
		}
	}
}

func TestLedgerRange(t *testing.T) {
	l := rl.Ledger{}
	l.Begin()
	if _, err := l.At(1); !errors.Is(err, rl.ErrEpisodeIndex) {
		t.Errorf("ErrEpisodeIndex を期待したが %v", err)
	}
	if _, err := l.Scores(0, 2); !errors.Is(err, rl.ErrEpisodeIndex) {
		t.Errorf("ErrEpisodeIndex を期待したが %v", err)
	}
	if err := l.SetScore(-1, 1.0); !errors.Is(err, rl.ErrEpisodeIndex) {
		t.Errorf("ErrEpisodeIndex を期待したが %v", err)
	}

	l.Reset()
	if l.Len() != 0 {
		t.Errorf("Reset 後にエピソードが残っている: %d", l.Len())
	}
	if _, err := l.Current(); !errors.Is(err, rl.ErrNoEpisode) {
		t.Errorf("ErrNoEpisode を期待したが %v", err)
	}
}

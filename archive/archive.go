// Package archive は訓練の実行、エピソード、訓練結果を SQLite に記録する。
package archive

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("archive: 実行が見つかりません")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	config_json  TEXT NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS episodes (
	run_id      TEXT NOT NULL,
	idx         INTEGER NOT NULL,
	steps       INTEGER NOT NULL,
	score       REAL NOT NULL,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (run_id, idx),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS trainings (
	run_id         TEXT NOT NULL,
	iteration      INTEGER NOT NULL,
	window_start   INTEGER NOT NULL,
	window_end     INTEGER NOT NULL,
	examples       INTEGER NOT NULL,
	average_score  REAL NOT NULL,
	created_at     TEXT NOT NULL,
	PRIMARY KEY (run_id, iteration),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

type Run struct {
	RunID      string
	ConfigJSON string
	CreatedAt  time.Time
}

type EpisodeRecord struct {
	RunID     string
	Index     int
	Steps     int
	Score     float64
	CreatedAt time.Time
}

type TrainingRecord struct {
	RunID        string
	Iteration    int
	WindowStart  int
	WindowEnd    int
	Examples     int
	AverageScore float64
	CreatedAt    time.Time
}

type Store struct {
	db *sql.DB
}

// Open は SQLite のデータベースを開き、テーブルを作る。
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// PRAGMA は接続ごとに効くので接続を1つに限る。
	db.SetMaxOpenConns(1)
	for _, q := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", schema} {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB は他のパッケージやツールから直接参照する為の *sql.DB を返す。
func (s *Store) DB() *sql.DB {
	return s.db
}

// StartRun は config を JSON にして新しい実行を登録し、その ID を返す。
func (s *Store) StartRun(config any) (string, error) {
	b, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	id := uuid.New().String()
	_, err = s.db.Exec(
		`INSERT INTO runs (run_id, config_json, created_at) VALUES (?, ?, ?)`,
		id, string(b), now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

func (s *Store) Run(runID string) (Run, error) {
	var r Run
	var createdAt string
	err := s.db.QueryRow(
		`SELECT run_id, config_json, created_at FROM runs WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &r.ConfigJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	r.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return Run{}, err
	}
	return r, nil
}

// Runs は全ての実行を作成順に返す。
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT run_id, config_json, created_at FROM runs ORDER BY created_at, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var createdAt string
		if err := rows.Scan(&r.RunID, &r.ConfigJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) RecordEpisode(runID string, idx, steps int, score float64) error {
	_, err := s.db.Exec(
		`INSERT INTO episodes (run_id, idx, steps, score, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, idx, steps, score, now(),
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

func (s *Store) RecordTraining(rec TrainingRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO trainings (run_id, iteration, window_start, window_end, examples, average_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Iteration, rec.WindowStart, rec.WindowEnd, rec.Examples, rec.AverageScore, now(),
	)
	if err != nil {
		return fmt.Errorf("insert training: %w", err)
	}
	return nil
}

func (s *Store) Episodes(runID string) ([]EpisodeRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, idx, steps, score, created_at FROM episodes WHERE run_id = ? ORDER BY idx`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var records []EpisodeRecord
	for rows.Next() {
		var r EpisodeRecord
		var createdAt string
		if err := rows.Scan(&r.RunID, &r.Index, &r.Steps, &r.Score, &createdAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) Trainings(runID string) ([]TrainingRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, iteration, window_start, window_end, examples, average_score, created_at
		 FROM trainings WHERE run_id = ? ORDER BY iteration`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query trainings: %w", err)
	}
	defer rows.Close()

	var records []TrainingRecord
	for rows.Next() {
		var r TrainingRecord
		var createdAt string
		if err := rows.Scan(&r.RunID, &r.Iteration, &r.WindowStart, &r.WindowEnd, &r.Examples, &r.AverageScore, &createdAt); err != nil {
			return nil, fmt.Errorf("scan training: %w", err)
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at: %w", err)
	}
	return t, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// pgtrain は通路環境で方策勾配エージェントを訓練する。
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sw965/pgcrow/archive"
	"github.com/sw965/pgcrow/env/corridor"
	"github.com/sw965/pgcrow/mathx/randx"
	"github.com/sw965/pgcrow/model/mlp"
	"github.com/sw965/pgcrow/rl"
)

func main() {
	configPath := flag.String("config", "", "JSON config path")
	seed := flag.Int64("seed", 0, "random seed")
	iterations := flag.Int("iterations", 0, "training iterations")
	episodes := flag.Int("episodes", 0, "episodes per iteration")
	window := flag.Int("window", 0, "training window in episodes (0 = all)")
	policy := flag.String("policy", "", "target policy: probability | smoothing")
	dbPath := flag.String("db", "", "SQLite archive path (optional)")
	out := flag.String("out", "", "path to save the trained model (optional)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// 明示的に指定されたフラグだけ設定ファイルの値を上書きする。
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.Seed = *seed
		case "iterations":
			cfg.Iterations = *iterations
		case "episodes":
			cfg.Episodes = *episodes
		case "window":
			cfg.Window = *window
		case "policy":
			cfg.Policy = *policy
		case "db":
			cfg.DB = *dbPath
		case "out":
			cfg.Out = *out
		}
	})

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	tc, err := cfg.Train.build()
	if err != nil {
		return err
	}
	agentConfig, err := cfg.agentConfig()
	if err != nil {
		return err
	}

	rng := randx.NewMt19937(cfg.Seed)
	env, err := corridor.New(cfg.Corridor)
	if err != nil {
		return err
	}

	m := &mlp.Model{}
	m.AppendAffine(cfg.Corridor.Cells, cfg.Hidden, rng)
	m.AppendLeakyReLU(0.1)
	m.AppendAffine(cfg.Hidden, cfg.Corridor.ActionCount(), rng)
	m.AppendSoftmax()

	agentConfig.TrainHook = func(r rl.TrainReport) {
		log.Printf("train window=[%d,%d) episodes=%d examples=%d average=%.4f", r.WindowStart, r.WindowEnd, r.Episodes, r.Examples, r.AverageScore)
	}
	agent, err := rl.NewAgent(m, rng, agentConfig)
	if err != nil {
		return err
	}
	log.Printf("pgtrain: seed=%d policy=%s sampling=%s cells=%d actions=%d", cfg.Seed, agent.Policy().Name(), agent.Sampling(), cfg.Corridor.Cells, cfg.Corridor.ActionCount())

	var store *archive.Store
	var runID string
	if cfg.DB != "" {
		store, err = archive.Open(cfg.DB)
		if err != nil {
			return err
		}
		defer store.Close()
		runID, err = store.StartRun(cfg)
		if err != nil {
			return err
		}
		log.Printf("archive: run %s -> %s", runID, cfg.DB)
	}

	for it := 0; it < cfg.Iterations; it++ {
		reached := 0
		for e := 0; e < cfg.Episodes; e++ {
			steps, err := playEpisode(agent, env)
			if err != nil {
				return fmt.Errorf("iteration %d episode %d: %w", it, e, err)
			}
			if env.Reached() {
				reached += 1
			}
			if store != nil {
				if err := store.RecordEpisode(runID, agent.Len()-1, steps, env.Score()); err != nil {
					return err
				}
			}
		}

		report, err := agent.Train(cfg.Window, tc)
		if err != nil {
			return fmt.Errorf("iteration %d train: %w", it, err)
		}
		log.Printf("iteration %d: average score %.4f, goal %d/%d", it, report.AverageScore, reached, cfg.Episodes)

		if store != nil {
			rec := archive.TrainingRecord{
				RunID:        runID,
				Iteration:    it,
				WindowStart:  report.WindowStart,
				WindowEnd:    report.WindowEnd,
				Examples:     report.Examples,
				AverageScore: report.AverageScore,
			}
			if err := store.RecordTraining(rec); err != nil {
				return err
			}
		}
	}

	if cfg.Out != "" {
		if err := agent.SaveModel(cfg.Out); err != nil {
			return err
		}
		log.Printf("saved model to %s", cfg.Out)
	}

	steps, err := evaluate(agent, env)
	if err != nil {
		return err
	}
	log.Printf("greedy evaluation: reached=%v steps=%d score=%.4f", env.Reached(), steps, env.Score())
	return nil
}

// playEpisode は確率的に行動して1エピソードを記録し、ステップ数を返す。
func playEpisode(agent *rl.Agent, env *corridor.Env) (int, error) {
	env.Reset()
	agent.BeginEpisode()
	for !env.IsEnd() {
		a, err := agent.Act(rl.NewState(env.Observation()), rl.Stochastic)
		if err != nil {
			return 0, err
		}
		if _, _, err := env.Step(a.Index()); err != nil {
			return 0, err
		}
	}
	return env.Steps(), agent.SetOutcome(env.Score())
}

// evaluate は台帳に記録せず、貪欲に1エピソードを行う。
func evaluate(agent *rl.Agent, env *corridor.Env) (int, error) {
	env.Reset()
	for !env.IsEnd() {
		a, err := agent.Action(rl.NewState(env.Observation()), rl.Greedy)
		if err != nil {
			return 0, err
		}
		if _, _, err := env.Step(a.Index()); err != nil {
			return 0, err
		}
	}
	return env.Steps(), nil
}

package main

import (
	"log"
	"math/rand"
	"time"

	"github.com/marketgym/dmarket/params"
	"github.com/marketgym/dmarket/pkg/gym"
	"github.com/marketgym/dmarket/pkg/util"
)

// Plays a batch of market-game episodes with a zero-intelligence learner
// against a scripted population. Useful as a smoke run of the environment
// and as a reward baseline before plugging in a real policy.
func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	learner, err := gym.NewConstantAgent(gym.Buyer, 110)
	if err != nil {
		sugar.Fatalw("learner_agent", "err", err)
	}

	var fixed []gym.Agent
	for i := 0; i < 5; i++ {
		buyer, err := gym.NewUniformRandomAgent(gym.Buyer, 105, 0.2, rng)
		if err != nil {
			sugar.Fatalw("fixed_agent", "err", err)
		}
		seller, err := gym.NewUniformRandomAgent(gym.Seller, 95, 0.2, rng)
		if err != nil {
			sugar.Fatalw("fixed_agent", "err", err)
		}
		fixed = append(fixed, buyer, seller)
	}

	env, err := gym.NewEnv(learner, fixed, &gym.OfferInformationSetting{N: 3}, cfg.EnvConfig())
	if err != nil {
		sugar.Fatalw("environment", "err", err)
	}

	space := gym.ActionSpace{
		Role:           gym.Buyer,
		Reservation:    learner.ReservationPrice(),
		Discretization: 20,
		MaxFactor:      0.2,
	}

	sugar.Infow("episode_runner_started",
		"episodes", cfg.Episode.Count,
		"max_steps", cfg.Episode.MaxSteps,
		"unit_qty", cfg.Episode.UnitQty,
		"market_policy", cfg.Engine.MarketPolicy,
		"self_trade_policy", cfg.Engine.SelfTradePolicy)

	var grandTotal float64
	for ep := 0; ep < cfg.Episode.Count; ep++ {
		env.Reset()

		var total float64
		done := false
		for !done {
			price := space.Price(rng.Intn(space.Discretization))
			var reward float64
			_, reward, done, err = env.Step(price)
			if err != nil {
				sugar.Fatalw("step_failed", "episode", ep, "err", err)
			}
			total += reward
		}
		grandTotal += total

		sugar.Infow("episode_finished",
			"episode", ep,
			"steps", env.StepCount(),
			"reward", total,
			"trades", len(env.Engine().Trades()))
	}

	sugar.Infow("episode_runner_done",
		"episodes", cfg.Episode.Count,
		"mean_reward", grandTotal/float64(cfg.Episode.Count))
}

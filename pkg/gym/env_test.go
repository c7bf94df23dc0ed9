package gym

import (
	"testing"

	"github.com/marketgym/dmarket/pkg/engine"
)

func mustConstant(t *testing.T, role Role, reservation int64) *ConstantAgent {
	t.Helper()
	a, err := NewConstantAgent(role, reservation)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestEnvRejectsBadSetups(t *testing.T) {
	learner := mustConstant(t, Buyer, 100)
	setting := BlackBoxSetting{}

	if _, err := NewEnv(nil, nil, setting, DefaultEnvConfig()); err == nil {
		t.Error("expected error for missing learner")
	}
	if _, err := NewEnv(learner, nil, nil, DefaultEnvConfig()); err == nil {
		t.Error("expected error for missing setting")
	}
	// No counterparty: buyer learner with only buyers.
	fixed := []Agent{mustConstant(t, Buyer, 90)}
	if _, err := NewEnv(learner, fixed, setting, DefaultEnvConfig()); err == nil {
		t.Error("expected error when no opposite side exists")
	}
	cfg := DefaultEnvConfig()
	cfg.MaxSteps = 0
	if _, err := NewEnv(learner, []Agent{mustConstant(t, Seller, 90)}, setting, cfg); err == nil {
		t.Error("expected error for non-positive max steps")
	}
}

func TestEnvSingleTradeEpisode(t *testing.T) {
	learner := mustConstant(t, Buyer, 120)
	seller := mustConstant(t, Seller, 100)

	env, err := NewEnv(learner, []Agent{seller}, OfferInformationSetting{N: 3}, DefaultEnvConfig())
	if err != nil {
		t.Fatal(err)
	}

	obs := env.Reset()
	if len(obs) != 6 {
		t.Fatalf("observation size = %d, want 6", len(obs))
	}

	// Fixed seller asks 100 first, then the learner bids 110: one trade
	// at the maker's price.
	_, reward, done, err := env.Step(110)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("episode should end once the learner trades")
	}
	if reward != 20 {
		t.Errorf("reward = %f, want reservation surplus 120-100 = 20", reward)
	}
	trades := env.LastTrades()
	if len(trades) != 1 || trades[0].Price != 100 {
		t.Fatalf("trades = %+v, want one at maker price 100", trades)
	}
	if trades[0].Buyer != "learner" || trades[0].Seller != "agent-0" {
		t.Errorf("attribution = %s/%s", trades[0].Buyer, trades[0].Seller)
	}
}

func TestEnvSellerLearnerRewardSign(t *testing.T) {
	learner := mustConstant(t, Seller, 80)
	buyer := mustConstant(t, Buyer, 100)

	env, err := NewEnv(learner, []Agent{buyer}, BlackBoxSetting{}, DefaultEnvConfig())
	if err != nil {
		t.Fatal(err)
	}
	env.Reset()

	// Buyer bids 100 first; learner asks 90, crossing the resting bid at
	// the maker's price 100.
	_, reward, done, err := env.Step(90)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("episode should end once the learner trades")
	}
	if reward != 20 {
		t.Errorf("reward = %f, want 100-80 = 20", reward)
	}
}

func TestEnvTerminatesAtMaxSteps(t *testing.T) {
	learner := mustConstant(t, Buyer, 50)
	seller := mustConstant(t, Seller, 200) // never marketable against the learner

	cfg := DefaultEnvConfig()
	cfg.MaxSteps = 5
	env, err := NewEnv(learner, []Agent{seller}, BlackBoxSetting{}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	env.Reset()

	var done bool
	var reward float64
	for i := 0; i < cfg.MaxSteps; i++ {
		if done {
			t.Fatalf("episode ended early at step %d", i)
		}
		_, reward, done, err = env.Step(40)
		if err != nil {
			t.Fatal(err)
		}
		if reward != 0 {
			t.Errorf("reward without trades = %f, want 0", reward)
		}
	}
	if !done {
		t.Error("episode should terminate at max steps")
	}
	if env.StepCount() != cfg.MaxSteps {
		t.Errorf("steps = %d, want %d", env.StepCount(), cfg.MaxSteps)
	}
}

func TestEnvTerminatesWhenSideExhausted(t *testing.T) {
	// Two buyers (learner + fixed), one seller. When the seller trades,
	// the sell side is exhausted and the game ends for everyone.
	learner := mustConstant(t, Buyer, 60) // too low to ever trade
	buyer := mustConstant(t, Buyer, 150)
	seller := mustConstant(t, Seller, 100)

	env, err := NewEnv(learner, []Agent{buyer, seller}, BlackBoxSetting{}, DefaultEnvConfig())
	if err != nil {
		t.Fatal(err)
	}
	env.Reset()

	_, reward, done, err := env.Step(60)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("episode should end once the only seller is done")
	}
	if reward != 0 {
		t.Errorf("uninvolved learner reward = %f, want 0", reward)
	}
}

func TestEnvOffersReplacedNotStacked(t *testing.T) {
	learner := mustConstant(t, Buyer, 50)
	seller := mustConstant(t, Seller, 200)

	cfg := DefaultEnvConfig()
	cfg.MaxSteps = 10
	env, err := NewEnv(learner, []Agent{seller}, BlackBoxSetting{}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	env.Reset()

	for i := 0; i < 3; i++ {
		if _, _, _, err := env.Step(40); err != nil {
			t.Fatal(err)
		}
	}
	// One resting order per live agent, not one per step.
	if got := env.Engine().RestingOrders(); got != 2 {
		t.Errorf("resting orders = %d, want 2 (one per agent)", got)
	}
}

func TestEnvResetClearsEpisodeState(t *testing.T) {
	learner := mustConstant(t, Buyer, 120)
	seller := mustConstant(t, Seller, 100)

	env, err := NewEnv(learner, []Agent{seller}, DealInformationSetting{N: 4}, DefaultEnvConfig())
	if err != nil {
		t.Fatal(err)
	}
	env.Reset()
	if _, _, done, err := env.Step(110); err != nil || !done {
		t.Fatalf("done = %v, err = %v", done, err)
	}

	obs := env.Reset()
	if env.Done() || env.StepCount() != 0 {
		t.Error("reset should clear episode progress")
	}
	for i, v := range obs {
		if v != 0 {
			t.Errorf("obs[%d] = %f, want 0 after reset", i, v)
		}
	}
	if env.Engine().RestingOrders() != 0 || len(env.Engine().Trades()) != 0 {
		t.Error("reset should clear the engine episode")
	}
}

func TestEnvEnginePoliciesPropagate(t *testing.T) {
	learner := mustConstant(t, Buyer, 120)
	seller := mustConstant(t, Seller, 100)

	cfg := DefaultEnvConfig()
	cfg.Engine = engine.Config{SelfTrade: engine.SelfTradeReject}
	env, err := NewEnv(learner, []Agent{seller}, BlackBoxSetting{}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	env.Reset()
	// Distinct owners, so the policy never fires here; the episode still
	// plays out normally.
	if _, _, done, err := env.Step(110); err != nil || !done {
		t.Fatalf("done = %v, err = %v", done, err)
	}
}

package gym

import (
	"errors"
	"fmt"

	"github.com/marketgym/dmarket/pkg/engine"
)

// EnvConfig tunes one training environment.
type EnvConfig struct {
	// MaxSteps is the episode length cap.
	MaxSteps int
	// UnitQty is the quantity every agent trades per episode. Each agent
	// wants to buy or sell exactly this amount, then is done.
	UnitQty int64
	// Engine carries the matching engine policies for the episode.
	Engine engine.Config
}

// DefaultEnvConfig mirrors the customary single-unit, 30-round market
// game.
func DefaultEnvConfig() EnvConfig {
	return EnvConfig{MaxSteps: 30, UnitQty: 1}
}

// Env is a step-based training environment around one matching engine
// episode. One learner trades against a fixed population of scripted
// agents; each Step submits one round of offers as limit orders, collects
// the fills, and pays the learner its reservation-price surplus.
//
// Env is not safe for concurrent use; a training loop drives it from a
// single goroutine.
type Env struct {
	eng     *engine.Engine
	cfg     EnvConfig
	setting InformationSetting

	learner   Agent
	learnerID string
	fixed     []Agent
	fixedIDs  []string

	step       int
	done       map[string]bool
	filled     map[string]int64
	resting    map[string]uint64 // agent id -> live order id
	lastOffers map[string]int64
	lastTrades []engine.Trade
	finished   bool
}

// NewEnv builds an environment. The fixed population must contain at
// least one agent on the opposite side of the learner, otherwise no
// trade can ever happen.
func NewEnv(learner Agent, fixed []Agent, setting InformationSetting, cfg EnvConfig) (*Env, error) {
	if learner == nil {
		return nil, errors.New("learner agent is required")
	}
	if setting == nil {
		return nil, errors.New("information setting is required")
	}
	if cfg.MaxSteps <= 0 {
		return nil, fmt.Errorf("max steps must be positive, got %d", cfg.MaxSteps)
	}
	if cfg.UnitQty <= 0 {
		return nil, fmt.Errorf("unit quantity must be positive, got %d", cfg.UnitQty)
	}
	opposite := false
	for _, a := range fixed {
		if a.Role() != learner.Role() {
			opposite = true
			break
		}
	}
	if !opposite {
		return nil, errors.New("fixed population has no counterparty for the learner")
	}

	env := &Env{
		eng:       engine.New(cfg.Engine),
		cfg:       cfg,
		setting:   setting,
		learner:   learner,
		learnerID: "learner",
		fixed:     fixed,
	}
	for i := range fixed {
		env.fixedIDs = append(env.fixedIDs, fmt.Sprintf("agent-%d", i))
	}
	env.reset()
	return env, nil
}

// Reset starts a fresh episode and returns the learner's initial
// observation.
func (env *Env) Reset() []float64 {
	env.reset()
	return env.observe(env.learnerID)
}

func (env *Env) reset() {
	env.eng.Reset()
	env.step = 0
	env.done = make(map[string]bool)
	env.filled = make(map[string]int64)
	env.resting = make(map[string]uint64)
	env.lastOffers = make(map[string]int64)
	env.lastTrades = nil
	env.finished = false
}

// Step submits one round of offers: every fixed agent still in the game
// replaces its resting offer, then the learner's price is submitted.
// Returns the learner's next observation, its reward for this step, and
// whether the episode is over.
func (env *Env) Step(learnerPrice int64) ([]float64, float64, bool, error) {
	if env.finished {
		return env.observe(env.learnerID), 0, true, nil
	}

	states := env.setting.States(env.fixedIDs, env)
	for i, agent := range env.fixed {
		id := env.fixedIDs[i]
		if env.done[id] {
			continue
		}
		offer := agent.Offer(states[id])
		if offer <= 0 {
			continue // abstain
		}
		if err := env.place(id, agent.Role(), offer); err != nil {
			return nil, 0, false, fmt.Errorf("agent %s: %w", id, err)
		}
	}

	if !env.done[env.learnerID] && learnerPrice > 0 {
		if err := env.place(env.learnerID, env.learner.Role(), learnerPrice); err != nil {
			return nil, 0, false, fmt.Errorf("learner: %w", err)
		}
	}

	snap := env.eng.Snapshot()
	env.lastTrades = snap.Trades
	env.settle(snap.Trades)

	env.step++
	if env.step >= env.cfg.MaxSteps || env.sideExhausted() {
		env.finished = true
	}
	if env.done[env.learnerID] {
		env.finished = true
	}

	reward := env.rewardFor(env.learnerID, env.learner, snap.Trades)
	return env.observe(env.learnerID), reward, env.finished, nil
}

// place replaces the agent's resting offer with a fresh limit order at
// the given price.
func (env *Env) place(id string, role Role, price int64) error {
	if prev, ok := env.resting[id]; ok {
		// The previous offer may have filled since it was recorded.
		if err := env.eng.Cancel(prev); err != nil && !errors.Is(err, engine.ErrOrderNotFound) {
			return err
		}
		delete(env.resting, id)
	}

	want := env.cfg.UnitQty - env.filled[id]
	if want <= 0 {
		return nil
	}
	orderID, _, err := env.eng.Submit(role.Side(), engine.Limit, price, want, id)
	if err != nil {
		return err
	}
	env.lastOffers[id] = price
	if _, ok := env.eng.Lookup(orderID); ok {
		env.resting[id] = orderID
	}
	return nil
}

// settle credits fills to their owners and marks agents done once their
// unit is fully traded.
func (env *Env) settle(trades []engine.Trade) {
	for _, tr := range trades {
		env.filled[tr.Buyer] += tr.Qty
		env.filled[tr.Seller] += tr.Qty
	}
	for id, filled := range env.filled {
		if filled >= env.cfg.UnitQty && !env.done[id] {
			env.done[id] = true
			if orderID, ok := env.resting[id]; ok {
				// Fully done agents leave nothing resting. The order is
				// usually gone already because it just filled.
				_ = env.eng.Cancel(orderID)
				delete(env.resting, id)
			}
		}
	}
}

// sideExhausted reports whether every buyer or every seller is done, at
// which point no further trade is possible.
func (env *Env) sideExhausted() bool {
	buyersLeft, sellersLeft := 0, 0
	count := func(id string, role Role) {
		if env.done[id] {
			return
		}
		if role == Buyer {
			buyersLeft++
		} else {
			sellersLeft++
		}
	}
	count(env.learnerID, env.learner.Role())
	for i, a := range env.fixed {
		count(env.fixedIDs[i], a.Role())
	}
	return buyersLeft == 0 || sellersLeft == 0
}

// rewardFor is the reservation-price surplus of this step's fills:
// a buyer earns reservation minus price, a seller price minus
// reservation, scaled by filled quantity.
func (env *Env) rewardFor(id string, agent Agent, trades []engine.Trade) float64 {
	var reward float64
	r := float64(agent.ReservationPrice())
	for _, tr := range trades {
		switch {
		case tr.Buyer == id:
			reward += (r - float64(tr.Price)) * float64(tr.Qty)
		case tr.Seller == id:
			reward += (float64(tr.Price) - r) * float64(tr.Qty)
		}
	}
	return reward
}

func (env *Env) observe(id string) []float64 {
	return env.setting.States([]string{id}, env)[id]
}

// Done reports whether the episode is over.
func (env *Env) Done() bool { return env.finished }

// StepCount returns the number of completed steps this episode.
func (env *Env) StepCount() int { return env.step }

// Engine exposes the underlying matching engine for observers (market
// data, metrics). Callers must treat it as read-only.
func (env *Env) Engine() *engine.Engine { return env.eng }

// LastTrades returns the trades of the most recent step.
func (env *Env) LastTrades() []engine.Trade { return env.lastTrades }

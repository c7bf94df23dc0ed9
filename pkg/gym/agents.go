package gym

import (
	"fmt"
	"math/rand"

	"github.com/marketgym/dmarket/pkg/engine"
)

// Role of a market participant. Buyers hold a maximum acceptable price,
// sellers a minimum.
type Role int8

const (
	Buyer Role = iota
	Seller
)

func (r Role) String() string {
	if r == Buyer {
		return "buyer"
	}
	return "seller"
}

// Side maps a role onto the book side its orders go to.
func (r Role) Side() engine.Side {
	if r == Buyer {
		return engine.Buy
	}
	return engine.Sell
}

// Agent is a scripted market participant. Offer receives the observation
// produced by the environment's information setting and returns a limit
// price in ticks. A non-positive offer means the agent abstains this step.
type Agent interface {
	Role() Role
	ReservationPrice() int64
	Offer(obs []float64) int64
}

// ConstantAgent always offers its reservation price.
type ConstantAgent struct {
	role        Role
	reservation int64
}

func NewConstantAgent(role Role, reservation int64) (*ConstantAgent, error) {
	if reservation <= 0 {
		return nil, fmt.Errorf("reservation price must be positive, got %d", reservation)
	}
	return &ConstantAgent{role: role, reservation: reservation}, nil
}

func (a *ConstantAgent) Role() Role              { return a.role }
func (a *ConstantAgent) ReservationPrice() int64 { return a.reservation }
func (a *ConstantAgent) Offer(_ []float64) int64 { return a.reservation }

// UniformRandomAgent offers uniformly random prices in a band around its
// reservation price: a buyer in [(1-maxFactor)*r, r], a seller in
// [r, (1+maxFactor)*r]. Never offers beyond its reservation, so it can
// only trade at a profit.
type UniformRandomAgent struct {
	role        Role
	reservation int64
	lo, hi      int64
	rng         *rand.Rand
}

func NewUniformRandomAgent(role Role, reservation int64, maxFactor float64, rng *rand.Rand) (*UniformRandomAgent, error) {
	if reservation <= 0 {
		return nil, fmt.Errorf("reservation price must be positive, got %d", reservation)
	}
	if maxFactor < 0 {
		return nil, fmt.Errorf("max factor must be nonnegative, got %f", maxFactor)
	}
	r := float64(reservation)
	var lo, hi float64
	if role == Buyer {
		lo, hi = (1-maxFactor)*r, r
	} else {
		lo, hi = r, (1+maxFactor)*r
	}
	a := &UniformRandomAgent{
		role:        role,
		reservation: reservation,
		lo:          int64(lo),
		hi:          int64(hi),
		rng:         rng,
	}
	if a.lo < 1 {
		a.lo = 1
	}
	return a, nil
}

func (a *UniformRandomAgent) Role() Role              { return a.role }
func (a *UniformRandomAgent) ReservationPrice() int64 { return a.reservation }

func (a *UniformRandomAgent) Offer(_ []float64) int64 {
	if a.hi <= a.lo {
		return a.lo
	}
	return a.lo + a.rng.Int63n(a.hi-a.lo+1)
}

// SpreadAgent improves on the best visible quote by one tick, bounded by
// its reservation price. It expects observations laid out by
// OfferInformationSetting (n bid prices then n ask prices, best first)
// and falls back to its reservation price when the book is empty.
type SpreadAgent struct {
	role        Role
	reservation int64
	levels      int // n of the OfferInformationSetting it observes
}

func NewSpreadAgent(role Role, reservation int64, levels int) (*SpreadAgent, error) {
	if reservation <= 0 {
		return nil, fmt.Errorf("reservation price must be positive, got %d", reservation)
	}
	if levels <= 0 {
		return nil, fmt.Errorf("levels must be positive, got %d", levels)
	}
	return &SpreadAgent{role: role, reservation: reservation, levels: levels}, nil
}

func (a *SpreadAgent) Role() Role              { return a.role }
func (a *SpreadAgent) ReservationPrice() int64 { return a.reservation }

func (a *SpreadAgent) Offer(obs []float64) int64 {
	if len(obs) < 2*a.levels {
		return a.reservation
	}
	bestBid := int64(obs[0])
	bestAsk := int64(obs[a.levels])

	if a.role == Buyer {
		offer := a.reservation
		if bestBid > 0 && bestBid+1 < offer {
			offer = bestBid + 1
		}
		return offer
	}
	offer := a.reservation
	if bestAsk > 0 && bestAsk-1 > offer {
		offer = bestAsk - 1
	}
	return offer
}

// ActionSpace maps a discrete RL action index onto a limit price inside
// the agent's profitable band, the same discretization the learner was
// trained with regardless of role or price scale.
type ActionSpace struct {
	Role           Role
	Reservation    int64
	Discretization int
	MaxFactor      float64
}

// Price converts an action index in [0, Discretization) to a price in
// ticks. Index 0 is the most aggressive offer, the last index the most
// conservative. Out-of-range actions clamp.
func (s ActionSpace) Price(action int) int64 {
	if s.Discretization < 2 {
		return s.Reservation
	}
	if action < 0 {
		action = 0
	}
	if action >= s.Discretization {
		action = s.Discretization - 1
	}

	r := float64(s.Reservation)
	var lo, hi float64
	if s.Role == Buyer {
		lo, hi = (1-s.MaxFactor)*r, r
	} else {
		lo, hi = r, (1+s.MaxFactor)*r
	}
	frac := float64(action) / float64(s.Discretization-1)

	var price float64
	if s.Role == Buyer {
		// Aggressive buyer bids high.
		price = hi - frac*(hi-lo)
	} else {
		// Aggressive seller asks low.
		price = lo + frac*(hi-lo)
	}
	if price < 1 {
		price = 1
	}
	return int64(price)
}

package gym

// InformationSetting decides what market state agents observe each step.
// Observations are flat float64 vectors so the same settings serve both
// scripted agents and external RL models.
type InformationSetting interface {
	// ObservationSize is the length of every produced vector.
	ObservationSize() int
	// States computes per-agent observations for the current environment
	// state. Read-only.
	States(ids []string, env *Env) map[string][]float64
}

// BlackBoxSetting reveals only the agent's own last offer: a single-entry
// vector, 0 when the agent has not offered yet.
type BlackBoxSetting struct{}

func (BlackBoxSetting) ObservationSize() int { return 1 }

func (BlackBoxSetting) States(ids []string, env *Env) map[string][]float64 {
	out := make(map[string][]float64, len(ids))
	for _, id := range ids {
		out[id] = []float64{float64(env.lastOffers[id])}
	}
	return out
}

// OfferInformationSetting reveals the best N levels of either book side:
// a 2N vector with bid prices first, then ask prices, best first,
// zero-padded. Every agent sees the same vector.
type OfferInformationSetting struct {
	N int
}

func (s OfferInformationSetting) ObservationSize() int { return 2 * s.N }

func (s OfferInformationSetting) States(ids []string, env *Env) map[string][]float64 {
	obs := make([]float64, 2*s.N)
	bids, asks := env.eng.Depth(s.N)
	for i, lvl := range bids {
		obs[i] = float64(lvl.Price)
	}
	for i, lvl := range asks {
		obs[s.N+i] = float64(lvl.Price)
	}

	out := make(map[string][]float64, len(ids))
	for _, id := range ids {
		out[id] = obs
	}
	return out
}

// DealInformationSetting reveals the prices of up to N trades from the
// previous step, zero-padded. Every agent sees the same vector.
type DealInformationSetting struct {
	N int
}

func (s DealInformationSetting) ObservationSize() int { return s.N }

func (s DealInformationSetting) States(ids []string, env *Env) map[string][]float64 {
	obs := make([]float64, s.N)
	for i, tr := range env.lastTrades {
		if i >= s.N {
			break
		}
		obs[i] = float64(tr.Price)
	}

	out := make(map[string][]float64, len(ids))
	for _, id := range ids {
		out[id] = obs
	}
	return out
}

package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/marketgym/dmarket/pkg/engine"
	"github.com/marketgym/dmarket/pkg/gym"
)

// Engine holds the matching engine policy knobs as config strings.
type Engine struct {
	// MarketPolicy: "discard" drops an unfilled market remainder,
	// "reject" refuses market orders that cannot fully fill.
	MarketPolicy string
	// SelfTradePolicy: "allow" or "reject".
	SelfTradePolicy string
}

// Episode holds the training-episode parameters.
type Episode struct {
	MaxSteps int
	UnitQty  int64
	// Count is how many episodes the runner plays before exiting.
	Count int
}

// Feeder controls the demo daemon's synthetic order flow.
type Feeder struct {
	Enabled bool
	// Mode: "default" or "high".
	Mode string
}

// API holds the HTTP server settings.
type API struct {
	Addr string
}

type Config struct {
	Engine  Engine
	Episode Episode
	Feeder  Feeder
	API     API
	LogFile string
}

func Default() Config {
	return Config{
		Engine: Engine{
			MarketPolicy:    "discard",
			SelfTradePolicy: "allow",
		},
		Episode: Episode{
			MaxSteps: 30,
			UnitQty:  1,
			Count:    10,
		},
		Feeder: Feeder{
			Enabled: true,
			Mode:    "default",
		},
		API:     API{Addr: ":8080"},
		LogFile: "data/marketd.log",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // .env in current directory, optional
	}

	if v := os.Getenv("MARKET_POLICY"); v != "" {
		cfg.Engine.MarketPolicy = v
	}
	if v := os.Getenv("SELF_TRADE_POLICY"); v != "" {
		cfg.Engine.SelfTradePolicy = v
	}
	if v := os.Getenv("EPISODE_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Episode.MaxSteps = n
		}
	}
	if v := os.Getenv("EPISODE_UNIT_QTY"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Episode.UnitQty = n
		}
	}
	if v := os.Getenv("EPISODE_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Episode.Count = n
		}
	}
	if v := os.Getenv("FEEDER_ENABLED"); v != "" {
		cfg.Feeder.Enabled = v == "true"
	}
	if v := os.Getenv("FEEDER_MODE"); v != "" {
		cfg.Feeder.Mode = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	return cfg
}

// EngineConfig maps the policy strings onto engine configuration.
// Unknown values fall back to the defaults (discard, allow).
func (c Config) EngineConfig() engine.Config {
	var ec engine.Config
	if c.Engine.MarketPolicy == "reject" {
		ec.Market = engine.MarketReject
	}
	if c.Engine.SelfTradePolicy == "reject" {
		ec.SelfTrade = engine.SelfTradeReject
	}
	return ec
}

// EnvConfig maps the episode and engine settings onto a training
// environment configuration.
func (c Config) EnvConfig() gym.EnvConfig {
	return gym.EnvConfig{
		MaxSteps: c.Episode.MaxSteps,
		UnitQty:  c.Episode.UnitQty,
		Engine:   c.EngineConfig(),
	}
}

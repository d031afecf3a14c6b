package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/crowdsale-xyz/go-crowdsale/engine"
	"github.com/crowdsale-xyz/go-crowdsale/eventsource"
	"github.com/crowdsale-xyz/go-crowdsale/ledger"
)

// config is the resolved CLI configuration: the engine parameters plus
// journal, transport and prover settings.
type config struct {
	Engine      engine.Config
	JournalPath string
	Listen      string
	ProverSlots int
}

// loadConfig reads configuration from the given file (crowdsale.yaml in
// the working directory when empty) and CROWDSALE_* environment
// variables.
func loadConfig(path string) (*config, error) {
	v := viper.New()
	v.SetDefault("owner", "owner")
	v.SetDefault("beneficiary", "beneficiary")
	v.SetDefault("maxCap", "1000000000")
	v.SetDefault("policy", "reject-whole")
	v.SetDefault("stream", "crowdsale")
	v.SetDefault("journal", "crowdsale.db")
	v.SetDefault("listen", ":8080")
	v.SetDefault("proverSlots", 0)

	v.SetEnvPrefix("crowdsale")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("crowdsale")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	maxCap, err := parseAmount(v.GetString("maxCap"))
	if err != nil {
		return nil, fmt.Errorf("maxCap: %w", err)
	}
	cfg := &config{
		Engine: engine.Config{
			Owner:       v.GetString("owner"),
			Beneficiary: v.GetString("beneficiary"),
			MaxCap:      maxCap,
			StreamID:    v.GetString("stream"),
		},
		JournalPath: v.GetString("journal"),
		Listen:      v.GetString("listen"),
		ProverSlots: v.GetInt("proverSlots"),
	}
	for key, dst := range map[string]**uint256.Int{
		"price":   &cfg.Engine.Price,
		"saleCap": &cfg.Engine.SaleCap,
		"softCap": &cfg.Engine.SoftCap,
	} {
		if s := v.GetString(key); s != "" {
			amount, err := parseAmount(s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			*dst = amount
		}
	}

	switch policy := v.GetString("policy"); policy {
	case "", "reject-whole":
		cfg.Engine.Policy = ledger.RejectWhole
	case "accept-partial":
		cfg.Engine.Policy = ledger.AcceptPartialAndRefundRemainder
	default:
		return nil, fmt.Errorf("unknown policy %q", policy)
	}
	return cfg, nil
}

// parseAmount reads a decimal or 0x-prefixed hex amount.
func parseAmount(s string) (*uint256.Int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return uint256.FromHex(s)
	}
	return uint256.FromDecimal(s)
}

// openEngine builds the engine over the SQLite journal and replays it.
// Callers close the returned store.
func openEngine(ctx context.Context, cfg *config) (*engine.Engine, *eventsource.SQLiteStore, error) {
	store, err := eventsource.NewSQLiteStore(cfg.JournalPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	ecfg := cfg.Engine
	ecfg.Store = store
	ecfg.Logger = logrus.StandardLogger()

	e, err := engine.New(ecfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	if err := e.Replay(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return e, store, nil
}

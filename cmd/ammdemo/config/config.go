package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Asset names a ledger asset and its address.
type Asset struct {
	Symbol  string `yaml:"symbol"`
	Address string `yaml:"address"`
}

// Balance seeds an account with an amount of an asset (smallest units,
// decimal string).
type Balance struct {
	Account string `yaml:"account"`
	Asset   string `yaml:"asset"` // symbol
	Amount  string `yaml:"amount"`
}

// Pool declares a pair to register. FeeBps of 0 falls back to the default fee.
type Pool struct {
	AssetA string `yaml:"assetA"` // symbol
	AssetB string `yaml:"assetB"` // symbol
	FeeBps uint16 `yaml:"feeBps,omitempty"`
}

// Step is one scenario operation: "add", "remove" or "swap".
type Step struct {
	Op      string `yaml:"op"`
	Account string `yaml:"account"`

	// add / remove
	AssetA     string `yaml:"assetA,omitempty"`
	AssetB     string `yaml:"assetB,omitempty"`
	AmountA    string `yaml:"amountA,omitempty"`
	AmountB    string `yaml:"amountB,omitempty"`
	AmountAMin string `yaml:"amountAMin,omitempty"`
	AmountBMin string `yaml:"amountBMin,omitempty"`
	Shares     string `yaml:"shares,omitempty"`

	// swap
	Path         []string `yaml:"path,omitempty"` // symbols
	AmountIn     string   `yaml:"amountIn,omitempty"`
	AmountOutMin string   `yaml:"amountOutMin,omitempty"`

	// seconds added to the current ledger time to form the deadline
	DeadlineOffset uint64 `yaml:"deadlineOffset,omitempty"`
}

// DemoConfig is the full scenario file.
type DemoConfig struct {
	Assets   []Asset   `yaml:"assets"`
	Balances []Balance `yaml:"balances"`
	Pools    []Pool    `yaml:"pools"`
	Steps    []Step    `yaml:"steps"`
}

// LoadConfig reads and validates a scenario file.
func LoadConfig(path string) (*DemoConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg DemoConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *DemoConfig) validate() error {
	if len(c.Assets) < 2 {
		return fmt.Errorf("config: need at least 2 assets, got %d", len(c.Assets))
	}

	symbols := make(map[string]struct{}, len(c.Assets))
	for _, asset := range c.Assets {
		if asset.Symbol == "" || asset.Address == "" {
			return fmt.Errorf("config: asset needs both symbol and address")
		}
		if _, dup := symbols[asset.Symbol]; dup {
			return fmt.Errorf("config: duplicate asset symbol %q", asset.Symbol)
		}
		symbols[asset.Symbol] = struct{}{}
	}

	known := func(symbol string) error {
		if _, ok := symbols[symbol]; !ok {
			return fmt.Errorf("config: unknown asset symbol %q", symbol)
		}
		return nil
	}

	for _, bal := range c.Balances {
		if err := known(bal.Asset); err != nil {
			return err
		}
	}
	for _, p := range c.Pools {
		if err := known(p.AssetA); err != nil {
			return err
		}
		if err := known(p.AssetB); err != nil {
			return err
		}
	}
	for i, step := range c.Steps {
		switch step.Op {
		case "add", "remove":
			if err := known(step.AssetA); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			if err := known(step.AssetB); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		case "swap":
			if len(step.Path) < 2 {
				return fmt.Errorf("step %d: swap path needs at least 2 assets", i)
			}
			for _, symbol := range step.Path {
				if err := known(symbol); err != nil {
					return fmt.Errorf("step %d: %w", i, err)
				}
			}
		default:
			return fmt.Errorf("step %d: unknown op %q", i, step.Op)
		}
	}
	return nil
}

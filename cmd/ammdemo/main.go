package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/defistate-amm-go/cmd/ammdemo/config"
	"github.com/defistate/defistate-amm-go/ledger"
	"github.com/defistate/defistate-amm-go/pool"
	"github.com/defistate/defistate-amm-go/registry"
	"github.com/defistate/defistate-amm-go/router"
)

func main() {
	rootLogHandler := slog.NewJSONHandler(os.Stdout, nil)
	rootLogger := slog.New(rootLogHandler)

	configPath := flag.String("config", "config.yaml", "Path to the scenario file.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, rootLogger, cfg); err != nil {
		rootLogger.Error("Scenario failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.DemoConfig) error {
	mem := ledger.NewMemory()

	assets := make(map[string]common.Address, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		assets[asset.Symbol] = common.HexToAddress(asset.Address)
	}
	for _, bal := range cfg.Balances {
		amount, err := parseAmount(bal.Amount)
		if err != nil {
			return fmt.Errorf("balance for %s: %w", bal.Account, err)
		}
		mem.Mint(assets[bal.Asset], accountAddress(bal.Account), amount)
	}

	pools := registry.NewRegistry(mem, pool.DefaultFeeBps)
	for _, pc := range cfg.Pools {
		feeBps := pc.FeeBps
		if feeBps == 0 {
			feeBps = pool.DefaultFeeBps
		}
		if _, err := pools.CreateWithFee(assets[pc.AssetA], assets[pc.AssetB], feeBps); err != nil {
			return fmt.Errorf("create pool %s/%s: %w", pc.AssetA, pc.AssetB, err)
		}
	}

	r, err := router.NewRouter(&router.Config{
		Ledger:   mem,
		Pools:    pools,
		Logger:   logger.With("component", "router"),
		Registry: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return err
	}

	for i, step := range cfg.Steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := runStep(r, pools, assets, mem, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		logger.Info("step completed", "step", i, "op", step.Op, "account", step.Account)
	}

	view := pools.View()
	encoded, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func runStep(
	r *router.Router,
	pools *registry.Registry,
	assets map[string]common.Address,
	mem *ledger.Memory,
	step config.Step,
) error {
	account := accountAddress(step.Account)
	deadline := mem.CurrentTime() + step.DeadlineOffset

	switch step.Op {
	case "add":
		p, err := pools.Get(assets[step.AssetA], assets[step.AssetB])
		if err != nil {
			return err
		}
		amountA, err := parseAmount(step.AmountA)
		if err != nil {
			return err
		}
		amountB, err := parseAmount(step.AmountB)
		if err != nil {
			return err
		}
		amountAMin, err := parseOptionalAmount(step.AmountAMin)
		if err != nil {
			return err
		}
		amountBMin, err := parseOptionalAmount(step.AmountBMin)
		if err != nil {
			return err
		}
		_, _, _, err = r.AddLiquidity(p, account, amountA, amountB, amountAMin, amountBMin, deadline)
		return err

	case "remove":
		p, err := pools.Get(assets[step.AssetA], assets[step.AssetB])
		if err != nil {
			return err
		}
		shares, err := parseAmount(step.Shares)
		if err != nil {
			return err
		}
		amountAMin, err := parseOptionalAmount(step.AmountAMin)
		if err != nil {
			return err
		}
		amountBMin, err := parseOptionalAmount(step.AmountBMin)
		if err != nil {
			return err
		}
		_, _, err = r.RemoveLiquidity(p, account, shares, amountAMin, amountBMin, deadline)
		return err

	case "swap":
		amountIn, err := parseAmount(step.AmountIn)
		if err != nil {
			return err
		}
		amountOutMin, err := parseOptionalAmount(step.AmountOutMin)
		if err != nil {
			return err
		}
		path := make([]common.Address, 0, len(step.Path))
		for _, symbol := range step.Path {
			path = append(path, assets[symbol])
		}
		_, err = r.SwapExactTokensForTokens(account, account, amountIn, amountOutMin, path, deadline)
		return err
	}
	return fmt.Errorf("unknown op %q", step.Op)
}

// accountAddress derives a stable demo address from an account label.
func accountAddress(label string) common.Address {
	var addr common.Address
	copy(addr[:], label)
	return addr
}

func parseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}

func parseOptionalAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	return parseAmount(s)
}

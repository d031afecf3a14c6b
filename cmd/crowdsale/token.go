package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/crowdsale-xyz/go-crowdsale/engine"
)

// printResult writes a command result as indented JSON.
func printResult(res *engine.Result) error {
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func mint(args []string) error {
	fs := flag.NewFlagSet("mint", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	caller := fs.String("caller", "", "Calling principal (defaults to the configured owner)")
	amount := fs.String("amount", "", "Amount of units to mint")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: crowdsale mint --amount <units> [options]

Mint token units to the owner, bounded by the maximum cap.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *amount == "" {
		fs.Usage()
		return fmt.Errorf("--amount required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	units, err := parseAmount(*amount)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	if *caller == "" {
		*caller = cfg.Engine.Owner
	}

	ctx := context.Background()
	e, store, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := e.Mint(ctx, *caller, units)
	if err != nil {
		return err
	}
	return printResult(res)
}

func burn(args []string) error {
	fs := flag.NewFlagSet("burn", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	caller := fs.String("caller", "", "Calling principal (defaults to the configured owner)")
	amount := fs.String("amount", "", "Amount of units to burn")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: crowdsale burn --amount <units> [options]

Burn token units from the owner's balance.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *amount == "" {
		fs.Usage()
		return fmt.Errorf("--amount required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	units, err := parseAmount(*amount)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	if *caller == "" {
		*caller = cfg.Engine.Owner
	}

	ctx := context.Background()
	e, store, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := e.Burn(ctx, *caller, units)
	if err != nil {
		return err
	}
	return printResult(res)
}

func transfer(args []string) error {
	fs := flag.NewFlagSet("transfer", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	from := fs.String("from", "", "Sending principal")
	to := fs.String("to", "", "Receiving principal")
	amount := fs.String("amount", "", "Amount of units")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: crowdsale transfer --from <p> --to <p> --amount <units> [options]

Transfer token units between principals.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *from == "" || *to == "" || *amount == "" {
		fs.Usage()
		return fmt.Errorf("--from, --to and --amount required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	units, err := parseAmount(*amount)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}

	ctx := context.Background()
	e, store, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := e.Transfer(ctx, *from, *to, units)
	if err != nil {
		return err
	}
	return printResult(res)
}

func approve(args []string) error {
	fs := flag.NewFlagSet("approve", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	owner := fs.String("owner", "", "Balance owner")
	spender := fs.String("spender", "", "Spender principal")
	amount := fs.String("amount", "", "Allowance amount")
	from := fs.String("from", "", "With --to: spend the allowance instead of setting it")
	to := fs.String("to", "", "Recipient for an allowance spend")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: crowdsale approve --owner <p> --spender <p> --amount <units> [options]

Set a spender's allowance, or spend one with --from/--to.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Grant B an allowance of 100 over A's balance
  crowdsale approve --owner A --spender B --amount 100

  # B spends it: move 100 from A to C
  crowdsale approve --spender B --from A --to C --amount 100
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *spender == "" || *amount == "" {
		fs.Usage()
		return fmt.Errorf("--spender and --amount required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	units, err := parseAmount(*amount)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}

	ctx := context.Background()
	e, store, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var res *engine.Result
	if *from != "" || *to != "" {
		if *from == "" || *to == "" {
			fs.Usage()
			return fmt.Errorf("--from and --to must be used together")
		}
		res, err = e.TransferFrom(ctx, *spender, *from, *to, units)
	} else {
		if *owner == "" {
			fs.Usage()
			return fmt.Errorf("--owner required")
		}
		res, err = e.Approve(ctx, *owner, *spender, units)
	}
	if err != nil {
		return err
	}
	return printResult(res)
}

func purchase(args []string) error {
	fs := flag.NewFlagSet("purchase", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	buyer := fs.String("buyer", "", "Buying principal (must be whitelisted)")
	paid := fs.String("paid", "", "Native payment amount")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: crowdsale purchase --buyer <p> --paid <amount> [options]

Buy token units at the configured price. The payment lands in escrow;
the receipt reports minted units and any refund owed.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *buyer == "" || *paid == "" {
		fs.Usage()
		return fmt.Errorf("--buyer and --paid required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	payment, err := parseAmount(*paid)
	if err != nil {
		return fmt.Errorf("paid: %w", err)
	}

	ctx := context.Background()
	e, store, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := e.Purchase(ctx, *buyer, payment)
	if err != nil {
		return err
	}
	return printResult(res)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

func escrowCmd(args []string) error {
	if len(args) < 1 {
		escrowUsage()
		return fmt.Errorf("escrow subcommand required")
	}
	sub := args[0]
	args = args[1:]

	fs := flag.NewFlagSet("escrow "+sub, flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	caller := fs.String("caller", "", "Calling principal (defaults to the configured owner)")
	payee := fs.String("payee", "", "Depositor principal")
	amount := fs.String("amount", "", "Native amount (deposit only)")
	value := fs.Bool("value", true, "Gate value (gate subcommands only)")

	fs.Usage = func() {
		escrowUsage()
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
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

	switch sub {
	case "deposit":
		if *payee == "" || *amount == "" {
			return fmt.Errorf("--payee and --amount required")
		}
		native, err := parseAmount(*amount)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		res, err := e.Deposit(ctx, *payee, native)
		if err != nil {
			return err
		}
		return printResult(res)

	case "withdraw":
		if *payee == "" {
			return fmt.Errorf("--payee required")
		}
		res, err := e.Withdraw(ctx, *payee)
		if err != nil {
			return err
		}
		return printResult(res)

	case "enable-refunds":
		res, err := e.EnableRefunds(ctx, *caller)
		if err != nil {
			return err
		}
		return printResult(res)

	case "close":
		res, err := e.Close(ctx, *caller)
		if err != nil {
			return err
		}
		return printResult(res)

	case "payout":
		res, err := e.BeneficiaryWithdraw(ctx)
		if err != nil {
			return err
		}
		return printResult(res)

	case "finish":
		res, err := e.SetSaleFinished(ctx, *caller, *value)
		if err != nil {
			return err
		}
		return printResult(res)

	case "softcap":
		res, err := e.SetSoftCapReached(ctx, *caller, *value)
		if err != nil {
			return err
		}
		return printResult(res)

	default:
		escrowUsage()
		return fmt.Errorf("unknown escrow subcommand: %s", sub)
	}
}

func escrowUsage() {
	fmt.Fprintf(os.Stderr, `Usage: crowdsale escrow <subcommand> [options]

Subcommands:
  deposit         Add a deposit for a payee (--payee, --amount)
  withdraw        Pay out a payee's accumulated entry (--payee)
  enable-refunds  Move the escrow to the refunding state
  close           Close the escrow (both gates must be set)
  payout          Drain the pool to the beneficiary (closed only)
  finish          Set or clear the sale-finished gate (--value)
  softcap         Set or clear the soft-cap gate (--value)

Options:
`)
}

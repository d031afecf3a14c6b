package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
)

func whitelist(args []string) error {
	if len(args) < 1 {
		whitelistUsage()
		return fmt.Errorf("whitelist subcommand required")
	}
	sub := args[0]
	args = args[1:]

	fs := flag.NewFlagSet("whitelist "+sub, flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	caller := fs.String("caller", "", "Calling principal (defaults to the configured owner)")

	fs.Usage = func() {
		whitelistUsage()
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
	case "add":
		if fs.NArg() < 1 {
			return fmt.Errorf("at least one principal required")
		}
		res, err := e.WhitelistAdd(ctx, *caller, fs.Args()...)
		if err != nil {
			return err
		}
		return printResult(res)

	case "remove":
		if fs.NArg() < 1 {
			return fmt.Errorf("at least one principal required")
		}
		res, err := e.WhitelistRemove(ctx, *caller, fs.Args()...)
		if err != nil {
			return err
		}
		return printResult(res)

	case "list":
		members := e.Whitelist().Members()
		sort.Strings(members)
		if len(members) == 0 {
			fmt.Println("Whitelist is empty")
			return nil
		}
		for _, m := range members {
			fmt.Println(m)
		}
		return nil

	default:
		whitelistUsage()
		return fmt.Errorf("unknown whitelist subcommand: %s", sub)
	}
}

func whitelistUsage() {
	fmt.Fprintf(os.Stderr, `Usage: crowdsale whitelist <subcommand> [options] [principals...]

Subcommands:
  add      Whitelist one or more principals
  remove   Remove one or more principals
  list     Print the current whitelist

Options:
`)
}

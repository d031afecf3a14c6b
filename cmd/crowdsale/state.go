package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
)

func state(args []string) error {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: crowdsale state [options]

Rebuild the engine from the journal and print its full state.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	e, store, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	out, err := json.MarshalIndent(e.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

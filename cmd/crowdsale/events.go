package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/crowdsale-xyz/go-crowdsale/eventsource"
)

func events(args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	typeFilter := fs.String("type", "", "Filter by operation type")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: crowdsale events [options]

Display the command journal in append order.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Show all journaled commands
  crowdsale events

  # Filter by type
  crowdsale events --type sale.purchase
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	store, err := eventsource.NewSQLiteStore(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()

	filter := eventsource.EventFilter{StreamID: cfg.Engine.StreamID}
	if *typeFilter != "" {
		filter.Types = []string{*typeFilter}
	}
	records, err := store.ReadAll(context.Background(), filter)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No commands recorded")
		return nil
	}

	fmt.Printf("=== Command Journal (%d records) ===\n\n", len(records))
	for _, rec := range records {
		fmt.Printf("v%-6d %-28s %s\n", rec.Version, rec.Type, rec.Timestamp.Format("2006-01-02 15:04:05"))
		if len(rec.Data) > 0 {
			fmt.Printf("        %s\n", string(rec.Data))
		}
	}
	return nil
}

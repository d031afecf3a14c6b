package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "serve":
		if err := serve(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "mint":
		if err := mint(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "burn":
		if err := burn(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "transfer":
		if err := transfer(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "approve":
		if err := approve(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "purchase":
		if err := purchase(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "escrow":
		if err := escrowCmd(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "whitelist":
		if err := whitelist(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "state":
		if err := state(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "events":
		if err := events(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Println("crowdsale version 1.0.0")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`crowdsale - token sale ledger, escrow and whitelist engine

Usage:
  crowdsale <command> [options]

Commands:
  serve      Run the HTTP server
  mint       Mint token units to the owner
  burn       Burn token units from the owner
  transfer   Transfer token units
  approve    Set a spender allowance
  purchase   Buy token units through the sale
  escrow     Escrow operations (deposit, withdraw, refunds, close, payout, gates)
  whitelist  Whitelist operations (add, remove, list)
  state      Print the full engine state
  events     Show the command journal
  help       Show this help message
  version    Show version information

Examples:
  # Start the server with a config file
  crowdsale serve --config crowdsale.yaml

  # Whitelist a buyer, then purchase
  crowdsale whitelist add buyer-1
  crowdsale purchase --buyer buyer-1 --paid 1050

  # Inspect the journal
  crowdsale events --type sale.purchase

For command-specific help, run:
  crowdsale <command> --help`)
}

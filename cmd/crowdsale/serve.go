package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crowdsale-xyz/go-crowdsale/prover"
	"github.com/crowdsale-xyz/go-crowdsale/server"
)

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	listen := fs.String("listen", "", "Listen address (overrides config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: crowdsale serve [options]

Run the HTTP server over the journaled engine.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Serve with the default crowdsale.yaml
  crowdsale serve

  # Override the listen address
  crowdsale serve --config sale.yaml --listen :9090
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx := context.Background()
	e, store, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := []server.Option{
		server.WithStore(store),
		server.WithLogger(log),
	}
	if cfg.ProverSlots > 0 {
		log.WithField("slots", cfg.ProverSlots).Info("compiling solvency circuit")
		p, err := prover.New(cfg.ProverSlots)
		if err != nil {
			return fmt.Errorf("prover: %w", err)
		}
		opts = append(opts, server.WithProver(p))
	}

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      server.NewServer(e, opts...).Mux(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	log.WithFields(logrus.Fields{
		"listen":  cfg.Listen,
		"journal": cfg.JournalPath,
		"version": e.Version(),
	}).Info("serving")
	return srv.ListenAndServe()
}

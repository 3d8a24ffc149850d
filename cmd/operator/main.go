// Package main starts the operator bot process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	operatorcmd "github.com/dablchess/operator/internal/cmd/operator"
)

func main() {
	cfg, err := operatorcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[OPERATOR] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Probe {
		if err := operatorcmd.Probe(ctx, cfg); err != nil {
			log.Fatalf("probe: %v", err)
		}
		return
	}

	if err := operatorcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("operator stopped: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"coursepay/internal/reconcile"
)

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "api base url")
	orderID := flag.String("order", "", "order id to reconcile")
	returnStatus := flag.String("status", "", "return status from the gateway redirect (success|pending|failure)")
	interval := flag.Duration("interval", 2*time.Second, "poll interval")
	attempts := flag.Int("attempts", 90, "max poll attempts")
	flag.Parse()

	if *orderID == "" {
		log.Fatal("missing -order")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := reconcile.New(*baseURL)
	p.Interval = *interval
	p.MaxAttempts = *attempts

	final, err := p.Run(ctx, *orderID, *returnStatus)
	switch {
	case errors.Is(err, reconcile.ErrExhausted):
		log.Fatalf("order %s did not reach a terminal status", *orderID)
	case err != nil:
		log.Fatalf("polling stopped: %v", err)
	}
	log.Printf("order %s terminal status: %s", *orderID, final)
}

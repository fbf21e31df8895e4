package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"heimdall/internal/asset"
	"heimdall/internal/net"
	"heimdall/internal/registry"
)

func main() {
	address := flag.String("address", "0.0.0.0", "Address to listen on")
	port := flag.Int("port", 9001, "Port to listen on")
	gatekeeper := flag.String("gatekeeper", "odin", "Principal allowed to approve orders")

	// Ledger seeding, for running against the built-in in-memory ledger.
	mints := flag.String("mint", "", "Comma-separated account:asset:amount balances to mint")
	authorizations := flag.String("authorize", "", "Comma-separated account:asset:amount allowance grants")
	flag.Parse()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	ledger := asset.NewMemLedger()
	if err := seedLedger(ledger, *mints, *authorizations); err != nil {
		log.Fatal().Err(err).Msg("unable to seed ledger")
	}

	// Setup the TCP server and the escrow registry.
	reg := registry.New(ledger, registry.NewGatekeeper(asset.Account(*gatekeeper)))
	srv := net.New(*address, *port, reg)

	go srv.Run(ctx)
	// Block on running the server.
	<-ctx.Done()
}

// seedLedger applies account:asset:amount entries to the in-memory ledger.
func seedLedger(ledger *asset.MemLedger, mints, authorizations string) error {
	apply := func(entries string, f func(asset.Account, asset.Asset, uint64)) error {
		if entries == "" {
			return nil
		}
		for _, entry := range strings.Split(entries, ",") {
			parts := strings.Split(strings.TrimSpace(entry), ":")
			if len(parts) != 3 {
				return fmt.Errorf("malformed ledger entry %q", entry)
			}
			amount, err := strconv.ParseUint(parts[2], 10, 64)
			if err != nil {
				return fmt.Errorf("malformed amount in ledger entry %q: %w", entry, err)
			}
			f(asset.Account(parts[0]), asset.Asset(parts[1]), amount)
		}
		return nil
	}

	if err := apply(mints, ledger.Mint); err != nil {
		return err
	}
	return apply(authorizations, ledger.Authorize)
}

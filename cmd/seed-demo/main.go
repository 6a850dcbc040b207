// Command seed-demo populates a local SQLite store with the deterministic
// demo dataset of internal/seed (C10), flag idiom grounded on
// dvloznov-finance-tracker/cmd/migrate/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/brightledger/finance-analytics-core/internal/config"
	"github.com/brightledger/finance-analytics-core/internal/seed"
	"github.com/brightledger/finance-analytics-core/internal/store/sqlite"
)

func main() {
	userID := flag.String("user", "u_demo_min", "user ID to seed demo transactions for")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.StoreBackend != config.BackendSQLite {
		fmt.Fprintln(os.Stderr, "seed-demo only supports STORE_BACKEND=sqlite")
		os.Exit(2)
	}

	s, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer s.Close()

	if err := seed.Seed(context.Background(), s, *userID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("seeded demo data for user %q\n", *userID)
}

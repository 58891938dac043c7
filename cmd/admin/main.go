// Command admin provides offline maintenance against the tracker database:
// a per-network status report and purging of old finalized records.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/propulsorfi/txtracker/internal/core/config"
	"github.com/propulsorfi/txtracker/internal/core/domain"
	"github.com/propulsorfi/txtracker/internal/infra/storage/postgres"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	var err error
	switch os.Args[1] {
	case "status":
		err = runStatus(os.Args[2:])
	case "purge":
		err = runPurge(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <status|purge> [flags]")
}

func openDB(configPath string) (*postgres.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("no database configured")
	}
	return postgres.NewDB(context.Background(), cfg.Database)
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	db, err := openDB(*configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	rows, err := db.QueryContext(ctx, `
		SELECT chain_id,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE receipt IS NULL),
		       MAX(added_time)
		FROM transactions
		GROUP BY chain_id
		ORDER BY chain_id
	`)
	if err != nil {
		return fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	fmt.Fprintln(w, "CHAIN\tTOTAL\tPENDING\tLAST ADDED")
	for rows.Next() {
		var chainID uint64
		var total, pending int64
		var lastAdded time.Time
		if err := rows.Scan(&chainID, &total, &pending, &lastAdded); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
			domain.ChainID(chainID).Name(), total, pending, lastAdded.Format(time.RFC3339))
	}
	return w.Flush()
}

func runPurge(args []string) error {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	chainID := fs.Uint64("chain", uint64(domain.BSCMainnet), "Chain id to purge")
	olderThan := fs.Duration("older-than", 30*24*time.Hour, "Purge finalized records confirmed longer ago than this")
	fs.Parse(args)

	db, err := openDB(*configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := postgres.NewTxRepo(db)
	cutoff := time.Now().Add(-*olderThan)
	removed, err := repo.DeleteFinalizedBefore(context.Background(), domain.ChainID(*chainID), cutoff)
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	fmt.Printf("Purged %d finalized transactions on chain %d confirmed before %s\n",
		removed, *chainID, cutoff.Format(time.RFC3339))
	return nil
}

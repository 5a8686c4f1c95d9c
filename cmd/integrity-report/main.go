// Command integrity-report verifies a range of the audit hash chain directly
// against the database and prints the report as JSON. Intended for operators
// and compliance exports; it shares the verification engine with the server
// so offline and online verdicts can never disagree.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"trustcore/internal/audit"
	"trustcore/internal/audit/integrity"
	"trustcore/internal/platform/config"
	"trustcore/internal/platform/database"
)

func main() {
	var (
		from    = flag.Int64("from", 1, "first sequence id to verify")
		to      = flag.Int64("to", 0, "last sequence id to verify (0 = chain head)")
		sign    = flag.Int64("sign", 0, "emit a detached signature for this sequence id instead of a report")
		timeout = flag.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	flag.Parse()

	if err := run(*from, *to, *sign, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "integrity-report:", err)
		os.Exit(1)
	}
}

func run(from, to, sign int64, timeout time.Duration) error {
	cfg := config.FromEnv()
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := audit.NewPostgresStore(pool.DB())
	engine := integrity.New(store, integrity.WithSigningSeed(cfg.Integrity.SigningSeed))

	if sign > 0 {
		signature, err := engine.Sign(ctx, sign)
		if err != nil {
			return err
		}
		fmt.Println(signature)
		return nil
	}

	if to == 0 {
		head, err := store.Head(ctx)
		if err != nil {
			return fmt.Errorf("resolve chain head: %w", err)
		}
		to = head.SequenceID
	}

	report, err := engine.GenerateReport(ctx, from, to)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

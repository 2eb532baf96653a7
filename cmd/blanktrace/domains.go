package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/blanktrace/blanktrace/internal/config"
	"github.com/blanktrace/blanktrace/internal/store"
)

func runDomains(args []string) error {
	fs := flag.NewFlagSet("domains", flag.ExitOnError)
	cfgPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// A negative LIMIT means "no limit" in SQLite.
	domains, err := db.TopDomains(context.Background(), -1)
	if err != nil {
		return fmt.Errorf("query domains: %w", err)
	}

	for _, d := range domains {
		status := "tracked"
		if d.Blocked {
			status = "blocked"
		}
		fmt.Printf("%s\t%s\t%d hits\n", d.Domain, status, d.HitCount)
	}
	return nil
}

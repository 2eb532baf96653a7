package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/blanktrace/blanktrace/internal/config"
	"github.com/blanktrace/blanktrace/internal/store"
)

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cfgPath := configFlag(fs)
	limit := fs.Int("limit", 20, "number of domains to show")
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

	domains, err := db.TopDomains(context.Background(), *limit)
	if err != nil {
		return fmt.Errorf("query top domains: %w", err)
	}

	if len(domains) == 0 {
		fmt.Println("no tracked domains yet")
		return nil
	}

	fmt.Printf("%-40s %10s %10s\n", "DOMAIN", "HITS", "BLOCKED")
	for _, d := range domains {
		fmt.Printf("%-40s %10d %10t\n", d.Domain, d.HitCount, d.Blocked)
	}
	return nil
}

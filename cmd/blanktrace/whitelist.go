package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/blanktrace/blanktrace/internal/config"
	"github.com/blanktrace/blanktrace/internal/store"
)

func runWhitelist(args []string) error {
	fs := flag.NewFlagSet("whitelist", flag.ExitOnError)
	cfgPath := configFlag(fs)
	reason := fs.String("reason", "", "why this domain is trusted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: whitelist [-reason text] <domain>")
	}
	domain := fs.Arg(0)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.AddWhitelist(context.Background(), domain, *reason); err != nil {
		return fmt.Errorf("add whitelist entry: %w", err)
	}

	fmt.Printf("whitelisted %s\n", domain)
	return nil
}

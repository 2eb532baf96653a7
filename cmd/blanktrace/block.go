package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/blanktrace/blanktrace/internal/config"
	"github.com/blanktrace/blanktrace/internal/store"
)

func runBlock(args []string) error {
	fs := flag.NewFlagSet("block", flag.ExitOnError)
	cfgPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: block <domain>")
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

	if err := db.ManualBlock(context.Background(), domain); err != nil {
		return fmt.Errorf("block domain: %w", err)
	}

	fmt.Printf("blocked %s\n", domain)
	return nil
}

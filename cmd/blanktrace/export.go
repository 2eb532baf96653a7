package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/blanktrace/blanktrace/internal/config"
	"github.com/blanktrace/blanktrace/internal/store"
)

var exportTables = []string{
	"tracking_domains",
	"whitelist",
	"cookie_traffic",
	"fingerprint_rotations",
	"request_log",
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfgPath := configFlag(fs)
	table := fs.String("table", "", "audit table to export (default: all)")
	out := fs.String("out", "", "output file (default: stdout)")
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

	tables := exportTables
	if *table != "" {
		if !validExportTable(*table) {
			return fmt.Errorf("unknown table %q, must be one of: %s", *table, exportTableUsage())
		}
		tables = []string{*table}
	}

	ctx := context.Background()
	result := make(map[string][]map[string]any, len(tables))
	for _, t := range tables {
		rows, err := db.Export(ctx, t)
		if err != nil {
			return fmt.Errorf("export %s: %w", t, err)
		}
		result[t] = rows
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if *table != "" {
		return enc.Encode(result[*table])
	}
	return enc.Encode(result)
}

func validExportTable(name string) bool {
	for _, t := range exportTables {
		if t == name {
			return true
		}
	}
	return false
}

func exportTableUsage() string {
	return strings.Join(exportTables, ", ")
}
